package lichess

// Account is the authenticated bot account, as returned by /api/account.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Count    Count  `json:"count"`
}

// Count carries the account's lifetime game totals.
type Count struct {
	All  int `json:"all"`
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Loss int `json:"loss"`
}

// OngoingGame is one entry of /api/account/playing. The fen field omits the
// trailing clock counters, and for games against the server AI the opponent
// id is empty.
type OngoingGame struct {
	GameID   string   `json:"gameId"`
	FullID   string   `json:"fullId"`
	Color    string   `json:"color"`
	FEN      string   `json:"fen"`
	LastMove string   `json:"lastMove"`
	IsMyTurn bool     `json:"isMyTurn"`
	Speed    string   `json:"speed"`
	Rated    bool     `json:"rated"`
	Opponent Opponent `json:"opponent"`
}

// Opponent identifies the other side of an ongoing game.
type Opponent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

// UserStatus is one entry of /api/users/status. Lichess omits the online
// field entirely for offline users.
type UserStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// Event is one line of the account event stream (/api/stream/event).
// Exactly one of Challenge or Game is set, depending on Type.
type Event struct {
	Type      string     `json:"type"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Game      *GameEvent `json:"game,omitempty"`
}

// Event types seen on the account stream.
const (
	EventChallenge         = "challenge"
	EventChallengeCanceled = "challengeCanceled"
	EventChallengeDeclined = "challengeDeclined"
	EventGameStart         = "gameStart"
	EventGameFinish        = "gameFinish"
)

// Challenge is an incoming challenge on the event stream.
type Challenge struct {
	ID         string     `json:"id"`
	Rated      bool       `json:"rated"`
	Speed      string     `json:"speed"`
	Challenger Challenger `json:"challenger"`
	Variant    Variant    `json:"variant"`
}

// Challenger identifies the account issuing a challenge.
type Challenger struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Variant is the chess variant of a challenge.
type Variant struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// GameEvent is the game payload of gameStart/gameFinish events.
type GameEvent struct {
	GameID   string     `json:"gameId"`
	FullID   string     `json:"fullId"`
	Color    string     `json:"color"`
	FEN      string     `json:"fen"`
	Opponent Opponent   `json:"opponent"`
	Status   GameStatus `json:"status"`
}

// GameStatus is the terminal (or current) status of a game.
type GameStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
