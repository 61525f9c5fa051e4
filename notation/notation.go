// Package notation validates chat-submitted chess moves and normalizes them
// to coordinate (UCI) form against the current game position.
package notation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/notnil/chess"
)

// Coordinate moves are square pairs with an optional promotion piece
// (e2e4, e7e8q). Lowercase only; anything else goes through SAN resolution.
var coordinateRe = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// candidateRe matches the leading run of characters that can appear in a move
// in either notation, including SAN decorations (Nxf3+, e4!?).
var candidateRe = regexp.MustCompile(`[a-zA-Z0-9#+!?=-]+`)

// IsCoordinate reports whether s is already a coordinate-notation move.
func IsCoordinate(s string) bool { return coordinateRe.MatchString(s) }

// MoveCandidate extracts a move-shaped token from a chat line. The line must
// be a single token ("e4", "Nf3+"), not prose ("play e4"); returns false when
// the line cannot be a move vote.
func MoveCandidate(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) != 1 {
		return "", false
	}
	m := candidateRe.FindString(fields[0])
	if m == "" {
		return "", false
	}
	return m, true
}

// BoardSource supplies the position of an active game and whether the bot
// plays white in it. Implemented by game.Registry.
type BoardSource interface {
	Board(gameID string) (fen string, white bool, ok bool)
}

// Resolver normalizes chat move text against live game positions. Coordinate
// moves pass through untouched (the hosting server is the final legality
// check); abbreviated moves are resolved to coordinate form and rejected if
// they are not legal in the current position.
type Resolver struct {
	Boards BoardSource
}

// Normalize implements vote.Normalizer.
func (r *Resolver) Normalize(gameID, text string) (string, error) {
	if IsCoordinate(text) {
		return text, nil
	}
	fen, white, ok := r.Boards.Board(gameID)
	if !ok {
		return "", fmt.Errorf("no position for game %s", gameID)
	}
	return ResolveSAN(fen, white, text)
}

// ResolveSAN converts an abbreviated move to coordinate notation for the side
// given by white.
func ResolveSAN(fen string, white bool, text string) (string, error) {
	full, err := normalizeFEN(fen, white)
	if err != nil {
		return "", err
	}
	opt, err := chess.FEN(full)
	if err != nil {
		return "", fmt.Errorf("parse fen %q: %w", full, err)
	}
	g := chess.NewGame(opt)
	mv, err := chess.AlgebraicNotation{}.Decode(g.Position(), text)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", text, err)
	}
	return chess.UCINotation{}.Encode(g.Position(), mv), nil
}

// normalizeFEN fills in the trailing FEN fields the game-listing endpoint
// omits and forces the side to move to the bot's color: votes are always for
// the bot's next move, even while the opponent is still thinking.
func normalizeFEN(fen string, white bool) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty fen")
	}
	turn := "b"
	if white {
		turn = "w"
	}
	castle, ep := "-", "-"
	if len(fields) > 2 {
		castle = fields[2]
	}
	if len(fields) > 3 {
		ep = fields[3]
	}
	return strings.Join([]string{fields[0], turn, castle, ep, "0", "1"}, " "), nil
}
