// Package vote tallies chat votes for chess moves and resignations, one round
// per game.
package vote

import (
	"log/slog"
	"sync"

	"github.com/onnwee/chess-anarchy/telemetry"
)

// Resign is the reserved candidate key for resignation votes. It can never
// collide with a move: move candidates are validated to move shapes first.
const Resign = "resign"

// Normalizer validates raw chat move text and converts it to the canonical
// coordinate form used as the candidate key. Implemented by notation.Resolver.
type Normalizer interface {
	Normalize(gameID, text string) (string, error)
}

// Round is a value snapshot of one game's vote round. Candidates preserves
// first-vote insertion order, which the arbiter's selection policy depends on.
type Round struct {
	Candidates []string
	Counts     map[string]int
}

// Empty reports whether the round has no candidates.
func (r Round) Empty() bool { return len(r.Counts) == 0 }

// Total is the number of votes across all candidates.
func (r Round) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

type round struct {
	order  []string
	counts map[string]int
	voters map[string]struct{}
}

func newRound() *round {
	return &round{counts: make(map[string]int), voters: make(map[string]struct{})}
}

func (r *round) snapshot() Round {
	out := Round{
		Candidates: make([]string, len(r.order)),
		Counts:     make(map[string]int, len(r.counts)),
	}
	copy(out.Candidates, r.order)
	for k, v := range r.counts {
		out.Counts[k] = v
	}
	return out
}

// Ledger holds per-game vote rounds and the set of users that already voted
// in the current round. All methods are safe for concurrent use; a round's
// counts are never observed half-updated by DrainRound.
//
// One-vote-per-user enforcement is the caller's job (HasVoted/MarkVoted),
// checked before recording.
type Ledger struct {
	normalize Normalizer

	mu     sync.Mutex
	rounds map[string]*round
}

// NewLedger returns a Ledger that validates move votes with n.
func NewLedger(n Normalizer) *Ledger {
	return &Ledger{normalize: n, rounds: make(map[string]*round)}
}

// roundFor returns the round for gameID, creating it if needed. Caller holds mu.
func (l *Ledger) roundFor(gameID string) *round {
	r, ok := l.rounds[gameID]
	if !ok {
		r = newRound()
		l.rounds[gameID] = r
	}
	return r
}

// RecordMoveVote validates text and tallies a vote for the normalized
// candidate. Unparseable or illegal moves are dropped silently (debug log
// only) and false is returned.
func (l *Ledger) RecordMoveVote(gameID, text string) bool {
	cand, err := l.normalize.Normalize(gameID, text)
	if err != nil {
		slog.Debug("move vote rejected",
			slog.String("game_id", gameID),
			slog.String("move", text),
			slog.Any("error", err))
		telemetry.IncVoteRejected()
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(gameID, cand)
	telemetry.IncVoteRecorded()
	slog.Debug("move vote recorded",
		slog.String("game_id", gameID),
		slog.String("candidate", cand))
	return true
}

// RecordResignVote tallies a resignation vote. It always succeeds.
func (l *Ledger) RecordResignVote(gameID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(gameID, Resign)
	telemetry.IncResignVote()
	slog.Debug("resign vote recorded", slog.String("game_id", gameID))
	return true
}

// add increments cand for gameID. Caller holds mu.
func (l *Ledger) add(gameID, cand string) {
	r := l.roundFor(gameID)
	if _, ok := r.counts[cand]; !ok {
		r.order = append(r.order, cand)
	}
	r.counts[cand]++
}

// DrainRound returns a copy of the current round for gameID. The live round
// is left in place; the arbiter clears or prunes it depending on the outcome
// of the decision it makes from the copy.
func (l *Ledger) DrainRound(gameID string) Round {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[gameID]
	if !ok {
		return Round{Counts: map[string]int{}}
	}
	return r.snapshot()
}

// ClearRound empties the counts and the voted-user set for gameID.
func (l *Ledger) ClearRound(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rounds[gameID]; ok {
		l.rounds[gameID] = newRound()
	}
}

// DiscardCandidate removes a single candidate from the round, keeping the
// rest. Used when the hosting service rejects the selected move.
func (l *Ledger) DiscardCandidate(gameID, cand string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[gameID]
	if !ok {
		return
	}
	if _, ok := r.counts[cand]; !ok {
		return
	}
	delete(r.counts, cand)
	for i, c := range r.order {
		if c == cand {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ClearVoters empties only the voted-user set, letting everyone vote again
// while the surviving candidates keep their counts.
func (l *Ledger) ClearVoters(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rounds[gameID]; ok {
		r.voters = make(map[string]struct{})
	}
}

// HasVoted reports whether user already voted in gameID's current round.
func (l *Ledger) HasVoted(gameID, user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[gameID]
	if !ok {
		return false
	}
	_, voted := r.voters[user]
	return voted
}

// MarkVoted records that user voted in gameID's current round. Idempotent.
func (l *Ledger) MarkVoted(gameID, user string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roundFor(gameID).voters[user] = struct{}{}
}

// Rounds returns a snapshot of every game's current round, for the status
// endpoint. Stale entries for finished games may appear until their next
// clear; they are bounded by the number of games seen since startup.
func (l *Ledger) Rounds() map[string]Round {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Round, len(l.rounds))
	for id, r := range l.rounds {
		out[id] = r.snapshot()
	}
	return out
}
