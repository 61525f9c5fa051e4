// Package ingest routes chat lines into votes: command tokens (!resign,
// !challenge) and bare move candidates, one successful vote per user per
// round.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/chess-anarchy/chat"
	"github.com/onnwee/chess-anarchy/notation"
	"github.com/onnwee/chess-anarchy/telemetry"
)

// ChatSource is the slice of the chat poller the coordinator needs.
type ChatSource interface {
	Poll(max int) []chat.Message
}

// GameView is the slice of the game registry the coordinator needs. Votes
// apply to the first snapshot id; picking among simultaneous games is out of
// scope.
type GameView interface {
	SnapshotIDs() []string
}

// VoteSink is the slice of the vote ledger the coordinator needs.
type VoteSink interface {
	RecordMoveVote(gameID, text string) bool
	RecordResignVote(gameID string) bool
	HasVoted(gameID, user string) bool
	MarkVoted(gameID, user string)
}

const (
	// DefaultTick is how often the coordinator drains the chat buffer.
	DefaultTick = 200 * time.Millisecond
	// DefaultBatch bounds how many lines one tick processes.
	DefaultBatch = 128
)

// Coordinator polls buffered chat lines and turns them into ledger votes.
type Coordinator struct {
	chat  ChatSource
	games GameView
	votes VoteSink
	tick  time.Duration
	batch int
}

// NewCoordinator wires a coordinator over the chat poller, game registry,
// and vote ledger.
func NewCoordinator(chatSrc ChatSource, games GameView, votes VoteSink, tick time.Duration, batch int) *Coordinator {
	if tick <= 0 {
		tick = DefaultTick
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Coordinator{chat: chatSrc, games: games, votes: votes, tick: tick, batch: batch}
}

// Run drains the chat buffer on a fixed interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.ingestOnce()
		}
	}
}

// ingestOnce processes one batch of buffered chat lines.
func (c *Coordinator) ingestOnce() {
	for _, msg := range c.chat.Poll(c.batch) {
		c.route(msg)
	}
}

// route classifies one chat line: command, move candidate, or noise.
func (c *Coordinator) route(msg chat.Message) {
	telemetry.IncChatMessage()
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "!") {
		c.command(msg.User, text)
		return
	}
	cand, ok := notation.MoveCandidate(text)
	if !ok {
		return
	}
	gameID, ok := c.currentGame()
	if !ok {
		return
	}
	if c.votes.HasVoted(gameID, msg.User) {
		slog.Debug("duplicate vote dropped",
			slog.String("user", msg.User),
			slog.String("game_id", gameID))
		return
	}
	// The voted flag is set only on success so a typo does not spend the
	// user's vote for the round.
	if c.votes.RecordMoveVote(gameID, cand) {
		c.votes.MarkVoted(gameID, msg.User)
	}
}

// command dispatches a !-prefixed line. Only the first token counts; unknown
// commands are dropped without being mistaken for move votes.
func (c *Coordinator) command(user, text string) {
	switch strings.Fields(text)[0] {
	case "!resign":
		telemetry.IncChatCommand()
		gameID, ok := c.currentGame()
		if !ok {
			return
		}
		if c.votes.HasVoted(gameID, user) {
			slog.Debug("duplicate vote dropped",
				slog.String("user", user),
				slog.String("game_id", gameID))
			return
		}
		if c.votes.RecordResignVote(gameID) {
			c.votes.MarkVoted(gameID, user)
		}
	case "!challenge":
		// Recognized but reserved.
		telemetry.IncChatCommand()
		slog.Debug("challenge command is not wired up yet", slog.String("user", user))
	}
}

// currentGame returns the first active game id, the one chat votes apply to.
func (c *Coordinator) currentGame() (string, bool) {
	ids := c.games.SnapshotIDs()
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}
