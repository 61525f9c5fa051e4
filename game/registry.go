// Package game coordinates play against the hosting service: the registry
// mirror of ongoing games, the per-game move arbiter, the challenge
// gatekeeper, and the opponent watchdog.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/chess-anarchy/lichess"
	"github.com/onnwee/chess-anarchy/telemetry"
)

// Color is the side the bot plays in a game.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Game is one entry of the registry snapshot. OpponentID is empty when the
// opponent is not a user account (server AI).
type Game struct {
	ID         string
	Color      Color
	OpponentID string
	Opponent   string
	IsMyTurn   bool
	FEN        string
}

// Lister is the slice of the hosting client the registry needs.
type Lister interface {
	OngoingGames(ctx context.Context) ([]lichess.OngoingGame, error)
}

// Registry caches the set of ongoing games. Refresh replaces the whole
// snapshot atomically; readers always see a consistent set, at most one
// refresh interval stale. A failed refresh keeps the previous snapshot.
type Registry struct {
	client Lister

	mu    sync.RWMutex
	order []string
	games map[string]Game
}

// NewRegistry returns an empty registry backed by client.
func NewRegistry(client Lister) *Registry {
	return &Registry{client: client, games: make(map[string]Game)}
}

// Refresh replaces the cached game set with the hosting service's current
// list. On error the previous snapshot is left untouched.
func (r *Registry) Refresh(ctx context.Context) error {
	listed, err := r.client.OngoingGames(ctx)
	if err != nil {
		telemetry.IncRefreshFailure()
		return fmt.Errorf("list ongoing games: %w", err)
	}
	order := make([]string, 0, len(listed))
	games := make(map[string]Game, len(listed))
	for _, g := range listed {
		if _, dup := games[g.GameID]; dup {
			continue
		}
		order = append(order, g.GameID)
		games[g.GameID] = Game{
			ID:         g.GameID,
			Color:      Color(g.Color),
			OpponentID: g.Opponent.ID,
			Opponent:   g.Opponent.Username,
			IsMyTurn:   g.IsMyTurn,
			FEN:        g.FEN,
		}
	}

	r.mu.Lock()
	r.order, r.games = order, games
	r.mu.Unlock()

	telemetry.SetActiveGames(len(games))
	return nil
}

// Run refreshes the registry on a fixed interval until ctx is done. Refresh
// errors are logged and the stale snapshot stays in service.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	if err := r.Refresh(ctx); err != nil {
		slog.Warn("game registry refresh failed", slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				slog.Warn("game registry refresh failed", slog.Any("err", err))
			}
		}
	}
}

// SnapshotIDs returns the active game ids in the hosting service's listing
// order. The first entry is the game chat votes apply to.
func (r *Registry) SnapshotIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot returns a copy of the full game set keyed by id.
func (r *Registry) Snapshot() map[string]Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Game, len(r.games))
	for id, g := range r.games {
		out[id] = g
	}
	return out
}

// Lookup returns the game by id.
func (r *Registry) Lookup(id string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// Len returns the number of active games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// IsMyTurn reports whether it is the bot's turn in the game. Unknown games
// are reported as not our turn.
func (r *Registry) IsMyTurn(id string) bool {
	g, ok := r.Lookup(id)
	return ok && g.IsMyTurn
}

// ColorOf returns the side the bot plays in the game.
func (r *Registry) ColorOf(id string) (Color, bool) {
	g, ok := r.Lookup(id)
	return g.Color, ok
}

// PositionOf returns the game's position FEN as reported by the listing.
func (r *Registry) PositionOf(id string) (string, bool) {
	g, ok := r.Lookup(id)
	return g.FEN, ok
}

// Board implements notation.BoardSource.
func (r *Registry) Board(id string) (fen string, white bool, ok bool) {
	g, ok := r.Lookup(id)
	if !ok {
		return "", false, false
	}
	return g.FEN, g.Color == White, true
}
