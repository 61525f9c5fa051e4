// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/chess-anarchy/db"
	"github.com/onnwee/chess-anarchy/game"
	"github.com/onnwee/chess-anarchy/overlay"
	"github.com/onnwee/chess-anarchy/vote"
)

// Deps are the shared components the handlers read. History is nil-safe when
// persistence is disabled; Ready may be nil when no session probe is wired.
type Deps struct {
	Games   *game.Registry
	Votes   *vote.Ledger
	Overlay *overlay.Store
	History *db.History
	Account string
	Ready   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps    Deps
	started time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps, started: time.Now()}
}

// HandleHealthz responds to liveness probe requests. Serving the request is
// the liveness condition; external dependencies belong to readiness.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with named dependency
// checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := []struct {
		name string
		fn   func() error
	}{
		{"lichess", func() error {
			if h.deps.Ready == nil {
				return nil
			}
			return h.deps.Ready(ctx)
		}},
		{"database", func() error { return h.deps.History.Ping(ctx) }},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports the bot's live state: active games, vote round sizes,
// overlay contents, and history when persistence is enabled.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}
	resp["account"] = h.deps.Account
	resp["uptime_seconds"] = int(time.Since(h.started).Seconds())

	type gameStatus struct {
		ID       string `json:"id"`
		Color    string `json:"color"`
		Opponent string `json:"opponent"`
		MyTurn   bool   `json:"my_turn"`
	}
	games := []gameStatus{}
	snapshot := h.deps.Games.Snapshot()
	for _, id := range h.deps.Games.SnapshotIDs() {
		g, ok := snapshot[id]
		if !ok {
			continue
		}
		games = append(games, gameStatus{
			ID:       g.ID,
			Color:    string(g.Color),
			Opponent: g.Opponent,
			MyTurn:   g.IsMyTurn,
		})
	}
	resp["active_games"] = games

	type roundStatus struct {
		Candidates int `json:"candidates"`
		Votes      int `json:"votes"`
	}
	rounds := map[string]roundStatus{}
	for id, round := range h.deps.Votes.Rounds() {
		if round.Empty() {
			continue
		}
		rounds[id] = roundStatus{Candidates: len(round.Candidates), Votes: round.Total()}
	}
	resp["vote_rounds"] = rounds

	if h.deps.Overlay != nil {
		if st, err := h.deps.Overlay.Load(); err == nil {
			resp["overlay"] = st
		}
	}

	if beats, err := h.deps.History.Heartbeats(ctx); err == nil && len(beats) > 0 {
		resp["heartbeats"] = beats
	}
	limit := parseIntQuery(r, "recent", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	if recent, err := h.deps.History.RecentGames(ctx, limit); err == nil && len(recent) > 0 {
		resp["recent_games"] = recent
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
