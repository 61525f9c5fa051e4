package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/chess-anarchy/telemetry"
)

// PresenceClient is the slice of the hosting client the watchdog needs.
type PresenceClient interface {
	UserOnline(ctx context.Context, userID string) (bool, error)
	Resign(ctx context.Context, gameID string) error
}

// Watchdog resigns games whose human opponent disconnected. Games against
// the server AI carry no opponent id and are skipped. Presence lookup errors
// are treated as online so a flaky status endpoint cannot throw games away.
type Watchdog struct {
	games  *Registry
	client PresenceClient
	tick   time.Duration
}

// NewWatchdog wires a watchdog over the registry and hosting client.
func NewWatchdog(games *Registry, client PresenceClient, tick time.Duration) *Watchdog {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Watchdog{games: games, client: client, tick: tick}
}

// Run checks opponent presence on a fixed interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep checks every active game once.
func (w *Watchdog) sweep(ctx context.Context) {
	for _, id := range w.games.SnapshotIDs() {
		g, ok := w.games.Lookup(id)
		if !ok || g.OpponentID == "" {
			continue
		}
		online, err := w.client.UserOnline(ctx, g.OpponentID)
		if err != nil {
			slog.Debug("opponent status lookup failed",
				slog.String("game_id", g.ID),
				slog.String("opponent", g.OpponentID),
				slog.Any("err", err))
			continue
		}
		if online {
			continue
		}
		slog.Warn("opponent offline, resigning",
			slog.String("game_id", g.ID),
			slog.String("opponent", g.OpponentID))
		if err := w.client.Resign(ctx, g.ID); err != nil {
			slog.Error("watchdog resign failed", slog.String("game_id", g.ID), slog.Any("err", err))
			continue
		}
		telemetry.IncResignation()
	}
}
