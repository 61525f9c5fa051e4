package db

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// History persists game lifecycle events and arbiter decisions. All write
// methods are best-effort: failures are logged and never propagate into the
// decision loops. A nil History (or nil DB) disables persistence entirely.
type History struct {
	DB *sql.DB
}

func (h *History) enabled() bool { return h != nil && h.DB != nil }

// GameStarted records a new game. Repeated starts for the same id (stream
// reconnects replay events) are ignored.
func (h *History) GameStarted(ctx context.Context, gameID, color, opponent string) {
	if !h.enabled() {
		return
	}
	_, err := h.DB.ExecContext(ctx,
		`INSERT INTO games(game_id, color, opponent) VALUES($1,$2,$3)
		 ON CONFLICT(game_id) DO NOTHING`,
		gameID, color, opponent)
	if err != nil {
		slog.Error("failed to record game start", slog.String("game_id", gameID), slog.Any("err", err))
	}
}

// GameFinished records a game's terminal status. Finishes for games the bot
// never saw start still get a row.
func (h *History) GameFinished(ctx context.Context, gameID, status string) {
	if !h.enabled() {
		return
	}
	_, err := h.DB.ExecContext(ctx,
		`INSERT INTO games(game_id, status, finished_at) VALUES($1,$2,NOW())
		 ON CONFLICT(game_id) DO UPDATE SET status=EXCLUDED.status, finished_at=NOW()`,
		gameID, status)
	if err != nil {
		slog.Error("failed to record game finish", slog.String("game_id", gameID), slog.Any("err", err))
	}
}

// RecordDecision appends one arbiter decision: the chosen candidate, its
// votes, the round total, and what the hosting service said.
func (h *History) RecordDecision(ctx context.Context, gameID, candidate string, votes, total int, outcome string) {
	if !h.enabled() {
		return
	}
	_, err := h.DB.ExecContext(ctx,
		`INSERT INTO decisions(game_id, candidate, votes, total_votes, outcome) VALUES($1,$2,$3,$4,$5)`,
		gameID, candidate, votes, total, outcome)
	if err != nil {
		slog.Error("failed to record decision", slog.String("game_id", gameID), slog.Any("err", err))
	}
}

// Heartbeat upserts a liveness timestamp for a worker into the kv table.
func (h *History) Heartbeat(ctx context.Context, job string) {
	if !h.enabled() {
		return
	}
	_, err := h.DB.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		"job_"+job+"_last", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		slog.Error("failed to record heartbeat", slog.String("job", job), slog.Any("err", err))
	}
}

// Ping reports database connectivity. Disabled persistence is always healthy.
func (h *History) Ping(ctx context.Context) error {
	if !h.enabled() {
		return nil
	}
	return h.DB.PingContext(ctx)
}

// Heartbeats returns the last-run timestamp per worker, keyed by job name.
// Returns nil when persistence is disabled.
func (h *History) Heartbeats(ctx context.Context) (map[string]string, error) {
	if !h.enabled() {
		return nil, nil
	}
	rows, err := h.DB.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key LIKE 'job_%_last' ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		job := strings.TrimSuffix(strings.TrimPrefix(key, "job_"), "_last")
		out[job] = value
	}
	return out, rows.Err()
}

// GameRecord is one row of the games table.
type GameRecord struct {
	GameID     string     `json:"game_id"`
	Color      string     `json:"color"`
	Opponent   string     `json:"opponent"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RecentGames returns up to limit games, newest first. Returns nil when
// persistence is disabled.
func (h *History) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if !h.enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.DB.QueryContext(ctx,
		`SELECT game_id, COALESCE(color,''), COALESCE(opponent,''), COALESCE(status,''), started_at, finished_at
		 FROM games ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var rec GameRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.GameID, &rec.Color, &rec.Opponent, &rec.Status, &rec.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			rec.FinishedAt = &finished.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
