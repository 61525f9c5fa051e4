package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RetentionPolicy defines which finished games are pruned from history.
type RetentionPolicy struct {
	// KeepLastNDays: games older than this many days are eligible for pruning (0 = disabled)
	KeepLastNDays int
	// KeepLastNGames: keep only the N most recent games (0 = disabled)
	KeepLastNGames int
	// DryRun: when true, log actions but don't delete rows
	DryRun bool
	// Interval: how often to run the cleanup job
	Interval time.Duration
}

// LoadRetentionPolicy loads retention policy configuration from environment variables.
func LoadRetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{
		Interval: 6 * time.Hour, // Default to run every 6 hours
	}

	// Load keep days policy
	if s := os.Getenv("RETENTION_KEEP_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNDays = n
		}
	}

	// Load keep count policy
	if s := os.Getenv("RETENTION_KEEP_COUNT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNGames = n
		}
	}

	// Load dry-run mode
	if os.Getenv("RETENTION_DRY_RUN") == "1" {
		policy.DryRun = true
	}

	// Load interval
	if s := os.Getenv("RETENTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			policy.Interval = d
		}
	}

	return policy
}

// StartRetentionJob runs a background job that periodically prunes old game
// history according to the configured retention policy.
func StartRetentionJob(ctx context.Context, dbc *sql.DB) {
	policy := LoadRetentionPolicy()

	// Skip if no retention policy is configured
	if policy.KeepLastNDays == 0 && policy.KeepLastNGames == 0 {
		slog.Info("retention job disabled (no policy configured)")
		return
	}

	slog.Info("retention job starting",
		slog.Int("keep_days", policy.KeepLastNDays),
		slog.Int("keep_count", policy.KeepLastNGames),
		slog.Bool("dry_run", policy.DryRun),
		slog.Duration("interval", policy.Interval))

	// Run immediately on start
	if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
		slog.Warn("retention cleanup failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
				slog.Warn("retention cleanup failed", slog.Any("err", err))
			}
		}
	}
}

// runRetentionCleanup performs a single retention cleanup cycle.
func runRetentionCleanup(ctx context.Context, dbc *sql.DB, policy RetentionPolicy) error {
	logger := slog.Default().With(
		slog.String("component", "retention_cleanup"),
		slog.Bool("dry_run", policy.DryRun),
	)

	// Build the set of game IDs that should be retained
	retained := make(map[string]struct{})

	// Policy 1: Keep games newer than N days
	if policy.KeepLastNDays > 0 {
		cutoff := time.Now().Add(-time.Duration(policy.KeepLastNDays) * 24 * time.Hour)
		rows, err := dbc.QueryContext(ctx,
			`SELECT game_id FROM games WHERE started_at >= $1`, cutoff)
		if err != nil {
			return fmt.Errorf("query recent games: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				retained[id] = struct{}{}
			}
		}
		if err := rows.Close(); err != nil {
			logger.Warn("failed to close rows", slog.Any("err", err))
		}
		logger.Debug("identified games to retain by date", slog.Int("count", len(retained)))
	}

	// Policy 2: Keep last N games (most recent by start time)
	if policy.KeepLastNGames > 0 {
		rows, err := dbc.QueryContext(ctx,
			`SELECT game_id FROM games ORDER BY started_at DESC LIMIT $1`, policy.KeepLastNGames)
		if err != nil {
			return fmt.Errorf("query last n games: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				retained[id] = struct{}{}
			}
		}
		if err := rows.Close(); err != nil {
			logger.Warn("failed to close rows", slog.Any("err", err))
		}
		logger.Debug("identified games to retain by count", slog.Int("retained_count", len(retained)))
	}

	// Safety check: never prune games that are still in progress, whatever their age
	rows, err := dbc.QueryContext(ctx,
		`SELECT game_id FROM games WHERE finished_at IS NULL`)
	if err != nil {
		return fmt.Errorf("query active games: %w", err)
	}
	active := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			active[id] = struct{}{}
			retained[id] = struct{}{}
		}
	}
	if err := rows.Close(); err != nil {
		logger.Warn("failed to close rows", slog.Any("err", err))
	}
	logger.Debug("identified active games to protect", slog.Int("count", len(active)))

	// Everything else is eligible for pruning
	rows, err = dbc.QueryContext(ctx, `
		SELECT game_id, opponent, started_at
		FROM games
		ORDER BY started_at ASC
	`)
	if err != nil {
		return fmt.Errorf("query games: %w", err)
	}

	type target struct {
		id       string
		opponent string
		started  time.Time
	}
	var targets []target
	var skipped int
	for rows.Next() {
		var tg target
		var opponent sql.NullString
		var started sql.NullTime
		if err := rows.Scan(&tg.id, &opponent, &started); err != nil {
			logger.Warn("failed to scan game row", slog.Any("err", err))
			continue
		}
		tg.opponent = opponent.String
		tg.started = started.Time
		if _, keep := retained[tg.id]; keep {
			skipped++
			continue
		}
		targets = append(targets, tg)
	}
	if err := rows.Close(); err != nil {
		logger.Warn("failed to close rows", slog.Any("err", err))
	}

	var cleaned, errors int
	for _, tg := range targets {
		if policy.DryRun {
			logger.Info("dry-run: would prune game",
				slog.String("game_id", tg.id),
				slog.String("opponent", tg.opponent),
				slog.Time("started_at", tg.started))
			cleaned++
			continue
		}

		// Decisions reference the game by id, so they go first.
		if _, err := dbc.ExecContext(ctx, `DELETE FROM decisions WHERE game_id=$1`, tg.id); err != nil {
			logger.Warn("failed to prune decisions",
				slog.String("game_id", tg.id),
				slog.Any("err", err))
			errors++
			continue
		}
		if _, err := dbc.ExecContext(ctx, `DELETE FROM games WHERE game_id=$1`, tg.id); err != nil {
			logger.Warn("failed to prune game",
				slog.String("game_id", tg.id),
				slog.Any("err", err))
			errors++
			continue
		}

		logger.Debug("pruned game history",
			slog.String("game_id", tg.id),
			slog.String("opponent", tg.opponent),
			slog.Time("started_at", tg.started))
		cleaned++
	}

	// Log summary
	mode := "cleanup"
	if policy.DryRun {
		mode = "dry-run"
	}
	logger.Info("retention cleanup completed",
		slog.String("mode", mode),
		slog.Int("cleaned", cleaned),
		slog.Int("skipped", skipped),
		slog.Int("errors", errors))

	return nil
}
