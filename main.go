// Command chess-anarchy is the main entrypoint for the chat-plays-chess bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Establishes the Lichess session (fatal on failure) and mirrors ongoing
//     games into an in-memory registry.
//   - Starts background workers: chat ingest, per-game move arbiters under a
//     supervisor, the challenge gatekeeper, the opponent watchdog, and the
//     overlay publisher.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chess-anarchy/chat"
	"github.com/onnwee/chess-anarchy/config"
	"github.com/onnwee/chess-anarchy/db"
	"github.com/onnwee/chess-anarchy/game"
	"github.com/onnwee/chess-anarchy/ingest"
	"github.com/onnwee/chess-anarchy/lichess"
	"github.com/onnwee/chess-anarchy/notation"
	"github.com/onnwee/chess-anarchy/overlay"
	"github.com/onnwee/chess-anarchy/server"
	"github.com/onnwee/chess-anarchy/telemetry"
	"github.com/onnwee/chess-anarchy/vote"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateLichessReady(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chess-anarchy", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Hosting session. Failure here is fatal: without an authenticated account
	// there is nothing to play with.
	client := &lichess.Client{Token: cfg.LichessToken, BaseURL: cfg.LichessAPIBase}
	sessCtx, cancelSess := context.WithTimeout(context.Background(), 10*time.Second)
	account, err := client.Account(sessCtx)
	cancelSess()
	if err != nil {
		slog.Error("failed to establish lichess session", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("lichess session established", slog.String("account", account.Username))

	// Game history (optional). A broken database disables persistence but
	// never stops the bot.
	var hist *db.History
	if cfg.DBDsn == "" {
		slog.Info("game history disabled (DB_DSN not set)")
	} else if database, err := db.Connect(); err != nil {
		slog.Warn("game history disabled: db open failed", slog.Any("err", err))
	} else {
		// Versioned migrations first, embedded SQL as the fallback for
		// pre-migration deployments.
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		migrated := true
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
				slog.Any("err", err),
				slog.String("component", "db_migrate"))
			if err := db.Migrate(context.Background(), database); err != nil {
				slog.Warn("game history disabled: migrations failed", slog.Any("err", err))
				migrated = false
			}
		}
		if migrated {
			hist = &db.History{DB: database}
			defer func() {
				if err := database.Close(); err != nil {
					slog.Error("failed to close database", slog.Any("err", err))
				}
			}()
		} else if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}

	// Shared state and workers.
	games := game.NewRegistry(client)
	resolver := &notation.Resolver{Boards: games}
	votes := vote.NewLedger(resolver)
	arbiter := game.NewArbiter(games, votes, client, hist, cfg.ArbiterTick, cfg.MinResignVotes, cfg.MinResignRatio)
	gatekeeper := game.NewGatekeeper(games, client, hist)
	watchdog := game.NewWatchdog(games, client, cfg.WatchdogTick)
	store := overlay.NewStore(cfg.OverlayPath)
	publisher := overlay.NewPublisher(store, games, client, account.Username, cfg.GameURLBase, cfg.OverlayTick)

	var poller *chat.Poller
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat ingest disabled", slog.Any("err", err))
	} else {
		poller = chat.NewPoller(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.TwitchChannel, cfg.ChatBufferSize)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	slog.Info("starting workers",
		slog.String("channel", cfg.TwitchChannel),
		slog.Bool("chat_enabled", poller != nil),
		slog.Bool("history_enabled", hist != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return games.Run(gctx, cfg.RegistryRefreshInterval) })
	g.Go(func() error { return arbiter.Run(gctx) })
	g.Go(func() error { return gatekeeper.Run(gctx) })
	g.Go(func() error { return watchdog.Run(gctx) })
	g.Go(func() error { return publisher.Run(gctx) })
	if hist != nil {
		g.Go(func() error {
			db.StartRetentionJob(gctx, hist.DB)
			return nil
		})
	}
	if poller != nil {
		coordinator := ingest.NewCoordinator(poller, games, votes, cfg.ChatPollInterval, cfg.ChatPollBatch)
		g.Go(func() error { return poller.Run(gctx) })
		g.Go(func() error { return coordinator.Run(gctx) })
	}
	g.Go(func() error {
		deps := server.Deps{
			Games:   games,
			Votes:   votes,
			Overlay: store,
			History: hist,
			Account: account.Username,
			Ready: func(rctx context.Context) error {
				_, err := client.Account(rctx)
				return err
			},
		}
		return server.Start(gctx, deps, cfg.HTTPAddr)
	})

	if err := g.Wait(); err != nil {
		slog.Error("worker exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
