// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	VotesRecorded      prometheus.Counter
	VotesRejected      prometheus.Counter
	ResignVotes        prometheus.Counter
	MovesPlayed        prometheus.Counter
	MoveFailures       prometheus.Counter
	Resignations       prometheus.Counter
	ChallengesAccepted prometheus.Counter
	ChallengesDeclined prometheus.Counter
	ChatMessages       prometheus.Counter
	ChatCommands       prometheus.Counter
	ChatDropped        prometheus.Counter
	RefreshFailures    prometheus.Counter
	StreamRestarts     prometheus.Counter
	OverlayWrites      prometheus.Counter
	OverlayHeals       prometheus.Counter
	LichessFailures    prometheus.Counter

	// Histograms (seconds)
	DecisionDuration    prometheus.Observer
	LichessCallDuration prometheus.Observer

	// Gauges
	ActiveGamesGauge prometheus.Gauge
	GameLoopsGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		VotesRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_votes_recorded_total", Help: "Number of move votes accepted into a round"})
		VotesRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_votes_rejected_total", Help: "Number of move votes dropped as unparseable or illegal"})
		ResignVotes = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_resign_votes_total", Help: "Number of resignation votes recorded"})
		MovesPlayed = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_moves_played_total", Help: "Number of moves accepted by the hosting service"})
		MoveFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_move_failures_total", Help: "Number of selected moves the hosting service rejected"})
		Resignations = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_resignations_total", Help: "Number of games resigned (vote or watchdog)"})
		ChallengesAccepted = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_challenges_accepted_total", Help: "Number of incoming challenges accepted"})
		ChallengesDeclined = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_challenges_declined_total", Help: "Number of incoming challenges declined"})
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_chat_messages_total", Help: "Number of chat messages ingested"})
		ChatCommands = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_chat_commands_total", Help: "Number of recognized chat commands"})
		ChatDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_chat_dropped_total", Help: "Number of chat messages dropped by the bounded buffer"})
		RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_registry_refresh_failures_total", Help: "Number of failed ongoing-game refreshes"})
		StreamRestarts = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_event_stream_restarts_total", Help: "Number of event stream reconnects"})
		OverlayWrites = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_overlay_writes_total", Help: "Number of overlay state file writes"})
		OverlayHeals = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_overlay_heals_total", Help: "Number of overlay state files recreated after corruption"})
		LichessFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chessbot_lichess_call_failures_total", Help: "Number of failed Lichess API calls"})
		DecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chessbot_decision_duration_seconds", Help: "Arbiter decision cycle duration seconds", Buckets: prometheus.DefBuckets})
		LichessCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chessbot_lichess_call_duration_seconds", Help: "Lichess API call duration seconds", Buckets: prometheus.DefBuckets})
		ActiveGamesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chessbot_active_games", Help: "Current number of ongoing games"})
		GameLoopsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chessbot_game_loops", Help: "Current number of per-game decision loops"})
	})
}

// Nil-safe increment helpers so packages can record metrics without caring
// whether Init ran (it does not in unit tests).

func IncVoteRecorded()      { if VotesRecorded != nil { VotesRecorded.Inc() } }
func IncVoteRejected()      { if VotesRejected != nil { VotesRejected.Inc() } }
func IncResignVote()        { if ResignVotes != nil { ResignVotes.Inc() } }
func IncMovePlayed()        { if MovesPlayed != nil { MovesPlayed.Inc() } }
func IncMoveFailure()       { if MoveFailures != nil { MoveFailures.Inc() } }
func IncResignation()       { if Resignations != nil { Resignations.Inc() } }
func IncChallengeAccepted() { if ChallengesAccepted != nil { ChallengesAccepted.Inc() } }
func IncChallengeDeclined() { if ChallengesDeclined != nil { ChallengesDeclined.Inc() } }
func IncChatMessage()       { if ChatMessages != nil { ChatMessages.Inc() } }
func IncChatCommand()       { if ChatCommands != nil { ChatCommands.Inc() } }
func IncChatDropped()       { if ChatDropped != nil { ChatDropped.Inc() } }
func IncRefreshFailure()    { if RefreshFailures != nil { RefreshFailures.Inc() } }
func IncStreamRestart()     { if StreamRestarts != nil { StreamRestarts.Inc() } }
func IncOverlayWrite()      { if OverlayWrites != nil { OverlayWrites.Inc() } }
func IncOverlayHeal()       { if OverlayHeals != nil { OverlayHeals.Inc() } }
func IncLichessCallFailure() { if LichessFailures != nil { LichessFailures.Inc() } }

// ObserveLichessCall records the duration of one API call.
func ObserveLichessCall(d time.Duration) { if LichessCallDuration != nil { LichessCallDuration.Observe(d.Seconds()) } }

// SetActiveGames records the size of the latest registry snapshot.
func SetActiveGames(n int) { if ActiveGamesGauge != nil { ActiveGamesGauge.Set(float64(n)) } }

// SetGameLoops records the number of running per-game decision loops.
func SetGameLoops(n int) { if GameLoopsGauge != nil { GameLoopsGauge.Set(float64(n)) } }

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil { obs.Observe(d.Seconds()) }
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok { return s }
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
	return slog.Default()
}
