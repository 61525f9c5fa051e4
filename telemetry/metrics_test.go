package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register (promauto panics on duplicates)

	if VotesRecorded == nil || MovesPlayed == nil || ChallengesAccepted == nil {
		t.Error("counters not initialized")
	}
	if DecisionDuration == nil || LichessCallDuration == nil {
		t.Error("histograms not initialized")
	}
	if ActiveGamesGauge == nil || GameLoopsGauge == nil {
		t.Error("gauges not initialized")
	}
}

func TestHelpersSafeAfterInit(t *testing.T) {
	Init()

	IncVoteRecorded()
	IncVoteRejected()
	IncResignVote()
	IncMovePlayed()
	IncMoveFailure()
	IncResignation()
	IncChallengeAccepted()
	IncChallengeDeclined()
	IncChatMessage()
	IncChatCommand()
	IncChatDropped()
	IncRefreshFailure()
	IncStreamRestart()
	IncOverlayWrite()
	IncOverlayHeal()
	IncLichessCallFailure()
	ObserveLichessCall(120 * time.Millisecond)
	SetActiveGames(3)
	SetGameLoops(3)
	// None of the above may panic.
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()

	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}

	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}

	if metric.Histogram == nil {
		t.Fatal("Histogram metric is nil")
	}

	if *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestTimeFuncNilObserver(t *testing.T) {
	d := TimeFunc(nil, func() {})
	if d < 0 {
		t.Errorf("duration = %v", d)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if got := GetCorrelation(context.Background()); got != "" {
		t.Errorf("GetCorrelation on bare ctx = %q, want empty", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
