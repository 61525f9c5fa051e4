package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chess-anarchy/db"
	"github.com/onnwee/chess-anarchy/telemetry"
	"github.com/onnwee/chess-anarchy/vote"
)

// MovePlayer is the slice of the hosting client the arbiter needs.
type MovePlayer interface {
	MakeMove(ctx context.Context, gameID, move string) error
	Resign(ctx context.Context, gameID string) error
}

// SelectFunc picks the winning candidate from a drained round. Returning
// false means no move should be made this cycle. Alternate selection policies
// (weighted, threshold) plug in here without touching the cycle itself.
type SelectFunc func(round vote.Round) (string, bool)

// FirstCandidate is the "anarchy" policy: the first non-resignation candidate
// in insertion order wins, regardless of count.
func FirstCandidate(round vote.Round) (string, bool) {
	for _, cand := range round.Candidates {
		if cand != vote.Resign {
			return cand, true
		}
	}
	return "", false
}

// Arbiter runs one decision loop per active game. A supervisor tick
// reconciles the set of running loops against the registry snapshot: new ids
// get a loop, and a loop retires itself once its id disappears.
type Arbiter struct {
	games  *Registry
	votes  *vote.Ledger
	client MovePlayer
	choose SelectFunc
	hist   *db.History

	tick           time.Duration
	minResignVotes int
	minResignRatio float64

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup

	lastBeat time.Time
}

// NewArbiter wires an arbiter over the registry, ledger, and hosting client.
// hist may be nil when game history persistence is disabled.
func NewArbiter(games *Registry, votes *vote.Ledger, client MovePlayer, hist *db.History, tick time.Duration, minResignVotes int, minResignRatio float64) *Arbiter {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Arbiter{
		games:          games,
		votes:          votes,
		client:         client,
		choose:         FirstCandidate,
		hist:           hist,
		tick:           tick,
		minResignVotes: minResignVotes,
		minResignRatio: minResignRatio,
		running:        make(map[string]struct{}),
	}
}

// Run supervises per-game decision loops until ctx is done, then waits for
// them to drain.
func (a *Arbiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return nil
		case <-ticker.C:
			a.reconcile(ctx)
		}
	}
}

// reconcile starts a decision loop for every snapshot id that lacks one.
func (a *Arbiter) reconcile(ctx context.Context) {
	ids := a.games.SnapshotIDs()
	a.mu.Lock()
	for _, id := range ids {
		if _, ok := a.running[id]; ok {
			continue
		}
		a.running[id] = struct{}{}
		a.wg.Add(1)
		go a.watchGame(ctx, id)
	}
	n := len(a.running)
	a.mu.Unlock()

	telemetry.SetGameLoops(n)
	if time.Since(a.lastBeat) > 30*time.Second {
		a.lastBeat = time.Now()
		a.hist.Heartbeat(ctx, "arbiter")
	}
}

// watchGame runs the decision cycle for one game until it disappears from
// the registry or ctx is done.
func (a *Arbiter) watchGame(ctx context.Context, id string) {
	defer func() {
		a.mu.Lock()
		delete(a.running, id)
		telemetry.SetGameLoops(len(a.running))
		a.mu.Unlock()
		a.wg.Done()
	}()

	slog.Info("game loop started", slog.String("game_id", id))
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := a.decideOnce(ctx, id); done {
				slog.Info("game loop finished", slog.String("game_id", id))
				return
			}
		}
	}
}

// decideOnce runs one decision cycle for the game. It reports true when the
// game is gone and the loop should retire.
func (a *Arbiter) decideOnce(ctx context.Context, id string) bool {
	g, ok := a.games.Lookup(id)
	if !ok {
		return true
	}
	// Votes accumulate while the opponent is thinking; acting on them
	// before our turn would only burn candidates on server rejections.
	if !g.IsMyTurn {
		return false
	}
	round := a.votes.DrainRound(id)
	if round.Empty() {
		return false
	}
	telemetry.TimeFunc(telemetry.DecisionDuration, func() {
		a.act(ctx, id, round)
	})
	return false
}

// act applies the resignation rule, then the selection policy, to a drained
// round.
func (a *Arbiter) act(ctx context.Context, id string, round vote.Round) {
	ctx, span := telemetry.StartSpan(ctx, "arbiter", "arbiter.act",
		attribute.String("game_id", id))
	defer span.End()

	total := round.Total()
	resigns := round.Counts[vote.Resign]
	if total >= a.minResignVotes && float64(resigns)/float64(total) >= a.minResignRatio {
		slog.Warn("chat voted to resign",
			slog.String("game_id", id),
			slog.Int("resign_votes", resigns),
			slog.Int("total_votes", total))
		outcome := "resigned"
		if err := a.client.Resign(ctx, id); err != nil {
			slog.Error("resign request failed", slog.String("game_id", id), slog.Any("err", err))
			telemetry.RecordError(span, err)
			outcome = "resign_failed"
		} else {
			telemetry.IncResignation()
			telemetry.SetSpanSuccess(span)
		}
		// A resignation decision completes the round either way.
		a.votes.ClearRound(id)
		a.hist.RecordDecision(ctx, id, vote.Resign, resigns, total, outcome)
		return
	}

	cand, ok := a.choose(round)
	if !ok {
		// Resignation was the only candidate but the rule did not fire.
		// Leave the round intact for the next cycle.
		return
	}

	if err := a.client.MakeMove(ctx, id, cand); err != nil {
		slog.Warn("move rejected",
			slog.String("game_id", id),
			slog.String("move", cand),
			slog.Any("err", err))
		telemetry.IncMoveFailure()
		telemetry.RecordError(span, err)
		// Keep the other candidates for re-selection, but open voting to
		// everyone again: the round was attempted.
		a.votes.DiscardCandidate(id, cand)
		a.votes.ClearVoters(id)
		a.hist.RecordDecision(ctx, id, cand, round.Counts[cand], total, "rejected")
		return
	}

	slog.Info("move played",
		slog.String("game_id", id),
		slog.String("move", cand),
		slog.Int("votes", round.Counts[cand]),
		slog.Int("total_votes", total))
	telemetry.IncMovePlayed()
	telemetry.SetSpanSuccess(span)
	a.votes.ClearRound(id)
	a.hist.RecordDecision(ctx, id, cand, round.Counts[cand], total, "played")
}
