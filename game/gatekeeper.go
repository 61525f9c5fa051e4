package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/chess-anarchy/db"
	"github.com/onnwee/chess-anarchy/lichess"
	"github.com/onnwee/chess-anarchy/telemetry"
)

// ChallengeClient is the slice of the hosting client the gatekeeper needs.
type ChallengeClient interface {
	StreamEvents(ctx context.Context, handle func(lichess.Event)) error
	AcceptChallenge(ctx context.Context, challengeID string) error
	DeclineChallenge(ctx context.Context, challengeID string) error
}

// Gatekeeper consumes the account event stream, accepting or declining
// incoming challenges and recording game starts and finishes.
type Gatekeeper struct {
	games  *Registry
	client ChallengeClient
	hist   *db.History
}

// NewGatekeeper wires a gatekeeper over the registry and hosting client.
// hist may be nil when game history persistence is disabled.
func NewGatekeeper(games *Registry, client ChallengeClient, hist *db.History) *Gatekeeper {
	return &Gatekeeper{games: games, client: client, hist: hist}
}

// Run keeps the event stream open until ctx is done, reconnecting with
// capped backoff after failures.
func (g *Gatekeeper) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		err := g.client.StreamEvents(ctx, func(ev lichess.Event) {
			g.handle(ctx, ev)
		})
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("event stream broke", slog.Any("err", err))
		telemetry.IncStreamRestart()
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (g *Gatekeeper) handle(ctx context.Context, ev lichess.Event) {
	switch ev.Type {
	case lichess.EventChallenge:
		if ev.Challenge == nil {
			return
		}
		g.decide(ctx, *ev.Challenge)
	case lichess.EventChallengeCanceled, lichess.EventChallengeDeclined:
		if ev.Challenge != nil {
			slog.Debug("challenge withdrawn",
				slog.String("challenge_id", ev.Challenge.ID),
				slog.String("event", ev.Type))
		}
	case lichess.EventGameStart:
		if ev.Game == nil {
			return
		}
		slog.Info("game started",
			slog.String("game_id", ev.Game.GameID),
			slog.String("color", ev.Game.Color),
			slog.String("opponent", ev.Game.Opponent.Username))
		g.hist.GameStarted(ctx, ev.Game.GameID, ev.Game.Color, ev.Game.Opponent.Username)
		g.hist.Heartbeat(ctx, "event_stream")
	case lichess.EventGameFinish:
		if ev.Game == nil {
			return
		}
		slog.Info("game finished",
			slog.String("game_id", ev.Game.GameID),
			slog.String("status", ev.Game.Status.Name))
		g.hist.GameFinished(ctx, ev.Game.GameID, ev.Game.Status.Name)
	default:
		slog.Debug("ignoring stream event", slog.String("event", ev.Type))
	}
}

// decide accepts the challenge iff the bot is idle and the challenge is
// unrated, and declines otherwise. The occupancy check runs against a fresh
// registry refresh so a game that just ended does not block the next one.
func (g *Gatekeeper) decide(ctx context.Context, ch lichess.Challenge) {
	if accept := g.Decide(ctx, ch); accept {
		slog.Info("accepting challenge",
			slog.String("challenge_id", ch.ID),
			slog.String("challenger", ch.Challenger.Name))
		if err := g.client.AcceptChallenge(ctx, ch.ID); err != nil {
			slog.Error("accept challenge failed", slog.String("challenge_id", ch.ID), slog.Any("err", err))
			return
		}
		telemetry.IncChallengeAccepted()
		return
	}
	slog.Info("declining challenge",
		slog.String("challenge_id", ch.ID),
		slog.String("challenger", ch.Challenger.Name),
		slog.Bool("rated", ch.Rated),
		slog.Int("active_games", g.games.Len()))
	if err := g.client.DeclineChallenge(ctx, ch.ID); err != nil {
		slog.Error("decline challenge failed", slog.String("challenge_id", ch.ID), slog.Any("err", err))
		return
	}
	telemetry.IncChallengeDeclined()
}

// Decide returns true when the challenge should be accepted: no active games
// after a fresh refresh, and the challenge is unrated. A failed refresh falls
// back to the previous snapshot.
func (g *Gatekeeper) Decide(ctx context.Context, ch lichess.Challenge) bool {
	if err := g.games.Refresh(ctx); err != nil {
		slog.Warn("refresh before challenge decision failed", slog.Any("err", err))
	}
	return g.games.Len() == 0 && !ch.Rated
}
