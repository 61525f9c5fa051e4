package overlay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/chess-anarchy/telemetry"
)

// GameView is the slice of the game registry the publisher needs.
type GameView interface {
	SnapshotIDs() []string
}

// AccountClient is the slice of the hosting client the publisher needs.
type AccountClient interface {
	AccountTotals(ctx context.Context) (wins, draws, losses int, err error)
	LastGameID(ctx context.Context, username string) (string, error)
}

// DefaultTick is how often the publisher reconciles the state file.
const DefaultTick = 200 * time.Millisecond

// Publisher keeps the overlay file current. While a game is on the board it
// pins the file's URL to that game; between games it refreshes the win, draw
// and loss counters once per idle stretch.
type Publisher struct {
	store   *Store
	games   GameView
	client  AccountClient
	account string
	urlBase string
	tick    time.Duration

	wdlFresh   bool
	healFailed bool
}

// NewPublisher wires a publisher over the store, registry, and hosting
// client. account is the bot's username, used to find the most recent game
// when the file has to be rebuilt. urlBase is the public game URL prefix.
func NewPublisher(store *Store, games GameView, client AccountClient, account, urlBase string, tick time.Duration) *Publisher {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Publisher{
		store:   store,
		games:   games,
		client:  client,
		account: account,
		urlBase: strings.TrimRight(urlBase, "/") + "/",
		tick:    tick,
	}
}

// Run reconciles the overlay file on a fixed interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

// publishOnce runs one reconcile cycle.
func (p *Publisher) publishOnce(ctx context.Context) {
	st, err := p.store.Load()
	if err != nil {
		st, err = p.heal(ctx, err)
		if err != nil {
			return
		}
	}

	ids := p.games.SnapshotIDs()
	if len(ids) == 0 {
		p.refreshTotals(ctx, st)
		return
	}

	current := ids[0]
	if gameIDFromURL(st.URL) == current {
		return
	}
	st.URL = p.urlBase + current
	if err := p.store.Save(st); err != nil {
		slog.Warn("overlay url update failed", slog.Any("err", err))
		return
	}
	telemetry.IncOverlayWrite()
	// A new game on display opens a new idle session afterwards.
	p.wdlFresh = false
	slog.Info("overlay url updated", slog.String("game_id", current), slog.String("url", st.URL))
}

// heal recreates an unreadable or unparsable state file with zeroed counters
// and a best-effort URL. A second consecutive heal failure is a hard error;
// either way the cycle is skipped.
func (p *Publisher) heal(ctx context.Context, cause error) (State, error) {
	st := State{}
	if id, err := p.client.LastGameID(ctx, p.account); err != nil {
		slog.Debug("last game lookup failed during overlay heal", slog.Any("err", err))
	} else if id != "" {
		st.URL = p.urlBase + id
	}
	if err := p.store.Save(st); err != nil {
		if p.healFailed {
			slog.Error("overlay file unrecoverable",
				slog.String("path", p.store.Path()),
				slog.Any("cause", cause),
				slog.Any("err", err))
		} else {
			slog.Warn("overlay file recreation failed", slog.Any("err", err))
		}
		p.healFailed = true
		return State{}, err
	}
	slog.Warn("overlay file recreated",
		slog.String("path", p.store.Path()),
		slog.Any("cause", cause))
	telemetry.IncOverlayHeal()
	p.healFailed = false
	p.wdlFresh = false
	return st, nil
}

// refreshTotals updates the win, draw and loss counters once per idle
// session.
func (p *Publisher) refreshTotals(ctx context.Context, st State) {
	if p.wdlFresh {
		return
	}
	wins, draws, losses, err := p.client.AccountTotals(ctx)
	if err != nil {
		slog.Warn("account totals fetch failed", slog.Any("err", err))
		return
	}
	st.Wins, st.Draws, st.Losses = wins, draws, losses
	if err := p.store.Save(st); err != nil {
		slog.Warn("overlay totals update failed", slog.Any("err", err))
		return
	}
	telemetry.IncOverlayWrite()
	p.wdlFresh = true
	slog.Info("overlay totals updated",
		slog.Int("wins", wins),
		slog.Int("draws", draws),
		slog.Int("losses", losses))
}

// gameIDFromURL extracts the trailing path segment, the game id the overlay
// is currently pointing at.
func gameIDFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
