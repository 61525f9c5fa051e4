package overlay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type fakeAccount struct {
	mu          sync.Mutex
	wins        int
	draws       int
	losses      int
	totalsErr   error
	totalsCalls int
	lastGame    string
	lastErr     error
}

func (f *fakeAccount) AccountTotals(context.Context) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalsCalls++
	if f.totalsErr != nil {
		return 0, 0, 0, f.totalsErr
	}
	return f.wins, f.draws, f.losses, nil
}

func (f *fakeAccount) LastGameID(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastGame, f.lastErr
}

func (f *fakeAccount) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalsCalls
}

type fakeGames struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeGames) SnapshotIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func (f *fakeGames) set(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = ids
}

func publisherFixture(t *testing.T, client *fakeAccount, games *fakeGames) (*Publisher, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "overlay.json"))
	p := NewPublisher(store, games, client, "anarchybot", "https://lichess.org", 0)
	return p, store
}

func TestPublishHealsCorruptFile(t *testing.T) {
	client := &fakeAccount{lastGame: "abcd1234", totalsErr: errors.New("offline")}
	p, store := publisherFixture(t, client, &fakeGames{})
	if err := os.WriteFile(store.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p.publishOnce(context.Background())

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load after heal: %v", err)
	}
	want := State{URL: "https://lichess.org/abcd1234"}
	if got != want {
		t.Fatalf("healed state = %+v, want %+v", got, want)
	}
}

func TestPublishHealsMissingFileWithoutLastGame(t *testing.T) {
	client := &fakeAccount{lastErr: errors.New("no export"), totalsErr: errors.New("offline")}
	p, store := publisherFixture(t, client, &fakeGames{})

	p.publishOnce(context.Background())

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load after heal: %v", err)
	}
	if got != (State{}) {
		t.Fatalf("healed state = %+v, want zeroed", got)
	}
}

func TestIdleSessionRefreshesTotalsOnce(t *testing.T) {
	client := &fakeAccount{wins: 5, draws: 2, losses: 3}
	games := &fakeGames{}
	p, store := publisherFixture(t, client, games)
	if err := store.Save(State{URL: "https://lichess.org/old1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctx := context.Background()
	p.publishOnce(ctx)
	p.publishOnce(ctx)
	p.publishOnce(ctx)

	if got := client.calls(); got != 1 {
		t.Fatalf("AccountTotals calls = %d, want 1 per idle session", got)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := State{Wins: 5, Draws: 2, Losses: 3, URL: "https://lichess.org/old1"}
	if got != want {
		t.Fatalf("state = %+v, want %+v", got, want)
	}
}

func TestTotalsFetchFailureRetriesNextCycle(t *testing.T) {
	client := &fakeAccount{totalsErr: errors.New("offline")}
	games := &fakeGames{}
	p, store := publisherFixture(t, client, games)
	if err := store.Save(State{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctx := context.Background()
	p.publishOnce(ctx)
	client.mu.Lock()
	client.totalsErr = nil
	client.wins = 9
	client.mu.Unlock()
	p.publishOnce(ctx)

	if got := client.calls(); got != 2 {
		t.Fatalf("AccountTotals calls = %d, want retry after failure", got)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Wins != 9 {
		t.Fatalf("Wins = %d, want 9 after retry", got.Wins)
	}
}

func TestNewGameSwapsURL(t *testing.T) {
	client := &fakeAccount{}
	games := &fakeGames{}
	games.set("newgame1")
	p, store := publisherFixture(t, client, games)
	if err := store.Save(State{Wins: 4, URL: "https://lichess.org/oldgame9"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p.publishOnce(context.Background())

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.URL != "https://lichess.org/newgame1" {
		t.Fatalf("URL = %q, want new game URL", got.URL)
	}
	if got.Wins != 4 {
		t.Fatalf("Wins = %d, counters must survive a URL swap", got.Wins)
	}
	if got := client.calls(); got != 0 {
		t.Fatalf("AccountTotals calls = %d, want none while a game is live", got)
	}
}

func TestMatchingURLWritesNothing(t *testing.T) {
	client := &fakeAccount{}
	games := &fakeGames{}
	games.set("game1")
	p, store := publisherFixture(t, client, games)
	if err := store.Save(State{URL: "https://lichess.org/game1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	p.publishOnce(context.Background())

	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("file rewritten although the URL already matches")
	}
}

func TestURLSwapOpensNewIdleSession(t *testing.T) {
	client := &fakeAccount{wins: 1}
	games := &fakeGames{}
	p, store := publisherFixture(t, client, games)
	if err := store.Save(State{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ctx := context.Background()

	// First idle session consumes its one totals fetch.
	p.publishOnce(ctx)
	if got := client.calls(); got != 1 {
		t.Fatalf("AccountTotals calls = %d, want 1", got)
	}

	// A game comes and goes; the next idle session fetches again.
	games.set("game2")
	p.publishOnce(ctx)
	games.set()
	p.publishOnce(ctx)

	if got := client.calls(); got != 2 {
		t.Fatalf("AccountTotals calls = %d, want a fresh fetch after the game", got)
	}
}

func TestGameIDFromURL(t *testing.T) {
	cases := []struct{ url, want string }{
		{"https://lichess.org/abcd1234", "abcd1234"},
		{"https://lichess.org/abcd1234/", "abcd1234"},
		{"", ""},
		{"abcd1234", "abcd1234"},
	}
	for _, tc := range cases {
		if got := gameIDFromURL(tc.url); got != tc.want {
			t.Errorf("gameIDFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
