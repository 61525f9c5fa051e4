package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chess-anarchy/lichess"
)

type fakeChallenger struct {
	mu       sync.Mutex
	accepted []string
	declined []string
	events   []lichess.Event
	streamed int
}

func (f *fakeChallenger) StreamEvents(ctx context.Context, handle func(lichess.Event)) error {
	f.mu.Lock()
	f.streamed++
	events := f.events
	f.mu.Unlock()
	for _, ev := range events {
		handle(ev)
	}
	return errors.New("event stream closed by server")
}

func (f *fakeChallenger) AcceptChallenge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, id)
	return nil
}

func (f *fakeChallenger) DeclineChallenge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined = append(f.declined, id)
	return nil
}

func (f *fakeChallenger) decisions() (accepted, declined []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accepted...), append([]string(nil), f.declined...)
}

func challenge(id string, rated bool) lichess.Challenge {
	return lichess.Challenge{
		ID:         id,
		Rated:      rated,
		Speed:      "correspondence",
		Challenger: lichess.Challenger{ID: "alice", Name: "Alice"},
	}
}

func TestDecideMatrix(t *testing.T) {
	cases := []struct {
		name  string
		games []lichess.OngoingGame
		rated bool
		want  bool
	}{
		{"idle unrated", nil, false, true},
		{"idle rated", nil, true, false},
		{"busy unrated", []lichess.OngoingGame{ongoing("g1", "white", true, "bob")}, false, false},
		{"busy rated", []lichess.OngoingGame{ongoing("g1", "white", true, "bob")}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry(&fakeLister{games: tc.games})
			gk := NewGatekeeper(reg, &fakeChallenger{}, nil)
			if got := gk.Decide(context.Background(), challenge("c1", tc.rated)); got != tc.want {
				t.Fatalf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecideUsesFreshSnapshot(t *testing.T) {
	// The stale snapshot still holds a finished game; the refresh inside
	// Decide must pick up that the board is free.
	lister := &fakeLister{games: []lichess.OngoingGame{ongoing("g1", "white", true, "bob")}}
	reg := NewRegistry(lister)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	lister.set(nil, nil)

	gk := NewGatekeeper(reg, &fakeChallenger{}, nil)
	if !gk.Decide(context.Background(), challenge("c1", false)) {
		t.Fatal("Decide = false on a freshly emptied board, want true")
	}
}

func TestDecideKeepsStaleSnapshotOnRefreshFailure(t *testing.T) {
	lister := &fakeLister{games: []lichess.OngoingGame{ongoing("g1", "white", true, "bob")}}
	reg := NewRegistry(lister)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	lister.set(nil, errors.New("boom"))

	gk := NewGatekeeper(reg, &fakeChallenger{}, nil)
	if gk.Decide(context.Background(), challenge("c1", false)) {
		t.Fatal("Decide = true while stale snapshot shows an active game")
	}
}

func TestHandleChallengeEvents(t *testing.T) {
	reg := NewRegistry(&fakeLister{})
	client := &fakeChallenger{}
	gk := NewGatekeeper(reg, client, nil)
	ctx := context.Background()

	unrated := challenge("c-unrated", false)
	rated := challenge("c-rated", true)
	gk.handle(ctx, lichess.Event{Type: lichess.EventChallenge, Challenge: &unrated})
	gk.handle(ctx, lichess.Event{Type: lichess.EventChallenge, Challenge: &rated})

	accepted, declined := client.decisions()
	if len(accepted) != 1 || accepted[0] != "c-unrated" {
		t.Fatalf("accepted = %v, want [c-unrated]", accepted)
	}
	if len(declined) != 1 || declined[0] != "c-rated" {
		t.Fatalf("declined = %v, want [c-rated]", declined)
	}
}

func TestHandleIgnoresMalformedAndUnknownEvents(t *testing.T) {
	reg := NewRegistry(&fakeLister{})
	client := &fakeChallenger{}
	gk := NewGatekeeper(reg, client, nil)
	ctx := context.Background()

	gk.handle(ctx, lichess.Event{Type: lichess.EventChallenge})
	gk.handle(ctx, lichess.Event{Type: lichess.EventGameStart})
	gk.handle(ctx, lichess.Event{Type: lichess.EventGameFinish})
	gk.handle(ctx, lichess.Event{Type: "challengeCanceled"})
	gk.handle(ctx, lichess.Event{Type: "somethingNew"})

	accepted, declined := client.decisions()
	if len(accepted)+len(declined) != 0 {
		t.Fatalf("decisions made on malformed events: accepted=%v declined=%v", accepted, declined)
	}
}

func TestHandleGameLifecycleEvents(t *testing.T) {
	// hist is nil; the events must still be processed without panicking.
	reg := NewRegistry(&fakeLister{})
	gk := NewGatekeeper(reg, &fakeChallenger{}, nil)
	ctx := context.Background()

	gk.handle(ctx, lichess.Event{Type: lichess.EventGameStart, Game: &lichess.GameEvent{
		GameID: "g1", Color: "white", Opponent: lichess.Opponent{Username: "Bob"},
	}})
	gk.handle(ctx, lichess.Event{Type: lichess.EventGameFinish, Game: &lichess.GameEvent{
		GameID: "g1", Status: lichess.GameStatus{Name: "mate"},
	}})
}

func TestRunHandlesEventsThenStopsOnCancel(t *testing.T) {
	reg := NewRegistry(&fakeLister{})
	unrated := challenge("c1", false)
	client := &fakeChallenger{events: []lichess.Event{
		{Type: lichess.EventChallenge, Challenge: &unrated},
	}}
	gk := NewGatekeeper(reg, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gk.Run(ctx)
	}()

	waitFor(t, time.Second, func() bool {
		accepted, _ := client.decisions()
		return len(accepted) >= 1
	})

	// Run is sitting in its reconnect backoff now; cancel must end it.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
