package lichess_test

import (
	"context"
	"strings"
	"testing"

	"github.com/onnwee/chess-anarchy/lichess"
	"github.com/onnwee/chess-anarchy/testutil"
)

// TestClientAgainstMockServer drives a session's worth of calls against the
// canned mock server.
func TestClientAgainstMockServer(t *testing.T) {
	m := testutil.NewMockLichessServer(t)
	m.MockAccount("anarchybot", 5, 2, 3)
	m.MockOngoingGames(map[string]interface{}{
		"gameId":   "abc123",
		"fullId":   "abc123xyz",
		"color":    "white",
		"fen":      "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"isMyTurn": true,
		"opponent": map[string]interface{}{"id": "bob", "username": "Bob", "rating": 1500},
	})
	m.MockMoveOK("abc123", "e2e4")
	m.MockUserStatuses(map[string]bool{"bob": true, "carol": false})
	m.MockGameExport("anarchybot", "lastgame1")
	m.MockEventStream(`{"type":"gameStart","game":{"gameId":"abc123","color":"white"}}`)

	c := &lichess.Client{Token: "test-token", BaseURL: m.URL}
	ctx := context.Background()

	acct, err := c.Account(ctx)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if acct.Username != "anarchybot" || acct.Count.Win != 5 || acct.Count.Draw != 2 || acct.Count.Loss != 3 {
		t.Errorf("unexpected account: %+v", acct)
	}

	games, err := c.OngoingGames(ctx)
	if err != nil {
		t.Fatalf("OngoingGames: %v", err)
	}
	if len(games) != 1 || games[0].GameID != "abc123" || !games[0].IsMyTurn {
		t.Fatalf("unexpected games: %+v", games)
	}

	if err := c.MakeMove(ctx, "abc123", "e2e4"); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	// Unregistered paths come back as API errors.
	if err := c.MakeMove(ctx, "nope", "e2e4"); err == nil {
		t.Fatal("MakeMove on unknown game succeeded, want error")
	}

	if on, err := c.UserOnline(ctx, "bob"); err != nil || !on {
		t.Errorf("bob online = %v, %v; want true", on, err)
	}
	if on, err := c.UserOnline(ctx, "carol"); err != nil || on {
		t.Errorf("carol online = %v, %v; want false", on, err)
	}
	if on, err := c.UserOnline(ctx, "ghost"); err != nil || on {
		t.Errorf("ghost online = %v, %v; want false", on, err)
	}

	id, err := c.LastGameID(ctx, "anarchybot")
	if err != nil {
		t.Fatalf("LastGameID: %v", err)
	}
	if id != "lastgame1" {
		t.Errorf("id = %q, want lastgame1", id)
	}

	var events []lichess.Event
	err = c.StreamEvents(ctx, func(ev lichess.Event) { events = append(events, ev) })
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("StreamEvents = %v, want closed-stream error", err)
	}
	if len(events) != 1 || events[0].Type != lichess.EventGameStart {
		t.Fatalf("events = %+v", events)
	}
}
