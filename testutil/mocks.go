package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockLichessServer creates a test server that mocks Lichess API responses
type MockLichessServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockLichessServer creates a new mock Lichess API server
func NewMockLichessServer(t *testing.T) *MockLichessServer {
	t.Helper()
	m := &MockLichessServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockAccount adds a handler for the /api/account endpoint
func (m *MockLichessServer) MockAccount(username string, wins, draws, losses int) {
	m.Handlers["/api/account"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"id":       username,
			"username": username,
			"count": map[string]int{
				"all":  wins + draws + losses,
				"win":  wins,
				"draw": draws,
				"loss": losses,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockOngoingGames adds a handler for the /api/account/playing endpoint
func (m *MockLichessServer) MockOngoingGames(games ...map[string]interface{}) {
	m.Handlers["/api/account/playing"] = func(w http.ResponseWriter, r *http.Request) {
		if games == nil {
			games = []map[string]interface{}{}
		}
		response := map[string]interface{}{
			"nowPlaying": games,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockMoveOK adds a handler accepting one specific move in one game
func (m *MockLichessServer) MockMoveOK(gameID, move string) {
	m.Handlers["/api/bot/game/"+gameID+"/move/"+move] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{"ok": true}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockUserStatuses adds a handler for the /api/users/status endpoint.
// Users absent from the map are reported as unknown (empty response).
func (m *MockLichessServer) MockUserStatuses(online map[string]bool) {
	m.Handlers["/api/users/status"] = func(w http.ResponseWriter, r *http.Request) {
		response := []map[string]interface{}{}
		id := r.URL.Query().Get("ids")
		if on, ok := online[id]; ok {
			response = append(response, map[string]interface{}{
				"id":     id,
				"name":   id,
				"online": on,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockGameExport adds a handler for the /api/games/user/{username} export.
// An empty gameID mocks an account with no finished games.
func (m *MockLichessServer) MockGameExport(username, gameID string) {
	m.Handlers["/api/games/user/"+username] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		if gameID == "" {
			return
		}
		fmt.Fprintf(w, "{\"id\":%q}\n", gameID)
	}
}

// MockEventStream adds a handler for the /api/stream/event endpoint that
// emits the given NDJSON lines and then closes the stream.
func (m *MockLichessServer) MockEventStream(lines ...string) {
	m.Handlers["/api/stream/event"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w) // keep-alive
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
}
