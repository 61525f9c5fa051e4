// Package lichess is a thin client for the slice of the Lichess API the bot
// needs: account info, ongoing games, bot moves and resignation, challenge
// handling, user presence, game export, and the account event stream.
package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/chess-anarchy/telemetry"
)

// DefaultBaseURL is the public Lichess API host.
const DefaultBaseURL = "https://lichess.org"

// callTimeout bounds unary API calls. Streaming requests are exempt.
const callTimeout = 10 * time.Second

// Client talks to the Lichess API with a personal access token carrying the
// bot:play scope. The zero value is not usable; set Token. BaseURL and
// HTTPClient exist so tests can point the client at a local server.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client

	once   sync.Once
	unary  *http.Client
	stream *http.Client
}

func (c *Client) init() {
	c.once.Do(func() {
		base := c.HTTPClient
		if base == nil {
			src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token})
			base = oauth2.NewClient(context.Background(), src)
		}
		unary := *base
		unary.Timeout = callTimeout
		c.unary = &unary
		stream := *base
		stream.Timeout = 0
		c.stream = &stream
	})
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// do executes one unary API call, decoding a JSON body into out when out is
// non-nil. Non-2xx responses become errors carrying the API's error message.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	c.init()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.unary.Do(req)
	telemetry.ObserveLichessCall(time.Since(start))
	if err != nil {
		telemetry.IncLichessCallFailure()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("error", cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.IncLichessCallFailure()
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// openNDJSON issues a GET expecting an NDJSON body and returns it open after
// the status check. The caller owns the body.
func (c *Client) openNDJSON(ctx context.Context, hc *http.Client, path string) (io.ReadCloser, error) {
	c.init()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")
	resp, err := hc.Do(req)
	if err != nil {
		telemetry.IncLichessCallFailure()
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.IncLichessCallFailure()
		err := apiError(resp)
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("error", cerr))
		}
		return nil, err
	}
	return resp.Body, nil
}

// apiError turns a non-2xx response into an error, preferring the message the
// API puts in the body.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("lichess: %s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("lichess: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
}

// Account fetches the authenticated account, including lifetime game totals.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/api/account", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// AccountTotals returns the account's lifetime win/draw/loss counts.
func (c *Client) AccountTotals(ctx context.Context) (wins, draws, losses int, err error) {
	acct, err := c.Account(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	return acct.Count.Win, acct.Count.Draw, acct.Count.Loss, nil
}

// OngoingGames lists the games the account is currently playing, in the
// server's ordering.
func (c *Client) OngoingGames(ctx context.Context) ([]OngoingGame, error) {
	var payload struct {
		NowPlaying []OngoingGame `json:"nowPlaying"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/account/playing", nil, &payload); err != nil {
		return nil, err
	}
	return payload.NowPlaying, nil
}

// MakeMove submits a coordinate-notation move. The server validates legality
// and turn order; a rejected move comes back as an error.
func (c *Client) MakeMove(ctx context.Context, gameID, move string) error {
	return c.do(ctx, http.MethodPost,
		"/api/bot/game/"+url.PathEscape(gameID)+"/move/"+url.PathEscape(move), nil, nil)
}

// Resign resigns the game on behalf of the bot.
func (c *Client) Resign(ctx context.Context, gameID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/bot/game/"+url.PathEscape(gameID)+"/resign", nil, nil)
}

// AcceptChallenge accepts an incoming challenge.
func (c *Client) AcceptChallenge(ctx context.Context, challengeID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/challenge/"+url.PathEscape(challengeID)+"/accept", nil, nil)
}

// DeclineChallenge declines an incoming challenge.
func (c *Client) DeclineChallenge(ctx context.Context, challengeID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/challenge/"+url.PathEscape(challengeID)+"/decline", nil, nil)
}

// CreateChallenge challenges a user to a real-time game. Clock values are in
// seconds.
func (c *Client) CreateChallenge(ctx context.Context, username string, rated bool, limitSec, incrementSec int) error {
	form := url.Values{}
	form.Set("rated", strconv.FormatBool(rated))
	form.Set("clock.limit", strconv.Itoa(limitSec))
	form.Set("clock.increment", strconv.Itoa(incrementSec))
	return c.do(ctx, http.MethodPost, "/api/challenge/"+url.PathEscape(username), form, nil)
}

// UserOnline reports whether the user is currently connected to Lichess.
// Unknown users are reported offline.
func (c *Client) UserOnline(ctx context.Context, userID string) (bool, error) {
	var statuses []UserStatus
	path := "/api/users/status?ids=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &statuses); err != nil {
		return false, err
	}
	for _, s := range statuses {
		if s.ID == userID {
			return s.Online, nil
		}
	}
	return false, nil
}

// LastGameID returns the id of the account's most recently played game, or ""
// when the account has no finished games yet.
func (c *Client) LastGameID(ctx context.Context, username string) (string, error) {
	rc, err := c.openNDJSON(ctx, c.unary, "/api/games/user/"+url.PathEscape(username)+"?max=1")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("error", cerr))
		}
	}()
	dec := json.NewDecoder(rc)
	var g struct {
		ID string `json:"id"`
	}
	if err := dec.Decode(&g); err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("decode game export: %w", err)
	}
	return g.ID, nil
}
