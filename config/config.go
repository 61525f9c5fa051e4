// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials use ValidateLichessReady and ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Lichess
	LichessToken   string
	LichessAPIBase string
	GameURLBase    string

	// Twitch chat
	TwitchChannel     string
	TwitchBotUsername string
	TwitchOAuthToken  string

	// Database
	DBDsn string

	// Overlay
	OverlayPath string

	// HTTP
	HTTPAddr string

	// Worker tick intervals. Polling loops with fixed ticks are the
	// coordination model; these are the only knobs.
	RegistryRefreshInterval time.Duration
	ArbiterTick             time.Duration
	WatchdogTick            time.Duration
	ChatPollInterval        time.Duration
	OverlayTick             time.Duration

	// Chat ingest sizing
	ChatBufferSize int
	ChatPollBatch  int

	// Resignation rule
	MinResignVotes int
	MinResignRatio float64
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Twitch creds are missing; use ValidateChatReady() when you require chat
// ingest. Missing optional variables disable features (e.g., game history).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.LichessToken = os.Getenv("LICHESS_TOKEN")
	cfg.LichessAPIBase = os.Getenv("LICHESS_API_BASE")
	if cfg.LichessAPIBase == "" {
		cfg.LichessAPIBase = "https://lichess.org"
	}
	cfg.GameURLBase = os.Getenv("GAME_URL_BASE")
	if cfg.GameURLBase == "" {
		cfg.GameURLBase = "https://lichess.org"
	}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	// Empty disables game history; db.Connect carries the docker-compose
	// default for deployments that want it.
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.OverlayPath = os.Getenv("OVERLAY_PATH")
	if cfg.OverlayPath == "" {
		cfg.OverlayPath = "data/overlay.json"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	var err error
	if cfg.RegistryRefreshInterval, err = envDuration("REGISTRY_REFRESH_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.ArbiterTick, err = envDuration("ARBITER_TICK", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.WatchdogTick, err = envDuration("WATCHDOG_TICK", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ChatPollInterval, err = envDuration("CHAT_POLL_INTERVAL", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.OverlayTick, err = envDuration("OVERLAY_TICK", 200*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.ChatBufferSize, err = envInt("CHAT_BUFFER_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.ChatPollBatch, err = envInt("CHAT_POLL_BATCH", 128); err != nil {
		return nil, err
	}

	if cfg.MinResignVotes, err = envInt("MIN_RESIGN_VOTES", 1); err != nil {
		return nil, err
	}
	if cfg.MinResignRatio, err = envFloat("MIN_RESIGN_PERCENTAGE", 0.10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateLichessReady checks the credentials required to talk to the hosting
// service at all.
func (c *Config) ValidateLichessReady() error {
	if c.LichessToken == "" {
		return fmt.Errorf("missing lichess env: require LICHESS_TOKEN")
	}
	return nil
}

// ValidateChatReady checks required fields when chat ingest is enabled.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (integer): %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (number): %w", key, err)
	}
	return f, nil
}
