package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LICHESS_API_BASE", "GAME_URL_BASE", "OVERLAY_PATH", "HTTP_ADDR",
		"REGISTRY_REFRESH_INTERVAL", "ARBITER_TICK", "WATCHDOG_TICK",
		"CHAT_POLL_INTERVAL", "OVERLAY_TICK", "CHAT_BUFFER_SIZE",
		"CHAT_POLL_BATCH", "MIN_RESIGN_VOTES", "MIN_RESIGN_PERCENTAGE",
	} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LichessAPIBase != "https://lichess.org" {
		t.Errorf("LichessAPIBase = %q", cfg.LichessAPIBase)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OverlayPath != "data/overlay.json" {
		t.Errorf("OverlayPath = %q", cfg.OverlayPath)
	}
	if cfg.RegistryRefreshInterval != time.Second {
		t.Errorf("RegistryRefreshInterval = %v", cfg.RegistryRefreshInterval)
	}
	if cfg.ArbiterTick != 500*time.Millisecond {
		t.Errorf("ArbiterTick = %v", cfg.ArbiterTick)
	}
	if cfg.OverlayTick != 200*time.Millisecond {
		t.Errorf("OverlayTick = %v", cfg.OverlayTick)
	}
	if cfg.ChatBufferSize != 1024 || cfg.ChatPollBatch != 128 {
		t.Errorf("chat sizing = %d/%d", cfg.ChatBufferSize, cfg.ChatPollBatch)
	}
	if cfg.MinResignVotes != 1 {
		t.Errorf("MinResignVotes = %d", cfg.MinResignVotes)
	}
	if cfg.MinResignRatio != 0.10 {
		t.Errorf("MinResignRatio = %v", cfg.MinResignRatio)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LICHESS_API_BASE", "http://localhost:9663")
	t.Setenv("ARBITER_TICK", "50ms")
	t.Setenv("MIN_RESIGN_VOTES", "3")
	t.Setenv("MIN_RESIGN_PERCENTAGE", "0.25")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LichessAPIBase != "http://localhost:9663" {
		t.Errorf("LichessAPIBase = %q", cfg.LichessAPIBase)
	}
	if cfg.ArbiterTick != 50*time.Millisecond {
		t.Errorf("ArbiterTick = %v", cfg.ArbiterTick)
	}
	if cfg.MinResignVotes != 3 {
		t.Errorf("MinResignVotes = %d", cfg.MinResignVotes)
	}
	if cfg.MinResignRatio != 0.25 {
		t.Errorf("MinResignRatio = %v", cfg.MinResignRatio)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ARBITER_TICK", "fast")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid ARBITER_TICK")
	}
	t.Setenv("ARBITER_TICK", "")
	t.Setenv("MIN_RESIGN_VOTES", "one")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid MIN_RESIGN_VOTES")
	}
}

func TestValidateLichessReady(t *testing.T) {
	t.Setenv("LICHESS_TOKEN", "lip_testtoken")
	cfg, _ := Load()
	if err := cfg.ValidateLichessReady(); err != nil {
		t.Errorf("expected valid lichess config, got %v", err)
	}
	if err := os.Unsetenv("LICHESS_TOKEN"); err != nil {
		t.Fatalf("failed to unset LICHESS_TOKEN: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateLichessReady(); err == nil {
		t.Errorf("expected error when missing LICHESS_TOKEN")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CHANNEL", "chan")
	t.Setenv("TWITCH_BOT_USERNAME", "bot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:token")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}
	if err := os.Unsetenv("TWITCH_CHANNEL"); err != nil {
		t.Fatalf("failed to unset TWITCH_CHANNEL: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when missing twitch envs")
	}
}
