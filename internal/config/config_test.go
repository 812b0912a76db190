package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Suggestions.InitialDelay != 30*time.Second {
		t.Errorf("InitialDelay = %v, want 30s", cfg.Suggestions.InitialDelay)
	}
	if cfg.Suggestions.MemoryEntries != 8 {
		t.Errorf("MemoryEntries = %d, want 8", cfg.Suggestions.MemoryEntries)
	}
	if cfg.Suggestions.SeedLimit != 3 {
		t.Errorf("SeedLimit = %d, want 3", cfg.Suggestions.SeedLimit)
	}
	if cfg.Playback.SubtitleMode != SubtitleModeSmart {
		t.Errorf("SubtitleMode = %q, want smart", cfg.Playback.SubtitleMode)
	}
	if cfg.IsConfigured() {
		t.Error("default config should not be configured")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `server:
  url: http://media.local:8096
  server_id: srv
  user_id: u1
suggestions:
  initial_delay: 45s
  concurrency: 4
playback:
  subtitle_mode: only_forced
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KINOTV_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.IsConfigured() {
		t.Error("expected configured server")
	}
	if cfg.Suggestions.InitialDelay != 45*time.Second {
		t.Errorf("InitialDelay = %v, want 45s", cfg.Suggestions.InitialDelay)
	}
	if cfg.Suggestions.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Suggestions.Concurrency)
	}
	if cfg.Suggestions.SeedLimit != 3 {
		t.Errorf("unset keys should keep defaults, SeedLimit = %d", cfg.Suggestions.SeedLimit)
	}
	if cfg.Playback.SubtitleMode != SubtitleModeOnlyForced {
		t.Errorf("SubtitleMode = %q", cfg.Playback.SubtitleMode)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("env override not applied, Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("playback:\n  subtitle_mode: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(viper.New(), path); err == nil {
		t.Error("Load() should reject an unknown subtitle mode")
	}
}

func TestSaveServer_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	v := viper.New()
	if _, err := Load(v, path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	v.SetConfigFile(path)

	server := ServerConfig{Type: SourceTypeJellyfin, URL: "http://x", ServerID: "srv", UserID: "u1", Username: "ann"}
	if err := SaveServer(v, server); err != nil {
		t.Fatalf("SaveServer() error = %v", err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, server)
	}

	if err := ClearServer(v); err != nil {
		t.Fatalf("ClearServer() error = %v", err)
	}
	cfg, _ = Load(viper.New(), path)
	if cfg.IsConfigured() {
		t.Error("config still configured after ClearServer")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandHome("~/logs/a.log")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "logs", "a.log"); got != want {
		t.Errorf("ExpandHome() = %q, want %q", got, want)
	}
	if got, _ := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}
