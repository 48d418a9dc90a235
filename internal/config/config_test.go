package config

import (
	"os"
	"testing"
	"time"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "POLL_INTERVAL", "PERSIST_READ_RECEIPTS", "CORS_ALLOWED_ORIGINS", "STORE_SLOT"} {
		t.Setenv(k, "")
	}
	chdir(t, t.TempDir())

	cfg := Load()
	if cfg.StoreBackend != BackendFile {
		t.Fatalf("backend = %q", cfg.StoreBackend)
	}
	if cfg.StoreSlot != "chatHistory" {
		t.Fatalf("slot = %q", cfg.StoreSlot)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.PersistReadReceipts {
		t.Fatalf("read receipts should default off")
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("PERSIST_READ_RECEIPTS", "true")
	t.Setenv("SYNTHETIC_STEP", "-1s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_REQUESTS", "nope")

	cfg := Load()
	if cfg.StoreBackend != BackendSQLite {
		t.Fatalf("backend = %q", cfg.StoreBackend)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if !cfg.PersistReadReceipts {
		t.Fatalf("read receipts not enabled")
	}
	if cfg.SyntheticStep != time.Millisecond {
		t.Fatalf("negative step should fall back, got %v", cfg.SyntheticStep)
	}
	if got := cfg.CORSAllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("origins = %v", got)
	}
	if cfg.RateLimitRequests != 60 {
		t.Fatalf("bad int should fall back, got %d", cfg.RateLimitRequests)
	}
}

func TestLegacyClockLocation(t *testing.T) {
	loc, err := (&Config{}).LegacyClockLocation()
	if err != nil || loc != time.UTC {
		t.Fatalf("default = %v, %v", loc, err)
	}

	loc, err = (&Config{LegacyClockTZ: "Europe/Berlin"}).LegacyClockLocation()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Fatalf("location = %v", loc)
	}

	if _, err := (&Config{LegacyClockTZ: "Mars/Olympus"}).LegacyClockLocation(); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestDraftsEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"anthropic without key", Config{DefaultLLM: "anthropic"}, false},
		{"anthropic with key", Config{DefaultLLM: "anthropic", AnthropicAPIKey: "k"}, true},
		{"openai uses its own key", Config{DefaultLLM: "openai", AnthropicAPIKey: "k"}, false},
		{"openai with key", Config{DefaultLLM: "openai", OpenAIAPIKey: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DraftsEnabled(); got != tt.want {
				t.Fatalf("DraftsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
