package nats

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/capitalize-ai/support-desk/internal/config"
	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/store"
)

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{NATSURL: "nats://n:4222", NATSToken: "tok", NATSCAFile: "ca.pem"}
	got := ConfigFrom(cfg)
	if got.URL != "nats://n:4222" || got.Token != "tok" || got.CAFile != "ca.pem" {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestAppendToSalvagesCorruptValue(t *testing.T) {
	e := model.Event{Sender: model.SenderOperator, TargetKey: "a@x.com", Text: "hi"}

	tests := []struct {
		name string
		cur  string
		want int
	}{
		{"missing key", "", 1},
		{"existing log", `[{"sender":"user","userEmail":"a@x.com"}]`, 2},
		{"corrupt value", `{{{`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendTo([]byte(tt.cur), e)
			if len(got) != tt.want {
				t.Fatalf("got %d events, want %d", len(got), tt.want)
			}
			if got[len(got)-1].TargetKey != "a@x.com" {
				t.Fatalf("appended event not last")
			}
		})
	}
}

func TestCreateTLSConfig(t *testing.T) {
	if _, err := createTLSConfig("ca.pem", "cert.pem", ""); err == nil {
		t.Fatalf("expected error for cert without key")
	}
	if _, err := createTLSConfig(filepath.Join(t.TempDir(), "missing.pem"), "", ""); err == nil {
		t.Fatalf("expected error for missing CA file")
	}

	ca := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(ca, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := createTLSConfig(ca, "", ""); err == nil {
		t.Fatalf("expected error for unparseable CA")
	}
}

func TestLoadWhileDisconnected(t *testing.T) {
	s := &KVStore{client: &Client{}, key: "chatHistory"}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestBackendRegistered(t *testing.T) {
	for _, name := range store.Backends() {
		if name == config.BackendNATS {
			return
		}
	}
	t.Fatalf("nats backend not registered: %v", store.Backends())
}
