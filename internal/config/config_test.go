package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.STT.Model != "large" || cfg.STT.Language != "bn" {
		t.Fatalf("unexpected stt defaults: %+v", cfg.STT)
	}
	if cfg.Summary.Timeout != 8*time.Second {
		t.Fatalf("expected 8s summary timeout, got %s", cfg.Summary.Timeout)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Fatalf("expected desktop origins, got %v", cfg.HTTP.AllowedOrigins)
	}
	if got := cfg.Storage.DatabasePath(); got != filepath.Join("data", "minutes.sqlite3") {
		t.Fatalf("unexpected database path %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minutes.yaml")
	body := []byte(`
storage:
  data_dir: /var/lib/minutes
summary:
  mode: mock
  timeout: 3s
diarization:
  enabled: true
  mode: exec
  command: "python diarize.py"
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.RecordingsDir() != filepath.Join("/var/lib/minutes", "recordings") {
		t.Fatalf("unexpected recordings dir %q", cfg.Storage.RecordingsDir())
	}
	if cfg.Summary.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.Summary.Timeout)
	}
	if cfg.Summary.Model != "llama3.1:8b" {
		t.Fatalf("expected default model to survive partial file, got %q", cfg.Summary.Model)
	}
	if cfg.Bus.StoreDir != filepath.Join("/var/lib/minutes", "nats") {
		t.Fatalf("unexpected bus store dir %q", cfg.Bus.StoreDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINUTES_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("MINUTES_BUS_USERNAME", "alice")
	t.Setenv("MINUTES_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("MINUTES_HTTP_PORT", "9001")
	t.Setenv("MINUTES_STORAGE_PASSPHRASE", "hunter2")
	t.Setenv("MINUTES_SUMMARY_TIMEOUT", "5s")
	t.Setenv("MINUTES_SUMMARY_ENDPOINT", "http://ollama:11434/")
	t.Setenv("SIDECAR_WHISPER_LANGUAGE", "en")
	t.Setenv("PYANNOTE_AUTH_TOKEN", "hf_token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 || cfg.Bus.Servers[1] != "nats://two:4222" {
		t.Fatalf("expected 2 trimmed servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" {
		t.Fatalf("expected username override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.HTTP.Port != 9001 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Storage.Passphrase != "hunter2" {
		t.Fatalf("expected passphrase override")
	}
	if cfg.Summary.Timeout != 5*time.Second {
		t.Fatalf("expected summary timeout override, got %s", cfg.Summary.Timeout)
	}
	if cfg.Summary.Endpoint != "http://ollama:11434" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Summary.Endpoint)
	}
	if cfg.STT.Language != "en" {
		t.Fatalf("expected legacy language override, got %q", cfg.STT.Language)
	}
	if cfg.Diarization.AuthToken != "hf_token" {
		t.Fatalf("expected auth token from PYANNOTE_AUTH_TOKEN")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"exec stt without command": func(c *Config) { c.STT.Mode = "exec" },
		"unknown summary mode":     func(c *Config) { c.Summary.Mode = "gpt" },
		"long summary timeout":     func(c *Config) { c.Summary.Timeout = time.Minute },
		"half keyring":             func(c *Config) { c.Storage.KeyringService = "minutes" },
		"bad port":                 func(c *Config) { c.HTTP.Port = 0 },
		"exec diarization":         func(c *Config) { c.Diarization.Enabled = true; c.Diarization.Mode = "exec" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
