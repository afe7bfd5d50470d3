package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.RuntimeURL != "http://localhost:8321" {
		t.Errorf("runtime url = %q", cfg.RuntimeURL)
	}
	if !cfg.SyncOnStartup || cfg.SyncSchedule == "" {
		t.Errorf("sync defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := `
host: 0.0.0.0
port: 9999
runtime_url: "http://runtime:8321/"
max_tokens: 2048
dev_mode: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSISTANTD_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9999 {
		t.Errorf("got %s:%d", cfg.Host, cfg.Port)
	}
	// Trailing slash is stripped.
	if cfg.RuntimeURL != "http://runtime:8321" {
		t.Errorf("runtime url = %q", cfg.RuntimeURL)
	}
	if cfg.MaxTokens != 2048 || !cfg.DevMode {
		t.Errorf("got %+v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.SyncSchedule != "@every 15m" {
		t.Errorf("sync schedule = %q", cfg.SyncSchedule)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("port: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSISTANTD_CONFIG", path)
	t.Setenv("LLAMA_STACK_URL", "http://other:8321")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("DEV_USER_EMAIL", "me@test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RuntimeURL != "http://other:8321" {
		t.Errorf("runtime url = %q", cfg.RuntimeURL)
	}
	if !cfg.DevMode || cfg.DevUserEmail != "me@test" {
		t.Errorf("dev settings: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RuntimeURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty runtime_url should fail")
	}

	cfg = DefaultConfig()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero port should fail")
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "on", " TRUE "} {
		if !truthy(v) {
			t.Errorf("%q should be truthy", v)
		}
	}
	for _, v := range []string{"", "false", "0", "off", "nope"} {
		if truthy(v) {
			t.Errorf("%q should be falsy", v)
		}
	}
}
