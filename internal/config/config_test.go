package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
store:
  backend: file
  dir: /tmp/pos-data
sync:
  display_poll_interval: 50ms
  order_poll_interval: 150ms
  completed_retention: 45s
http:
  port: 8080
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Dir != "/tmp/pos-data" {
		t.Errorf("dir = %q", cfg.Store.Dir)
	}
	if cfg.Sync.DisplayPollInterval != 50*time.Millisecond {
		t.Errorf("display poll = %v", cfg.Sync.DisplayPollInterval)
	}
	if cfg.Sync.CompletedRetention != 45*time.Second {
		t.Errorf("retention = %v", cfg.Sync.CompletedRetention)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
}

func TestDefaultsFillOmittedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Sync.DisplayPollInterval != 80*time.Millisecond {
		t.Errorf("display poll default = %v", cfg.Sync.DisplayPollInterval)
	}
	if cfg.Sync.OrderPollInterval != 100*time.Millisecond {
		t.Errorf("order poll default = %v", cfg.Sync.OrderPollInterval)
	}
	if cfg.Sync.CompletedRetention != 30*time.Second {
		t.Errorf("retention default = %v", cfg.Sync.CompletedRetention)
	}
	if cfg.HTTP.Port != 3000 {
		t.Errorf("port default = %d", cfg.HTTP.Port)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config should fail")
	}
}
