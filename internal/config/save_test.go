package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestSave_RoundTrip verifies a saved file loads back to the same values
func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrunner.yaml")

	cfg := DefaultConfig()
	cfg.Backend = "codex"
	cfg.Command = "/opt/bin/codex"
	cfg.Run.Mode = "workspace-write"
	cfg.Run.Timeout = 90 * time.Second
	cfg.Run.Model = "gpt-5"
	cfg.Tracing.SamplingRate = 0.25
	cfg.Metrics.Addr = ":9090"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", *loaded, *cfg)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "config.yaml")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}
