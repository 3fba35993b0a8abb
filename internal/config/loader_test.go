package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  string
		projectConfig string
		env           map[string]string
		expectBackend string
		expectMode    string
		expectTimeout time.Duration
		expectModel   string
		expectError   bool
	}{
		{
			name:          "No config files - returns defaults",
			expectBackend: "auto",
			expectMode:    "full-access",
			expectTimeout: 5 * time.Minute,
		},
		{
			name:          "Global only - sets backend and model",
			globalConfig:  "backend: codex\nrun:\n  model: gpt-5\n",
			expectBackend: "codex",
			expectMode:    "full-access",
			expectTimeout: 5 * time.Minute,
			expectModel:   "gpt-5",
		},
		{
			name:          "Project overrides global - project wins",
			globalConfig:  "backend: codex\nrun:\n  model: model-x\n  timeout: 1m\n",
			projectConfig: "run:\n  model: model-y\n  mode: print\n",
			expectBackend: "codex",
			expectMode:    "print",
			expectTimeout: time.Minute,
			expectModel:   "model-y",
		},
		{
			name:          "Env overrides files",
			projectConfig: "backend: codex\nrun:\n  timeout: 1m\n",
			env: map[string]string{
				"AGENTRUNNER_BACKEND":      "claude-code",
				"AGENTRUNNER_RUN__TIMEOUT": "90s",
			},
			expectBackend: "claude-code",
			expectMode:    "full-access",
			expectTimeout: 90 * time.Second,
		},
		{
			name:          "Unknown backend fails validation",
			projectConfig: "backend: goose\n",
			expectError:   true,
		},
		{
			name:          "Unknown mode fails validation",
			projectConfig: "run:\n  mode: yolo\n",
			expectError:   true,
		},
		{
			name:          "Sampling rate out of range fails validation",
			projectConfig: "tracing:\n  sampling_rate: 2\n",
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = writeFile(t, tmpDir, "global.yaml", tt.globalConfig)
			}
			projectPath := ""
			if tt.projectConfig != "" {
				projectPath = writeFile(t, tmpDir, "project.yaml", tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.Backend != tt.expectBackend {
				t.Errorf("backend = %q, want %q", cfg.Backend, tt.expectBackend)
			}
			if cfg.Run.Mode != tt.expectMode {
				t.Errorf("run.mode = %q, want %q", cfg.Run.Mode, tt.expectMode)
			}
			if cfg.Run.Timeout != tt.expectTimeout {
				t.Errorf("run.timeout = %v, want %v", cfg.Run.Timeout, tt.expectTimeout)
			}
			if cfg.Run.Model != tt.expectModel {
				t.Errorf("run.model = %q, want %q", cfg.Run.Model, tt.expectModel)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	globalPath := writeFile(t, tmpDir, "global.yaml", "backend: [unclosed\n")

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
	if !strings.Contains(err.Error(), "global.yaml") {
		t.Errorf("expected error to mention the file, got: %v", err)
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.yaml", "/nonexistent/project.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if cfg.Backend != "auto" {
		t.Errorf("backend = %q, want auto", cfg.Backend)
	}
}

func TestLoadFile_MissingIsError(t *testing.T) {
	if _, err := LoadFile("/nonexistent/agentrunner.yaml"); err == nil {
		t.Fatal("expected error for an explicitly named missing file")
	}
}

func TestValidate_ReportsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Mode = "yolo"
	cfg.Metrics.Addr = "not-an-address"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"run.mode", "metrics.addr"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error, got: %s", want, msg)
		}
	}
}
