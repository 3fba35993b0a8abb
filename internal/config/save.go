package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

// Marshal renders cfg as YAML in the same key layout Load reads.
func Marshal(cfg *Config) ([]byte, error) {
	k := koanf.New(".")
	values := map[string]any{
		"backend":               cfg.Backend,
		"command":               cfg.Command,
		"prefer":                cfg.Prefer,
		"run.mode":              cfg.Run.Mode,
		"run.timeout":           cfg.Run.Timeout.String(),
		"run.model":             cfg.Run.Model,
		"run.work_dir":          cfg.Run.WorkDir,
		"logging.level":         cfg.Logging.Level,
		"logging.format":        cfg.Logging.Format,
		"tracing.enabled":       cfg.Tracing.Enabled,
		"tracing.endpoint":      cfg.Tracing.Endpoint,
		"tracing.sampling_rate": cfg.Tracing.SamplingRate,
		"metrics.addr":          cfg.Metrics.Addr,
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}
	}

	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Save persists the configuration to a YAML file.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
