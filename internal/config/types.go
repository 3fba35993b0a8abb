package config

import "time"

// Config is the top-level agentrunner configuration.
type Config struct {
	Backend string        `koanf:"backend" validate:"required,oneof=claude-code codex auto"` // Backend id passed to agentrunner.New
	Command string        `koanf:"command"`                                                  // Executable override; empty uses the backend default
	Prefer  string        `koanf:"prefer" validate:"omitempty,oneof=claude-code codex"`      // First candidate tried by the auto backend
	Run     RunConfig     `koanf:"run"`
	Logging LoggingConfig `koanf:"logging"`
	Tracing TracingConfig `koanf:"tracing"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// RunConfig holds per-run defaults applied when the caller leaves a field empty.
type RunConfig struct {
	Mode    string        `koanf:"mode" validate:"omitempty,oneof=print full-access workspace-write"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
	Model   string        `koanf:"model"`
	WorkDir string        `koanf:"work_dir"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

type TracingConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"` // Empty disables the /metrics listener
}
