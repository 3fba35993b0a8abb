package config

import "time"

// DefaultConfig returns the configuration used when no file or env var overrides it.
func DefaultConfig() *Config {
	return &Config{
		Backend: "auto",
		Prefer:  "claude-code",
		Run: RunConfig{
			Mode:    "full-access",
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			SamplingRate: 1,
		},
	}
}
