package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
// AGENTRUNNER_RUN__TIMEOUT maps to run.timeout; a double underscore separates
// nesting levels and a single underscore stays part of the key.
const EnvPrefix = "AGENTRUNNER_"

var validate = validator.New()

// Load reads and merges configuration from global and project YAML files, then
// applies AGENTRUNNER_ environment variables.
// Order of precedence (highest to lowest): env, project config, global config, defaults.
// Missing files are not errors; malformed YAML returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadOptional(k, globalPath); err != nil {
		return nil, fmt.Errorf("loading global config: %w", err)
	}
	if err := loadOptional(k, projectPath); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return finish(k)
}

// LoadFile reads configuration from an explicitly named file. Unlike Load, a
// missing file is an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", path, err)
	}
	return finish(k)
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/agentrunner/config.yaml (usually ~/.config)
// Project: agentrunner.yaml (relative to cwd)
func LoadDefault() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting config directory: %w", err)
	}

	globalPath := filepath.Join(configDir, "agentrunner", "config.yaml")
	return Load(globalPath, "agentrunner.yaml")
}

// loadOptional merges a YAML file into k. Missing files are silently skipped.
func loadOptional(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// finish layers env vars over the loaded files, decodes onto the defaults and validates.
func finish(k *koanf.Koanf) (*Config, error) {
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every offending key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", keyFor(fe), formatValidationError(fe)))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// keyFor turns a validator namespace such as "Config.Run.Mode" into "run.mode".
func keyFor(fe validator.FieldError) string {
	ns := strings.TrimPrefix(fe.StructNamespace(), "Config.")
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte", "lte":
		return fmt.Sprintf("out of range (%s %s)", e.Tag(), e.Param())
	case "hostname_port":
		return "must be host:port"
	default:
		return "invalid value"
	}
}
