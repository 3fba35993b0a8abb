package backend

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/aristath/agentrunner/internal/process"
)

// Backend identifiers accepted by New.
const (
	TypeClaude = "claude-code"
	TypeCodex  = "codex"
	TypeAuto   = "auto"
)

// Backend is the capability set every agent CLI adapter provides.
// Version and Stream are optional; see Versioner and Streamer.
type Backend interface {
	// Name returns the backend identifier, e.g. "claude-code".
	Name() string

	// Available reports whether the agent CLI is installed and answers a version probe.
	Available(ctx context.Context) bool

	// Run executes one prompt to completion and returns the normalized result.
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// Versioner is implemented by backends that can report the CLI version.
// ok is false when the CLI is missing or the probe failed.
type Versioner interface {
	Version(ctx context.Context) (version string, ok bool)
}

// Streamer is implemented by backends that can stream a run as it happens.
// The sequence ends after the first error or done event.
type Streamer interface {
	Stream(ctx context.Context, req RunRequest) iter.Seq[StreamEvent]
}

// AsVersioner returns b's Versioner capability, if it has one.
func AsVersioner(b Backend) (Versioner, bool) {
	v, ok := b.(Versioner)
	return v, ok
}

// AsStreamer returns b's Streamer capability, if it has one.
func AsStreamer(b Backend) (Streamer, bool) {
	s, ok := b.(Streamer)
	return s, ok
}

// Config selects and configures a backend.
type Config struct {
	Type    string           // TypeClaude, TypeCodex or TypeAuto
	Command string           // Executable override; ignored by TypeAuto
	Prefer  string           // TypeCodex puts codex first in the auto backend's probe order
	Procs   *process.Manager // Optional; tracks agent subprocesses for shutdown
	Logger  *slog.Logger     // Optional; defaults to the logger carried by the context
}

// New creates a backend based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case TypeClaude:
		return NewClaudeAdapter(cfg), nil
	case TypeCodex:
		return NewCodexAdapter(cfg), nil
	case TypeAuto:
		return NewSelector(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}
