// Package agentrunner runs prompts through external coding-agent CLIs
// (Claude Code, Codex) behind one interface and normalizes their output.
//
//	r, err := agentrunner.New(agentrunner.Config{Backend: "auto"})
//	if err != nil {
//		return err
//	}
//	res, err := r.Run(ctx, agentrunner.RunRequest{Prompt: "Summarize README.md", Mode: agentrunner.ModePrint})
package agentrunner

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/aristath/agentrunner/internal/backend"
	"github.com/aristath/agentrunner/internal/process"
)

type (
	Backend     = backend.Backend
	Versioner   = backend.Versioner
	Streamer    = backend.Streamer
	RunRequest  = backend.RunRequest
	RunResult   = backend.RunResult
	ToolUse     = backend.ToolUse
	StreamEvent = backend.StreamEvent
	EventKind   = backend.EventKind
	Mode        = backend.Mode

	ProcessError = backend.ProcessError
	// ProcessManager tracks agent subprocesses so they can be killed on shutdown.
	ProcessManager = process.Manager
)

const (
	ModePrint          = backend.ModePrint
	ModeFullAccess     = backend.ModeFullAccess
	ModeWorkspaceWrite = backend.ModeWorkspaceWrite

	EventText       = backend.EventText
	EventToolUse    = backend.EventToolUse
	EventToolResult = backend.EventToolResult
	EventError      = backend.EventError
	EventDone       = backend.EventDone

	BackendClaude = backend.TypeClaude
	BackendCodex  = backend.TypeCodex
	BackendAuto   = backend.TypeAuto
)

var (
	ErrUnknownBackend = backend.ErrUnknownBackend
	ErrNoBackend      = backend.ErrNoBackend
	ErrInvalidRequest = backend.ErrInvalidRequest
	ErrProcessFailed  = backend.ErrProcessFailed
	ErrTimedOut       = backend.ErrTimedOut
)

// NewProcessManager creates a registry for Config.Procs.
func NewProcessManager() *ProcessManager {
	return process.NewManager()
}

// Config selects the backend a Runner delegates to.
type Config struct {
	// Backend is "claude-code", "codex" or "auto". Ignored when Custom is set.
	Backend string
	// Custom is a caller-supplied backend used instead of a built-in one.
	Custom Backend
	// Command overrides the executable of a built-in claude-code or codex backend.
	Command string
	// Prefer set to "codex" makes the auto backend try codex first.
	Prefer string
	Procs  *ProcessManager
	Logger *slog.Logger
}

// Runner is the entry point for running prompts.
type Runner struct {
	backend Backend
}

// New creates a Runner for cfg. An unrecognized backend id returns an error
// matching ErrUnknownBackend.
func New(cfg Config) (*Runner, error) {
	if cfg.Custom != nil {
		return &Runner{backend: cfg.Custom}, nil
	}

	b, err := backend.New(backend.Config{
		Type:    cfg.Backend,
		Command: cfg.Command,
		Prefer:  cfg.Prefer,
		Procs:   cfg.Procs,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Runner{backend: b}, nil
}

// BackendName returns the name of the backend in use.
func (r *Runner) BackendName() string {
	return r.backend.Name()
}

// Available reports whether the backend's CLI can be used.
func (r *Runner) Available(ctx context.Context) bool {
	return r.backend.Available(ctx)
}

// Run executes one prompt to completion.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	return r.backend.Run(ctx, req)
}

// Version reports the backend CLI version. A backend that is available but
// cannot report a version yields "unknown".
func (r *Runner) Version(ctx context.Context) (string, bool) {
	if v, ok := backend.AsVersioner(r.backend); ok {
		return v.Version(ctx)
	}
	if r.backend.Available(ctx) {
		return "unknown", true
	}
	return "", false
}

// Stream runs the prompt and yields events as they arrive. A backend without
// streaming support yields a single error event.
func (r *Runner) Stream(ctx context.Context, req RunRequest) iter.Seq[StreamEvent] {
	if s, ok := backend.AsStreamer(r.backend); ok {
		return s.Stream(ctx, req)
	}
	return func(yield func(StreamEvent) bool) {
		yield(StreamEvent{
			Kind: EventError,
			Data: fmt.Sprintf("backend %s does not support streaming", r.backend.Name()),
		})
	}
}

// Interrupted tells a clean stream exit from a killed one. Stream reports done
// "0" for a process killed by a signal; pass the run's elapsed time and the
// context the stream ran under to get the cause, or nil for a clean exit.
func Interrupted(ctx context.Context, req RunRequest, elapsed time.Duration) error {
	return backend.Interrupted(ctx, req, elapsed)
}

// RunWithClaude runs prompt through Claude Code and returns the response text.
func RunWithClaude(ctx context.Context, req RunRequest) (string, error) {
	return runWith(ctx, BackendClaude, req)
}

// RunWithCodex runs prompt through Codex and returns the response text.
func RunWithCodex(ctx context.Context, req RunRequest) (string, error) {
	return runWith(ctx, BackendCodex, req)
}

// RunWithAuto runs prompt through whichever CLI is installed and returns the
// response text.
func RunWithAuto(ctx context.Context, req RunRequest) (string, error) {
	return runWith(ctx, BackendAuto, req)
}

func runWith(ctx context.Context, id string, req RunRequest) (string, error) {
	r, err := New(Config{Backend: id})
	if err != nil {
		return "", err
	}
	res, err := r.Run(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
