package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownBackend is returned by New for an unrecognized backend type.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrNoBackend is returned by the auto backend when no candidate CLI is installed.
	ErrNoBackend = errors.New("no agent CLI found: install claude (npm i -g @anthropic-ai/claude-code) or codex (npm i -g @openai/codex)")

	// ErrInvalidRequest wraps RunRequest validation failures.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrProcessFailed matches every *ProcessError via errors.Is.
	ErrProcessFailed = errors.New("agent process failed")

	// ErrTimedOut is returned by Interrupted when the run reached its timeout.
	ErrTimedOut = errors.New("agent timed out")
)

// ProcessError reports an agent process that exited unsuccessfully.
type ProcessError struct {
	Backend  string
	ExitCode int    // -1 when killed by a signal
	Signal   string // Terminating signal, if any
	Detail   string // Trimmed stderr, else stdout, else a generic message
}

func (e *ProcessError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("%s terminated by signal %s: %s", e.Backend, e.Signal, e.Detail)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Backend, e.ExitCode, e.Detail)
}

// Is lets errors.Is(err, ErrProcessFailed) match any ProcessError.
func (e *ProcessError) Is(target error) bool {
	return target == ErrProcessFailed
}

// Interrupted reports why a stream that ended with done "0" was cut short, or
// nil when it exited cleanly. A signalled process carries no exit code, so the
// cause is inferred: the context ended, or elapsed reached the run timeout.
func Interrupted(ctx context.Context, req RunRequest, elapsed time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("agent interrupted after %s: %w", elapsed.Round(time.Millisecond), err)
	}
	if elapsed >= req.timeout() {
		return fmt.Errorf("%w after %s", ErrTimedOut, req.timeout())
	}
	return nil
}
