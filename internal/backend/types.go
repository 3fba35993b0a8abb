package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode is the execution policy an agent CLI applies to itself for one run.
// Each backend maps it to a fixed set of flags.
type Mode string

const (
	ModePrint          Mode = "print"           // No tool or file access
	ModeFullAccess     Mode = "full-access"     // Unrestricted, no approval prompts
	ModeWorkspaceWrite Mode = "workspace-write" // File writes confined to the working directory
)

// DefaultTimeout applies when RunRequest.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// RunRequest describes one agent invocation. Cancellation is carried by the
// context passed alongside it.
type RunRequest struct {
	Prompt       string `validate:"required"`
	WorkDir      string // Empty inherits the caller's working directory
	SessionID    string // Opaque token from an earlier RunResult
	Model        string
	SystemPrompt string            // Appended to the agent's own system prompt
	Mode         Mode              `validate:"omitempty,oneof=print full-access workspace-write"` // Empty means ModeFullAccess
	Timeout      time.Duration     `validate:"gte=0"`                                             // Zero means DefaultTimeout
	ExtraArgs    []string          // Passed through before the prompt
	Env          map[string]string // Merged over the parent environment
	AllowedTools []string
	MaxBudgetUSD float64 `validate:"gte=0"` // Zero means no ceiling
	Verbose      bool    // Capture per-turn tool uses into RunResult.ToolUses
}

// RunResult is the normalized outcome of a finished run.
type RunResult struct {
	Text      string
	SessionID string // Empty when the backend did not emit one
	Duration  time.Duration
	ExitCode  int // -1 when the process was killed by a signal
	NumTurns  int
	CostUSD   float64
	ToolUses  []ToolUse // nil when no tool invocation was seen
}

// ToolUse records one tool invocation announced by the agent.
type ToolUse struct {
	Name  string
	Input json.RawMessage // Verbatim from the agent output
}

// EventKind discriminates StreamEvents.
type EventKind string

const (
	EventText       EventKind = "text"
	EventToolUse    EventKind = "tool_use"
	EventToolResult EventKind = "tool_result"
	EventError      EventKind = "error"
	EventDone       EventKind = "done"
)

// Terminal reports whether an event of this kind ends a stream.
func (k EventKind) Terminal() bool {
	return k == EventError || k == EventDone
}

// StreamEvent is one normalized event of a live run.
type StreamEvent struct {
	Kind EventKind
	Data string
}

// ParsedOutput is what a single-shot parser extracts from agent stdout.
type ParsedOutput struct {
	Text      string
	SessionID string
	NumTurns  int
	CostUSD   float64
	ToolUses  []ToolUse
}

var validate = validator.New()

// Validate checks the request invariants and wraps any violation in ErrInvalidRequest.
func (r RunRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", strings.ToLower(fe.Field()), formatValidationError(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, ", "))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must not be negative"
	default:
		return "is invalid"
	}
}

// mode returns the effective mode, applying the full-access default.
func (r RunRequest) mode() Mode {
	if r.Mode == "" {
		return ModeFullAccess
	}
	return r.Mode
}

func (r RunRequest) timeout() time.Duration {
	if r.Timeout == 0 {
		return DefaultTimeout
	}
	return r.Timeout
}
