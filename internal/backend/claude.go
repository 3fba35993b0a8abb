package backend

import (
	"context"
	"iter"
	"strconv"
	"strings"
)

// ClaudeAdapter runs prompts through the Claude Code CLI (`claude -p`).
// Each call spawns a fresh process; conversation state lives in the CLI and
// is continued with --resume.
type ClaudeAdapter struct {
	cliRunner
}

// NewClaudeAdapter creates a Claude Code adapter. cfg.Command overrides the
// default "claude" executable.
func NewClaudeAdapter(cfg Config) *ClaudeAdapter {
	return &ClaudeAdapter{cliRunner: newCLIRunner(TypeClaude, "claude", cfg)}
}

// Available reports whether `claude --version` succeeds.
func (a *ClaudeAdapter) Available(ctx context.Context) bool {
	_, ok := a.probe(ctx)
	return ok
}

// Version returns the trimmed `claude --version` output.
func (a *ClaudeAdapter) Version(ctx context.Context) (string, bool) {
	return a.probe(ctx)
}

// Run executes the prompt and parses the JSON result. With req.Verbose the
// turn-structured log is captured so tool uses can be reported.
func (a *ClaudeAdapter) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := req.Validate(); err != nil {
		return RunResult{}, err
	}

	parse := ParseClaudeJSON
	if req.Verbose {
		parse = ParseClaudeVerbose
	}
	return a.execute(ctx, req, a.buildArgs(req, req.Verbose), parse)
}

// Stream executes the prompt with stream-json output and yields events as
// the CLI prints them.
func (a *ClaudeAdapter) Stream(ctx context.Context, req RunRequest) iter.Seq[StreamEvent] {
	return a.stream(ctx, req, a.buildArgs(req, true), ParseClaudeLine)
}

// claudeModeFlags maps a Mode to claude's permission flags.
func claudeModeFlags(m Mode) []string {
	switch m {
	case ModePrint:
		return []string{"--permission-mode", "plan"}
	case ModeWorkspaceWrite:
		return []string{"--permission-mode", "acceptEdits"}
	default:
		return []string{"--dangerously-skip-permissions"}
	}
}

// buildArgs constructs the command-line arguments for the claude CLI.
// structured selects the newline-delimited stream-json format.
func (a *ClaudeAdapter) buildArgs(req RunRequest, structured bool) []string {
	args := []string{"-p", "--output-format"}
	if structured {
		args = append(args, "stream-json", "--verbose")
	} else {
		args = append(args, "json")
	}

	args = append(args, claudeModeFlags(req.mode())...)

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if req.MaxBudgetUSD > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(req.MaxBudgetUSD, 'f', -1, 64))
	}
	args = append(args, req.ExtraArgs...)

	// Prompt goes as the last positional arg
	return append(args, req.Prompt)
}
