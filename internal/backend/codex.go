package backend

import (
	"context"
	"iter"
	"log/slog"
)

// CodexAdapter runs prompts through the Codex CLI (`codex exec --json`).
type CodexAdapter struct {
	cliRunner
}

// NewCodexAdapter creates a Codex adapter. cfg.Command overrides the default
// "codex" executable.
func NewCodexAdapter(cfg Config) *CodexAdapter {
	return &CodexAdapter{cliRunner: newCLIRunner(TypeCodex, "codex", cfg)}
}

// Available reports whether `codex --version` succeeds.
func (c *CodexAdapter) Available(ctx context.Context) bool {
	_, ok := c.probe(ctx)
	return ok
}

// Version returns the trimmed `codex --version` output.
func (c *CodexAdapter) Version(ctx context.Context) (string, bool) {
	return c.probe(ctx)
}

// Run executes the prompt and reduces the JSONL event log.
func (c *CodexAdapter) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := req.Validate(); err != nil {
		return RunResult{}, err
	}
	return c.execute(ctx, req, c.buildArgs(ctx, req), ParseCodexJSONL)
}

// Stream executes the prompt and yields events from the live JSONL log.
func (c *CodexAdapter) Stream(ctx context.Context, req RunRequest) iter.Seq[StreamEvent] {
	return c.stream(ctx, req, c.buildArgs(ctx, req), ParseCodexLine)
}

// codexModeFlags maps a Mode to codex sandbox flags.
func codexModeFlags(m Mode) []string {
	switch m {
	case ModePrint:
		return []string{"--sandbox", "read-only"}
	case ModeWorkspaceWrite:
		return []string{"--sandbox", "workspace-write", "--full-auto"}
	default:
		return []string{"--dangerously-bypass-approvals-and-sandbox"}
	}
}

// buildArgs constructs the command arguments for codex CLI. The JSONL log is
// the only output format, so runs and streams share one argument vector.
// Resuming a session uses the `resume <id>` subcommand of exec.
func (c *CodexAdapter) buildArgs(ctx context.Context, req RunRequest) []string {
	args := []string{"exec", "--json", "--color", "never"}
	args = append(args, codexModeFlags(req.mode())...)
	args = append(args, "--skip-git-repo-check")

	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SessionID != "" {
		args = append(args, "resume", req.SessionID)
	}

	c.logUnsupported(ctx, req)

	args = append(args, req.ExtraArgs...)

	// Prompt goes last
	return append(args, req.Prompt)
}

func (c *CodexAdapter) logUnsupported(ctx context.Context, req RunRequest) {
	var ignored []string
	if req.SystemPrompt != "" {
		ignored = append(ignored, "system_prompt")
	}
	if len(req.AllowedTools) > 0 {
		ignored = append(ignored, "allowed_tools")
	}
	if req.MaxBudgetUSD > 0 {
		ignored = append(ignored, "max_budget_usd")
	}
	if len(ignored) > 0 {
		c.log(ctx).Debug("codex CLI has no flag for request fields, ignoring",
			slog.Any("fields", ignored))
	}
}
