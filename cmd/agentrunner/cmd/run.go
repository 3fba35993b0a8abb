package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/agentrunner"
)

// requestFlags are the per-run flags shared by run and stream.
type requestFlags struct {
	mode         string
	model        string
	session      string
	systemPrompt string
	cwd          string
	timeout      time.Duration
	allowedTools []string
	maxBudget    float64
	env          []string
	verbose      bool
	asJSON       bool
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", "", "execution mode: print, full-access or workspace-write")
	fl.StringVar(&f.model, "model", "", "model passed to the agent CLI")
	fl.StringVarP(&f.session, "session", "s", "", "resume the session with this id")
	fl.StringVar(&f.systemPrompt, "system-prompt", "", "text appended to the agent's system prompt")
	fl.StringVar(&f.cwd, "cwd", "", "working directory for the agent")
	fl.DurationVarP(&f.timeout, "timeout", "t", 0, "kill the agent after this long")
	fl.StringSliceVar(&f.allowedTools, "allowed-tools", nil, "tools the agent may use without asking")
	fl.Float64Var(&f.maxBudget, "max-budget", 0, "spending ceiling in USD")
	fl.StringArrayVarP(&f.env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "capture tool uses from every turn")
	fl.BoolVar(&f.asJSON, "json", false, "output as JSON")
}

// request assembles a RunRequest from flags, falling back to configured
// defaults. The prompt is the positional arguments, or stdin when there are none.
func (f *requestFlags) request(a *app, cmd *cobra.Command, args []string) (agentrunner.RunRequest, error) {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return agentrunner.RunRequest{}, err
	}

	env, err := parseEnv(f.env)
	if err != nil {
		return agentrunner.RunRequest{}, err
	}

	req := agentrunner.RunRequest{
		Prompt:       prompt,
		WorkDir:      firstNonEmpty(f.cwd, a.cfg.Run.WorkDir),
		SessionID:    f.session,
		Model:        firstNonEmpty(f.model, a.cfg.Run.Model),
		SystemPrompt: f.systemPrompt,
		Mode:         agentrunner.Mode(firstNonEmpty(f.mode, a.cfg.Run.Mode)),
		Timeout:      f.timeout,
		Env:          env,
		AllowedTools: f.allowedTools,
		MaxBudgetUSD: f.maxBudget,
		Verbose:      f.verbose,
	}
	if req.Timeout == 0 {
		req.Timeout = a.cfg.Run.Timeout
	}
	return req, nil
}

func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt: pass it as an argument or on stdin")
	}
	return prompt, nil
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newRunCmd(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a prompt to completion and print the response",
		Long: `Run a prompt through the configured agent CLI and print its final response.

The session id, when the agent reports one, is printed to stderr so the
conversation can be continued with --session.`,
		Example: `  agentrunner run "Summarize the README"
  agentrunner run -b codex -m workspace-write "Fix the failing test"
  git diff | agentrunner run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(a, cmd, args)
			if err != nil {
				return err
			}
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}

			res, err := r.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(newRunOutput(r.BackendName(), res))
			}

			fmt.Fprintln(out, res.Text)
			if res.SessionID != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), styleMuted.Render("session: "+res.SessionID))
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

type toolUseOutput struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

type runOutput struct {
	Backend    string          `json:"backend"`
	Text       string          `json:"text"`
	SessionID  string          `json:"session_id,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	ExitCode   int             `json:"exit_code"`
	NumTurns   int             `json:"num_turns,omitempty"`
	CostUSD    float64         `json:"cost_usd,omitempty"`
	ToolUses   []toolUseOutput `json:"tool_uses,omitempty"`
}

func newRunOutput(backend string, res agentrunner.RunResult) runOutput {
	out := runOutput{
		Backend:    backend,
		Text:       res.Text,
		SessionID:  res.SessionID,
		DurationMS: res.Duration.Milliseconds(),
		ExitCode:   res.ExitCode,
		NumTurns:   res.NumTurns,
		CostUSD:    res.CostUSD,
	}
	for _, tu := range res.ToolUses {
		out.ToolUses = append(out.ToolUses, toolUseOutput{Name: tu.Name, Input: tu.Input})
	}
	return out
}
