package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/aristath/agentrunner"
)

// maxResultPreview caps how much of a tool result is echoed to the terminal.
const maxResultPreview = 400

func newStreamCmd(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Run a prompt and print events as the agent works",
		Long: `Run a prompt and print each event as the agent emits it: assistant text,
tool calls, tool results, and finally the exit code.

With --json every event is printed as one JSON object per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(a, cmd, args)
			if err != nil {
				return err
			}
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			var streamErr error
			start := time.Now()
			for ev := range r.Stream(cmd.Context(), req) {
				var evErr error
				switch {
				case ev.Kind == agentrunner.EventError:
					evErr = errors.New(ev.Data)
				case ev.Kind == agentrunner.EventDone && ev.Data != "0":
					evErr = fmt.Errorf("agent exited with code %s", ev.Data)
				case ev.Kind == agentrunner.EventDone:
					// A killed process also reports "0".
					evErr = agentrunner.Interrupted(cmd.Context(), req, time.Since(start))
				}

				switch {
				case f.asJSON:
					if err := enc.Encode(eventOutput{Kind: string(ev.Kind), Data: ev.Data}); err != nil {
						return err
					}
				case ev.Kind == agentrunner.EventDone && ev.Data == "0" && evErr != nil:
					fmt.Fprintln(out, styleError.Render("✗ "+evErr.Error()))
				default:
					printEvent(out, ev)
				}

				if evErr != nil {
					streamErr = evErr
				}
			}
			return streamErr
		},
	}
	f.bind(cmd)
	return cmd
}

type eventOutput struct {
	Kind string `json:"kind"`
	Data string `json:"data"`
}

func printEvent(w io.Writer, ev agentrunner.StreamEvent) {
	switch ev.Kind {
	case agentrunner.EventText:
		fmt.Fprintln(w, ev.Data)
	case agentrunner.EventToolUse:
		fmt.Fprintln(w, styleToolUse.Render("→ "+describeToolUse(ev.Data)))
	case agentrunner.EventToolResult:
		fmt.Fprintln(w, styleToolResult.Render(preview(ev.Data)))
	case agentrunner.EventError:
		fmt.Fprintln(w, styleError.Render("✗ "+ev.Data))
	case agentrunner.EventDone:
		if ev.Data == "0" {
			fmt.Fprintln(w, styleOK.Render("✓ done"))
		} else {
			fmt.Fprintln(w, styleError.Render("✗ exit "+ev.Data))
		}
	}
}

// describeToolUse renders a tool_use payload as "name input".
func describeToolUse(data string) string {
	var p struct {
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil || p.Name == "" {
		return data
	}
	if len(p.Input) == 0 || string(p.Input) == "null" {
		return p.Name
	}
	return p.Name + " " + preview(string(p.Input))
}

// preview trims s to maxResultPreview bytes without splitting a rune.
func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxResultPreview {
		return s
	}
	cut := maxResultPreview
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
