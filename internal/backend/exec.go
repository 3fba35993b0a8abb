package backend

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/agentrunner/internal/logger"
	"github.com/aristath/agentrunner/internal/metrics"
	"github.com/aristath/agentrunner/internal/process"
	"github.com/aristath/agentrunner/internal/tracing"
)

// probeTimeout bounds the `--version` availability probe.
const probeTimeout = 10 * time.Second

// cliRunner is the subprocess plumbing shared by the CLI adapters: probing,
// buffered runs and streamed runs, each with a run id, a span, metrics and
// structured logs.
type cliRunner struct {
	name    string
	command string
	procs   *process.Manager
	logger  *slog.Logger
}

func newCLIRunner(name, defaultCommand string, cfg Config) cliRunner {
	command := cfg.Command
	if command == "" {
		command = defaultCommand
	}
	return cliRunner{
		name:    name,
		command: command,
		procs:   cfg.Procs,
		logger:  cfg.Logger,
	}
}

// Name returns the backend identifier.
func (r *cliRunner) Name() string {
	return r.name
}

// Command returns the executable the adapter launches.
func (r *cliRunner) Command() string {
	return r.command
}

func (r *cliRunner) log(ctx context.Context) *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logger.FromContext(ctx)
}

// runLogger tags the logger for one run with its ids.
func (r *cliRunner) runLogger(ctx context.Context, runID string) *slog.Logger {
	log := r.log(ctx).With("run_id", runID, "backend", r.name)
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		log = log.With("trace_id", traceID)
	}
	return log
}

func (r *cliRunner) tracker() process.Tracker {
	if r.procs == nil {
		return nil
	}
	return r.procs
}

// probe runs `<command> --version`. It succeeds only on exit 0 with
// non-empty output, and returns that output trimmed.
func (r *cliRunner) probe(ctx context.Context) (string, bool) {
	ctx, span := tracing.StartRun(ctx, "probe", r.name, uuid.NewString())
	defer span.End()

	res, err := process.Spawn(ctx, r.command, process.Options{
		Args:    []string{"--version"},
		Timeout: probeTimeout,
		Tracker: r.tracker(),
	})

	version := strings.TrimSpace(res.Stdout)
	if err != nil || res.ExitCode != 0 || version == "" {
		metrics.ProbesTotal.WithLabelValues(r.name, "unavailable").Inc()
		r.log(ctx).Debug("agent CLI unavailable",
			"backend", r.name,
			"command", r.command,
			"exit_code", res.ExitCode,
			"error", err,
		)
		tracing.RecordError(span, err)
		return "", false
	}

	metrics.ProbesTotal.WithLabelValues(r.name, "available").Inc()
	return version, true
}

// execute runs the CLI to completion and reduces stdout with parse.
func (r *cliRunner) execute(ctx context.Context, req RunRequest, args []string, parse func(string) ParsedOutput) (RunResult, error) {
	runID := uuid.NewString()
	ctx, span := tracing.StartRun(ctx, "run", r.name, runID)
	defer span.End()

	log := r.runLogger(ctx, runID)
	log.Debug("starting agent",
		"command", r.command,
		"mode", req.mode(),
		"model", req.Model,
		"resume", req.SessionID != "",
	)

	inProgress := metrics.RunsInProgress.WithLabelValues(r.name)
	inProgress.Inc()
	defer inProgress.Dec()

	start := time.Now()
	res, err := process.Spawn(ctx, r.command, process.Options{
		Args:    args,
		Dir:     req.WorkDir,
		Env:     process.MergeEnv(req.Env),
		Timeout: req.timeout(),
		Tracker: r.tracker(),
	})
	duration := time.Since(start)
	metrics.RunDuration.WithLabelValues(r.name).Observe(duration.Seconds())

	if err != nil {
		metrics.RunsTotal.WithLabelValues(r.name, "error").Inc()
		log.Error("agent spawn failed", "error", err)
		err = fmt.Errorf("%s: %w", r.name, err)
		tracing.RecordError(span, err)
		return RunResult{}, err
	}

	if res.ExitCode != 0 {
		perr := &ProcessError{
			Backend:  r.name,
			ExitCode: res.ExitCode,
			Signal:   res.Signal,
			Detail:   failureDetail(r.name, res),
		}
		metrics.RunsTotal.WithLabelValues(r.name, "failed").Inc()
		log.Warn("agent process failed",
			"exit_code", res.ExitCode,
			"signal", res.Signal,
			"duration", duration,
		)
		tracing.RecordError(span, perr)
		return RunResult{}, perr
	}

	parsed := parse(res.Stdout)
	if !req.Verbose {
		parsed.ToolUses = nil
	}
	metrics.RunsTotal.WithLabelValues(r.name, "success").Inc()
	log.Info("agent run completed",
		"exit_code", res.ExitCode,
		"duration", duration,
		"session_id", parsed.SessionID,
		"num_turns", parsed.NumTurns,
		"tool_uses", len(parsed.ToolUses),
	)

	return RunResult{
		Text:      parsed.Text,
		SessionID: parsed.SessionID,
		Duration:  duration,
		ExitCode:  res.ExitCode,
		NumTurns:  parsed.NumTurns,
		CostUSD:   parsed.CostUSD,
		ToolUses:  parsed.ToolUses,
	}, nil
}

// failureDetail picks the best diagnostic for a failed run: stderr, then
// stdout, then a generic message.
func failureDetail(name string, res process.Result) string {
	if s := strings.TrimSpace(res.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		return s
	}
	return name + " process failed"
}

// stream runs the CLI and maps its stdout lines through parseLine. Error and
// done records pass through verbatim; the sequence stops after the first of
// them. Non-terminal events with no data are dropped.
func (r *cliRunner) stream(ctx context.Context, req RunRequest, args []string, parseLine func(string) []StreamEvent) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		if err := req.Validate(); err != nil {
			yield(StreamEvent{Kind: EventError, Data: err.Error()})
			return
		}

		runID := uuid.NewString()
		ctx, span := tracing.StartRun(ctx, "stream", r.name, runID)
		defer span.End()

		log := r.runLogger(ctx, runID)
		log.Debug("starting agent stream", "command", r.command, "mode", req.mode(), "model", req.Model)

		inProgress := metrics.RunsInProgress.WithLabelValues(r.name)
		inProgress.Inc()
		defer inProgress.Dec()

		start := time.Now()
		defer func() {
			metrics.RunDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
		}()

		raw := process.Stream(ctx, r.command, process.Options{
			Args:    args,
			Dir:     req.WorkDir,
			Env:     process.MergeEnv(req.Env),
			Timeout: req.timeout(),
			Tracker: r.tracker(),
		})

		emit := func(ev StreamEvent) bool {
			metrics.StreamEvents.WithLabelValues(r.name, string(ev.Kind)).Inc()
			return yield(ev)
		}

		for rec := range raw {
			switch rec.Kind {
			case process.EventText:
				for _, ev := range parseLine(rec.Data) {
					if ev.Data == "" {
						continue
					}
					if !emit(ev) {
						log.Debug("stream consumer stopped early")
						return
					}
				}

			case process.EventError:
				metrics.RunsTotal.WithLabelValues(r.name, "failed").Inc()
				log.Warn("agent stream failed", "error", rec.Data, "duration", time.Since(start))
				tracing.RecordError(span, fmt.Errorf("%s: %s", r.name, rec.Data))
				emit(StreamEvent{Kind: EventError, Data: rec.Data})
				return

			case process.EventDone:
				status := "success"
				if rec.Data != "0" {
					status = "failed"
				} else if err := Interrupted(ctx, req, time.Since(start)); err != nil {
					status = "interrupted"
					log.Warn("agent stream interrupted", "error", err)
					tracing.RecordError(span, err)
				}
				metrics.RunsTotal.WithLabelValues(r.name, status).Inc()
				log.Info("agent stream completed", "exit_code", rec.Data, "status", status, "duration", time.Since(start))
				emit(StreamEvent{Kind: EventDone, Data: rec.Data})
				return
			}
		}
	}
}
