package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/agentrunner"
	"github.com/aristath/agentrunner/internal/config"
	"github.com/aristath/agentrunner/internal/logger"
	"github.com/aristath/agentrunner/internal/server"
	"github.com/aristath/agentrunner/internal/tracing"
)

var version = "dev"

// SetVersion records the build version reported by `agentrunner version`.
func SetVersion(v string) {
	version = v
}

// killGrace is how long agents get between the SIGTERM sent on interrupt and
// the SIGKILL sent to every tracked process group.
const killGrace = 5 * time.Second

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	procs   *agentrunner.ProcessManager
	closers []func(context.Context) error
}

// Execute runs the root command with signal-driven shutdown.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{procs: agentrunner.NewProcessManager()}
	go func() {
		<-ctx.Done()
		// Restore default handling so a second Ctrl+C force-exits
		stop()
		time.AfterFunc(killGrace, func() {
			if err := a.procs.KillAll(); err != nil {
				slog.Warn("killing agent processes", "error", err)
			}
		})
	}()

	err := execute(ctx, a, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func execute(ctx context.Context, a *app, args []string, in io.Reader, out, errOut io.Writer) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentrunner",
		Short: "Run prompts through Claude Code or Codex behind one interface",
		Long: `agentrunner launches an installed coding-agent CLI (Claude Code or Codex),
passes it a prompt with the flags for the requested execution mode, and
prints the normalized result.

The "auto" backend uses Claude Code when it is installed and falls back to
Codex otherwise.

Configuration is read from agentrunner.yaml, then
$XDG_CONFIG_HOME/agentrunner/config.yaml, and AGENTRUNNER_* environment
variables (AGENTRUNNER_RUN__TIMEOUT=10m sets run.timeout).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is agentrunner.yaml)")
	pf.StringP("backend", "b", "", "agent backend: claude-code, codex or auto")
	pf.String("command", "", "agent executable to launch instead of the backend default")
	pf.String("metrics-addr", "", "serve Prometheus metrics on host:port while running")

	root.AddCommand(
		newRunCmd(a),
		newStreamCmd(a),
		newVersionCmd(a),
		newAvailableCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and installs the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx, a.log.With("command", cmd.Name())))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var (
		cfg *config.Config
		err error
	)
	if path, _ := flags.GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"backend":      &cfg.Backend,
		"command":      &cfg.Command,
		"metrics-addr": &cfg.Metrics.Addr,
	}
	for name, dst := range overrides {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runner builds the configured backend along with tracing and, when
// requested, the metrics listener.
func (a *app) runner(ctx context.Context) (*agentrunner.Runner, error) {
	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      a.cfg.Tracing.Enabled,
		Endpoint:     a.cfg.Tracing.Endpoint,
		SamplingRate: a.cfg.Tracing.SamplingRate,
		ServiceName:  "agentrunner",
		Version:      version,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	r, err := agentrunner.New(agentrunner.Config{
		Backend: a.cfg.Backend,
		Command: a.cfg.Command,
		Prefer:  a.cfg.Prefer,
		Procs:   a.procs,
	})
	if err != nil {
		return nil, err
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := server.New(addr, version, r)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		a.closers = append(a.closers, srv.Shutdown)
	}

	return r, nil
}

// close releases everything runner started, newest first.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.log != nil {
			a.log.Warn("shutdown", "error", err)
		}
	}
	a.closers = nil
}
