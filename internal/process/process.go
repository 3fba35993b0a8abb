// Package process launches agent CLI subprocesses and collects their output,
// either buffered (Spawn) or as a lazy line sequence (Stream).
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures a single subprocess launch.
type Options struct {
	Args    []string
	Dir     string        // Working directory; empty inherits the caller's
	Env     []string      // Full environment; nil inherits the caller's
	Input   string        // Written to stdin, which is then closed
	Timeout time.Duration // Zero disables the deadline
	Tracker Tracker       // Optional; registers the process while it runs
}

// Tracker registers running subprocesses so they can be torn down on shutdown.
// *Manager implements it.
type Tracker interface {
	Track(cmd *exec.Cmd)
	Untrack(cmd *exec.Cmd)
}

// Result is the buffered outcome of a finished subprocess.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int    // -1 when the process was terminated by a signal
	Signal   string // Name of the terminating signal, empty on a normal exit
}

// Signaled reports whether the process was terminated by a signal rather than exiting.
func (r Result) Signaled() bool {
	return r.Signal != ""
}

// newCommand creates an exec.Cmd with process group isolation.
// The Setpgid: true flag puts the subprocess in its own process group so that
// timeout and cancellation signals reach the whole subprocess tree.
func newCommand(name string, opts Options) *exec.Cmd {
	cmd := exec.Command(name, opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	if opts.Input != "" {
		cmd.Stdin = strings.NewReader(opts.Input)
	}
	return cmd
}

// Spawn runs name with the given options and returns its buffered output.
//
// A non-zero exit is reported in Result.ExitCode, not as an error. The only
// errors are failures to create or start the process, and pipe read failures.
//
// When opts.Timeout elapses the process group is killed with SIGKILL; when ctx
// is done it receives SIGTERM. Both paths still return a Result. A ctx that is
// already done at call time does not prevent the spawn: the process is started
// and asked to terminate straight away.
func Spawn(ctx context.Context, name string, opts Options) (Result, error) {
	cmd := newCommand(name, opts)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", name, err)
	}

	if opts.Tracker != nil {
		opts.Tracker.Track(cmd)
	}

	var latch settleLatch
	stopWatch := watch(ctx, cmd, opts.Timeout, &latch)

	// Both pipes must be fully drained before cmd.Wait, otherwise a child
	// writing more than the pipe buffer on one stream deadlocks.
	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdoutBuf, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderrPipe)
		return err
	})
	readErr := g.Wait()

	waitExited(cmd.Process)
	latch.settle()
	if opts.Tracker != nil {
		opts.Tracker.Untrack(cmd)
	}
	waitErr := cmd.Wait()
	stopWatch()

	if readErr != nil {
		return Result{}, fmt.Errorf("reading output of %s: %w", name, readErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Result{}, fmt.Errorf("waiting for %s: %w", name, waitErr)
	}

	res := Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	res.ExitCode, res.Signal = exitStatus(cmd.ProcessState)
	return res, nil
}

// exitStatus extracts the exit code and terminating signal from a finished process.
func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return -1, status.Signal().String()
	}
	return state.ExitCode(), ""
}

// settleLatch is the single-assignment cell that marks a run as finished.
// Watchers signal through it so that the losing side of the
// exit/timeout/cancel race has no effect. The run settles before it reaps the
// process, and the lock is held across each signal, so a signal never reaches
// a reaped group.
type settleLatch struct {
	mu   sync.Mutex
	done bool
}

// settle marks the latch. It reports true only for the first caller.
func (l *settleLatch) settle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return false
	}
	l.done = true
	return true
}

// signal sends sig to the process group of cmd unless the run has settled.
func (l *settleLatch) signal(cmd *exec.Cmd, sig syscall.Signal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil
	}
	return signalGroup(cmd, sig)
}

// watch races the timeout and ctx against process exit. Cancellation sends
// SIGTERM and keeps the deadline armed so an unresponsive process is still
// killed on time. The returned func stops the watcher; call it after settling.
func watch(ctx context.Context, cmd *exec.Cmd, timeout time.Duration, latch *settleLatch) func() {
	stop := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		var deadline <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			deadline = timer.C
		}
		cancelled := ctx.Done()

		for {
			select {
			case <-stop:
				return
			case <-deadline:
				_ = latch.signal(cmd, syscall.SIGKILL)
				return
			case <-cancelled:
				_ = latch.signal(cmd, syscall.SIGTERM)
				cancelled = nil
			}
		}
	}()

	return func() {
		close(stop)
		<-finished
	}
}

// signalGroup sends sig to the entire process group of cmd (negative PID).
// Signalling a group that has already exited is not an error.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to signal process group: %w", err)
	}
	return nil
}

// killProcessGroup kills the entire process group associated with the command.
// This ensures all child processes are terminated, not just the immediate subprocess.
func killProcessGroup(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

// MergeEnv returns the parent environment with overrides applied on top.
// A nil or empty override map yields nil, which makes exec inherit the parent
// environment unchanged.
func MergeEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	env := os.Environ()
	merged := make([]string, 0, len(env)+len(overrides))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		merged = append(merged, kv)
	}
	for k, v := range overrides {
		merged = append(merged, k+"="+v)
	}
	return merged
}
