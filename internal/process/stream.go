package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// EventKind discriminates the records produced by Stream.
type EventKind string

const (
	EventText  EventKind = "text"  // One raw stdout line
	EventError EventKind = "error" // Spawn failure or trimmed stderr of a failed process
	EventDone  EventKind = "done"  // Terminal; Data holds the exit code
)

// RawEvent is one line-level record from a streaming subprocess.
type RawEvent struct {
	Kind EventKind
	Data string
}

// queueSize bounds the events buffered between the stdout reader and the
// consumer. A full queue blocks the reader, which in turn lets the OS pipe
// fill up and stalls the child.
const queueSize = 64

// Stream runs name and exposes its stdout as a lazy sequence of RawEvents.
// The process is started when iteration begins.
//
// Every completed stdout line that is not blank is yielded verbatim as an
// EventText; a non-blank unterminated remainder is yielded trimmed at EOF.
// When the process exits non-zero (or is killed by a signal) with non-empty
// stderr, one EventError with the trimmed stderr follows. An EventDone carrying
// the exit code ("0" when the process was killed by a signal) is always last.
//
// If the process cannot be started the sequence is a single EventError with no
// EventDone. Breaking out of the loop early kills the process group and waits
// for it to be reaped before the iterator returns.
func Stream(ctx context.Context, name string, opts Options) iter.Seq[RawEvent] {
	return func(yield func(RawEvent) bool) {
		s, err := startStream(ctx, name, opts)
		if err != nil {
			yield(RawEvent{Kind: EventError, Data: err.Error()})
			return
		}
		defer s.close()

		for ev := range s.events {
			if !yield(ev) {
				return
			}
		}
	}
}

// lineStream owns one streaming subprocess and the goroutine reading it.
type lineStream struct {
	cmd      *exec.Cmd
	latch    settleLatch
	events   chan RawEvent
	quit     chan struct{}
	finished chan struct{}
	quitOnce sync.Once
}

func startStream(ctx context.Context, name string, opts Options) (*lineStream, error) {
	cmd := newCommand(name, opts)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	if opts.Tracker != nil {
		opts.Tracker.Track(cmd)
	}

	s := &lineStream{
		cmd:      cmd,
		events:   make(chan RawEvent, queueSize),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	stopWatch := watch(ctx, cmd, opts.Timeout, &s.latch)

	go func() {
		defer close(s.finished)
		defer close(s.events)

		var stderrBuf bytes.Buffer
		var g errgroup.Group
		g.Go(func() error {
			_, err := io.Copy(&stderrBuf, stderrPipe)
			return err
		})

		s.readLines(stdoutPipe)
		_ = g.Wait()

		waitExited(cmd.Process)
		s.latch.settle()
		if opts.Tracker != nil {
			opts.Tracker.Untrack(cmd)
		}
		waitErr := cmd.Wait()
		stopWatch()

		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) {
			s.send(RawEvent{Kind: EventError, Data: waitErr.Error()})
			return
		}

		code, sig := exitStatus(cmd.ProcessState)
		if code != 0 || sig != "" {
			if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
				if !s.send(RawEvent{Kind: EventError, Data: msg}) {
					return
				}
			}
		}

		if sig != "" {
			code = 0
		}
		s.send(RawEvent{Kind: EventDone, Data: strconv.Itoa(code)})
	}()

	return s, nil
}

// readLines splits stdout on '\n' and queues every non-blank line. Once the
// consumer has gone away the rest of stdout is discarded so the child can
// still run to EOF.
func (s *lineStream) readLines(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if rest := strings.TrimSpace(line); rest != "" {
				s.send(RawEvent{Kind: EventText, Data: rest})
			}
			return
		}

		line = strings.TrimSuffix(line, "\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !s.send(RawEvent{Kind: EventText, Data: line}) {
			_, _ = io.Copy(io.Discard, br)
			return
		}
	}
}

// send queues ev, blocking while the queue is full. It reports false when the
// consumer has stopped iterating.
func (s *lineStream) send(ev RawEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

// close releases the stream. A process still running is killed, and close
// returns only after the reader goroutine has reaped it.
func (s *lineStream) close() {
	s.quitOnce.Do(func() {
		close(s.quit)
		_ = s.latch.signal(s.cmd, syscall.SIGKILL)
	})
	<-s.finished
}
