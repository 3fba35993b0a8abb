package backend

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aristath/agentrunner/internal/logger"
)

type resolution int

const (
	unresolved resolution = iota
	resolved
	failed
)

// Selector is the "auto" backend: it delegates to the first candidate whose
// CLI is available. The choice is made once, on first use, and is kept for
// the Selector's lifetime even if that CLI later disappears. A failed
// discovery is kept too, so every later call fails with ErrNoBackend.
type Selector struct {
	candidates []Backend
	logger     *slog.Logger

	mu     sync.Mutex
	state  resolution
	chosen Backend
	flight singleflight.Group
}

// NewSelector creates the auto backend over the built-in adapters: Claude
// Code first, then Codex, or the reverse when cfg.Prefer is TypeCodex.
// cfg.Command is ignored since it cannot apply to both CLIs.
func NewSelector(cfg Config) *Selector {
	candidateCfg := Config{Procs: cfg.Procs, Logger: cfg.Logger}
	claude := NewClaudeAdapter(candidateCfg)
	codex := NewCodexAdapter(candidateCfg)

	s := NewSelectorFrom(claude, codex)
	if cfg.Prefer == TypeCodex {
		s = NewSelectorFrom(codex, claude)
	}
	s.logger = cfg.Logger
	return s
}

// NewSelectorFrom creates an auto backend over arbitrary candidates, probed in order.
func NewSelectorFrom(candidates ...Backend) *Selector {
	return &Selector{candidates: candidates}
}

// Name returns "auto".
func (s *Selector) Name() string {
	return TypeAuto
}

// Candidates returns the candidates in probe order.
func (s *Selector) Candidates() []Backend {
	return append([]Backend(nil), s.candidates...)
}

// Available reports whether any candidate is available. It never commits a
// resolution.
func (s *Selector) Available(ctx context.Context) bool {
	for _, c := range s.candidates {
		if c.Available(ctx) {
			return true
		}
	}
	return false
}

// Resolved returns the committed candidate, if resolution has succeeded.
func (s *Selector) Resolved() (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chosen, s.state == resolved
}

// Run resolves a candidate and delegates to it.
func (s *Selector) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	b, err := s.resolve(ctx)
	if err != nil {
		return RunResult{}, err
	}
	return b.Run(ctx, req)
}

// Version resolves a candidate and reports its version. A resolved candidate
// without version support reports "unknown".
func (s *Selector) Version(ctx context.Context) (string, bool) {
	b, err := s.resolve(ctx)
	if err != nil {
		return "", false
	}
	if v, ok := AsVersioner(b); ok {
		return v.Version(ctx)
	}
	return "unknown", true
}

// Stream resolves a candidate and delegates to its stream. Discovery failure
// and candidates without streaming yield a single error event.
func (s *Selector) Stream(ctx context.Context, req RunRequest) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		b, err := s.resolve(ctx)
		if err != nil {
			yield(StreamEvent{Kind: EventError, Data: err.Error()})
			return
		}
		st, ok := AsStreamer(b)
		if !ok {
			yield(StreamEvent{Kind: EventError, Data: fmt.Sprintf("backend %s does not support streaming", b.Name())})
			return
		}
		for ev := range st.Stream(ctx, req) {
			if !yield(ev) {
				return
			}
		}
	}
}

// resolve returns the committed candidate, running discovery on first use.
// Concurrent first calls share one discovery. Discovery is detached from the
// caller's cancellation; a caller whose ctx ends first gets ctx.Err() while
// discovery finishes and commits for the next call.
func (s *Selector) resolve(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	switch s.state {
	case resolved:
		b := s.chosen
		s.mu.Unlock()
		return b, nil
	case failed:
		s.mu.Unlock()
		return nil, ErrNoBackend
	}
	s.mu.Unlock()

	discoverCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan("resolve", func() (any, error) {
		return s.discover(discoverCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Backend), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// discover probes candidates in order and commits the outcome.
func (s *Selector) discover(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	if s.state == resolved {
		b := s.chosen
		s.mu.Unlock()
		return b, nil
	}
	if s.state == failed {
		s.mu.Unlock()
		return nil, ErrNoBackend
	}
	s.mu.Unlock()

	log := s.log(ctx)
	for _, c := range s.candidates {
		if !c.Available(ctx) {
			log.Debug("auto backend candidate unavailable", "candidate", c.Name())
			continue
		}

		s.mu.Lock()
		s.state = resolved
		s.chosen = c
		s.mu.Unlock()

		log.Info("auto backend resolved", "backend", c.Name())
		return c, nil
	}

	s.mu.Lock()
	s.state = failed
	s.mu.Unlock()

	log.Warn("auto backend found no agent CLI", "candidates", len(s.candidates))
	return nil, ErrNoBackend
}

func (s *Selector) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logger.FromContext(ctx)
}
