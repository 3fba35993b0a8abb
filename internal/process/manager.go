package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// Manager tracks every running agent subprocess and can terminate them all on
// shutdown, so an interrupted CLI never leaves orphaned agent trees behind.
//
// Usage pattern (typically in main):
//
//	pm := process.NewManager()
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	go func() {
//		<-ctx.Done()
//		pm.KillAll()
//	}()
type Manager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Track registers a started subprocess. A nil Manager ignores the call.
func (m *Manager) Track(cmd *exec.Cmd) {
	if m == nil || cmd.Process == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a subprocess once it has exited, before it is reaped.
func (m *Manager) Untrack(cmd *exec.Cmd) {
	if m == nil || cmd.Process == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, cmd.Process.Pid)
}

// KillAll sends SIGKILL to the process group of every tracked subprocess.
// Entries stay registered until their runs see them exit and call Untrack.
func (m *Manager) KillAll() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for pid, cmd := range m.procs {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors killing processes: %w", errors.Join(errs...))
	}
	return nil
}

// Count returns the number of currently tracked processes.
func (m *Manager) Count() int {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}
