package process

import (
	"bufio"
	"bytes"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestManager_TrackAndKillAll verifies Manager tracks and terminates processes
func TestManager_TrackAndKillAll(t *testing.T) {
	pm := NewManager()

	cmd := newCommand("bash", Options{Args: []string{mockCLI(t), "--sleep", "300"}})
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	err := cmd.Wait()
	if err == nil {
		t.Error("Expected process to be killed (non-nil error), got nil")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			t.Errorf("Expected process to be signaled, got exit status: %v", status)
		}
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", pm.Count())
	}
}

// TestManager_KillsProcessTree verifies process group signal propagation
func TestManager_KillsProcessTree(t *testing.T) {
	pm := NewManager()

	cmd := newCommand("bash", Options{Args: []string{mockCLI(t), "--spawn-child", "--sleep", "30"}})
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	parentPID := cmd.Process.Pid
	pm.Track(cmd)

	// Give the child time to spawn
	time.Sleep(200 * time.Millisecond)

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}
	_ = cmd.Wait()
	pm.Untrack(cmd)

	// SIGKILL delivery is asynchronous, so give the group a moment to die.
	deadline := time.Now().Add(2 * time.Second)
	live := liveGroupMembers(t, parentPID)
	for len(live) > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		live = liveGroupMembers(t, parentPID)
	}
	if len(live) > 0 {
		t.Errorf("Process group members still running after KillAll: %v", live)
	}
}

// liveGroupMembers lists the pids in process group pgid that are not zombies.
// Killed orphans stay listed as defunct until init reaps them.
func liveGroupMembers(t *testing.T, pgid int) []string {
	t.Helper()
	output, err := exec.Command("ps", "-eo", "pgid=,pid=,stat=").Output()
	if err != nil {
		t.Fatalf("Listing processes failed: %v", err)
	}

	var live []string
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[0] != strconv.Itoa(pgid) {
			continue
		}
		if strings.HasPrefix(fields[2], "Z") {
			continue
		}
		live = append(live, fields[1])
	}
	return live
}

// TestManager_NilReceiver verifies a nil Manager is a usable no-op tracker
func TestManager_NilReceiver(t *testing.T) {
	var pm *Manager

	cmd := exec.Command("true")
	pm.Track(cmd)
	pm.Untrack(cmd)

	if pm.Count() != 0 {
		t.Errorf("Expected 0 for nil manager, got %d", pm.Count())
	}
	if err := pm.KillAll(); err != nil {
		t.Errorf("Expected nil error for nil manager, got: %v", err)
	}
}

// TestManager_KillAllAfterExit verifies killing an already-exited group is not an error
func TestManager_KillAllAfterExit(t *testing.T) {
	pm := NewManager()

	cmd := newCommand("bash", Options{Args: []string{"-c", "exit 0"}})
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	pm.Track(cmd)
	_ = cmd.Wait()

	if err := pm.KillAll(); err != nil {
		t.Errorf("Expected no error signalling an exited group, got: %v", err)
	}
}
