//go:build !linux

package process

import "os"

// waitExited is a no-op where waitid(WNOWAIT) is unavailable. The latch is
// then settled just after the reap, leaving a short window in which a
// watcher can signal a group id the kernel has already released.
func waitExited(p *os.Process) {}
