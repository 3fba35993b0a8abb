package process

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// waitExited blocks until p has exited but leaves it unreaped. While the
// zombie exists its pid, and so its process group id, cannot be reused.
func waitExited(p *os.Process) {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, p.Pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}
