//go:build windows

package procgroup

import "os/exec"

// Setup is a no-op on Windows; process groups are not used to bound the
// sandboxed child tree there.
func Setup(cmd *exec.Cmd) {}

// Kill falls back to killing the direct child process.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Usage is the resource accounting extracted from a finished command.
type Usage struct {
	UserMs                     int64
	SysMs                      int64
	MaxRSSBytes                int64
	VoluntaryContextSwitches   int64
	InvoluntaryContextSwitches int64
}

// Rusage is unavailable on Windows through syscall.Rusage.
func Rusage(cmd *exec.Cmd) (Usage, bool) {
	return Usage{}, false
}
