//go:build !windows

// Package procgroup configures and tears down child processes as their own
// process group so a timeout reliably kills the whole tree (grandchildren
// included), not just the direct child. Grounded in the teacher's
// platform_unix.go setupProcessGroup/killProcessGroup.
package procgroup

import (
	"os/exec"
	"strings"
	"syscall"
)

// Setup configures cmd to start in its own process group.
func Setup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends SIGKILL to the whole process group, falling back to killing
// the direct child if the group signal fails.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			syscall.Kill(-pgid, syscall.SIGTERM)
		}
	}

	if err := cmd.Process.Kill(); err != nil {
		if !strings.Contains(err.Error(), "process already finished") {
			return err
		}
	}
	return nil
}

// Usage is the resource accounting extracted from a finished command.
type Usage struct {
	UserMs                     int64
	SysMs                      int64
	MaxRSSBytes                int64
	VoluntaryContextSwitches   int64
	InvoluntaryContextSwitches int64
}

// Rusage extracts resource usage from a finished command (SPEC_FULL.md
// §C.1 enrichment), grounded in platform_unix.go getProcessResourceUsage.
func Rusage(cmd *exec.Cmd) (Usage, bool) {
	if cmd.ProcessState == nil {
		return Usage{}, false
	}
	ru, valid := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !valid || ru == nil {
		return Usage{}, false
	}
	return Usage{
		UserMs:                     ru.Utime.Sec*1000 + int64(ru.Utime.Usec/1000),
		SysMs:                      ru.Stime.Sec*1000 + int64(ru.Stime.Usec/1000),
		MaxRSSBytes:                maxRSSBytes(ru),
		VoluntaryContextSwitches:   int64(ru.Nvcsw),
		InvoluntaryContextSwitches: int64(ru.Nivcsw),
	}, true
}
