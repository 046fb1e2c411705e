//go:build linux

package procgroup

import "syscall"

// maxRSSBytes converts Maxrss, which the Linux kernel reports in
// kilobytes, to bytes.
func maxRSSBytes(ru *syscall.Rusage) int64 {
	return ru.Maxrss * 1024
}
