//go:build darwin

package procgroup

import "syscall"

// maxRSSBytes on Darwin, Maxrss is already reported in bytes.
func maxRSSBytes(ru *syscall.Rusage) int64 {
	return ru.Maxrss
}
