// Package sizefmt parses and formats human-readable byte sizes such as
// "1GB" or "500MB". Units are binary (1 KB = 1024 bytes).
package sizefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	Byte = 1
	KB   = Byte * 1024
	MB   = KB * 1024
	GB   = MB * 1024
	TB   = GB * 1024

	// defaultBytes is the fallback when a string can't be parsed at all.
	defaultBytes = 1 * GB
)

var sizePattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*(B|KB|MB|GB|TB)?\s*$`)

// Parse converts a human-readable byte size into a byte count.
//
// Accepts "<digits>(.<digits>)? (B|KB|MB|GB|TB)" case-insensitively, with
// optional surrounding whitespace. A bare numeric string is parsed as a
// decimal byte count. Anything else falls back to 1 GiB.
func Parse(s string) int64 {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int64(n)
		}
		return defaultBytes
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return defaultBytes
	}

	unit := strings.ToUpper(m[2])
	switch unit {
	case "", "B":
		return int64(value)
	case "KB":
		return int64(value * KB)
	case "MB":
		return int64(value * MB)
	case "GB":
		return int64(value * GB)
	case "TB":
		return int64(value * TB)
	default:
		return defaultBytes
	}
}

// Format renders a byte count as a human-readable string, selecting the
// largest unit at which the value is >= 1 and printing two decimals. Below
// 1 KB it prints an integer byte count instead.
func Format(bytes int64) string {
	switch {
	case bytes < KB:
		return fmt.Sprintf("%dB", bytes)
	case bytes < MB:
		return fmt.Sprintf("%.2fKB", float64(bytes)/KB)
	case bytes < GB:
		return fmt.Sprintf("%.2fMB", float64(bytes)/MB)
	case bytes < TB:
		return fmt.Sprintf("%.2fGB", float64(bytes)/GB)
	default:
		return fmt.Sprintf("%.2fTB", float64(bytes)/TB)
	}
}
