// Package model holds the wire-level data types shared across the request
// pipeline: the inbound Request, the Dependency Set, and the Execution
// Result returned to the caller (spec.md §3).
package model

import (
	"sort"
	"time"
)

// Options carries the per-request tunables from Request.options.
type Options struct {
	TimeoutMs    int64 `json:"timeout,omitempty"`
	ForceUpdate  bool  `json:"forceUpdate,omitempty"`
	Debug        bool  `json:"debug,omitempty"`
}

// Request is the inbound execution request (spec.md §3).
type Request struct {
	Code     string      `json:"code"`
	Items    interface{} `json:"items"`
	CacheKey string      `json:"cacheKey"`
	Options  Options     `json:"options"`
}

// DependencySet maps a package name to a version constraint. This service
// always emits the constraint "latest" (spec.md §3).
type DependencySet map[string]string

// Names returns the dependency set's package names in a stable sorted order.
func (d DependencySet) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConsoleEntryType enumerates the diagnostic output functions the sandbox
// wrapper intercepts.
type ConsoleEntryType string

const (
	ConsoleLog   ConsoleEntryType = "log"
	ConsoleInfo  ConsoleEntryType = "info"
	ConsoleWarn  ConsoleEntryType = "warn"
	ConsoleError ConsoleEntryType = "error"
	ConsoleDebug ConsoleEntryType = "debug"
)

// ConsoleEntry is one captured diagnostic message.
type ConsoleEntry struct {
	Type      ConsoleEntryType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Result is the structured response returned to the caller (spec.md §3).
type Result struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Console []ConsoleEntry `json:"console"`
	Error   string         `json:"error,omitempty"`
	Stack   string         `json:"stack,omitempty"`
	Debug   *DebugPayload  `json:"debug,omitempty"`
}

// CacheDebug is the debug.cache section of the response (spec.md §4.8).
type CacheDebug struct {
	UsedCache             bool   `json:"usedCache"`
	CacheKey              string `json:"cacheKey"`
	CurrentCacheSize      int64  `json:"currentCacheSize"`
	CurrentCacheSizeHuman string `json:"currentCacheSizeFormatted"`
	TotalCacheSize        int64  `json:"totalCacheSize"`
	TotalCacheSizeHuman   string `json:"totalCacheSizeFormatted"`
}

// ExecutionDebug is the debug.execution section of the response.
type ExecutionDebug struct {
	StartTime               time.Time         `json:"startTime"`
	InstalledDependencies   map[string]string `json:"installedDependencies"`
	DependencyInstallTimeMs int64             `json:"dependencyInstallTimeMs"`
	TotalResponseTimeMs     int64             `json:"totalResponseTimeMs"`
	ExecutionTimeMs         int64             `json:"executionTimeMs"`
	ResourceUsage           *ResourceUsage    `json:"resourceUsage,omitempty"`
}

// ResourceUsage is an enrichment beyond spec.md: process accounting for the
// sandboxed child, surfaced only in the debug payload (SPEC_FULL.md §C.1).
type ResourceUsage struct {
	UserTimeMs                 int64 `json:"userTimeMs"`
	SystemTimeMs               int64 `json:"systemTimeMs"`
	MaxRSSBytes                int64 `json:"maxRssBytes"`
	VoluntaryContextSwitches   int64 `json:"voluntaryContextSwitches"`
	InvoluntaryContextSwitches int64 `json:"involuntaryContextSwitches"`
}

// ServerDebug is the debug.server section of the response.
type ServerDebug struct {
	NodeVersion string `json:"nodeVersion"`
}

// DebugPayload is merged into the response when options.debug=true.
type DebugPayload struct {
	Server    ServerDebug    `json:"server"`
	Cache     CacheDebug     `json:"cache"`
	Execution ExecutionDebug `json:"execution"`
}
