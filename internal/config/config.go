// Package config loads process configuration from environment variables
// (SPEC_FULL.md §A.3), in the teacher's os.Getenv override idiom: every
// setting has a hardcoded default, overridden only when the variable is
// set and non-empty.
package config

import (
	"os"
	"strconv"

	"codeforge/internal/sizefmt"
)

// Config is the immutable, fully-resolved process configuration. Build one
// with Load() at startup and pass it down; nothing in this package mutates
// it afterward.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// ExecutionDir is the workspace root under which per-run directories
	// are allocated (spec.md §4.6).
	ExecutionDir string

	// CacheDir is the dependency cache root (spec.md §4.4-§4.5).
	CacheDir string

	// SecretKey, when non-empty, is the required bearer token. Empty
	// disables authentication entirely (spec.md §6).
	SecretKey string

	// DefaultTimeoutMs is the execution deadline applied when a request
	// omits options.timeout (spec.md §4.7).
	DefaultTimeoutMs int64

	// CacheSizeLimitBytes is the cache eviction budget (spec.md §4.4).
	CacheSizeLimitBytes int64

	// ExecutionsDataPruneMaxCount is the workspace retention count; 0
	// means delete each workspace as soon as the request finishes
	// (spec.md §4.6).
	ExecutionsDataPruneMaxCount int

	// Debug gates the ambient logging subsystem (SPEC_FULL.md §A.1).
	Debug bool

	// LogLevel is one of debug/info/warn/error.
	LogLevel string

	// LogJSON switches log lines to structured JSON framing.
	LogJSON bool

	// MetricsEnabled toggles the /metrics endpoint (SPEC_FULL.md §C.3).
	MetricsEnabled bool

	// AuditDBPath is the sqlite file backing the execution audit trail
	// (SPEC_FULL.md §C.4). Empty disables the audit trail.
	AuditDBPath string
}

const (
	defaultPort           = "3000"
	defaultExecutionDir   = "./executions"
	defaultCacheDir       = "./dependencies-cache"
	defaultTimeoutMs      = int64(60000)
	defaultCacheSizeLimit = "1GB"
	defaultPruneMaxCount  = 100
	defaultLogLevel       = "info"
	defaultAuditDBPath    = "./executions/audit.db"
)

// Load resolves Config from the process environment, applying defaults for
// anything unset.
func Load() *Config {
	cfg := &Config{
		Port:                        getEnv("PORT", defaultPort),
		ExecutionDir:                getEnv("EXECUTION_DIR", defaultExecutionDir),
		CacheDir:                    getEnv("CACHE_DIR", defaultCacheDir),
		SecretKey:                   os.Getenv("SECRET_KEY"),
		DefaultTimeoutMs:            getEnvInt64("DEFAULT_TIMEOUT", defaultTimeoutMs),
		CacheSizeLimitBytes:         sizefmt.Parse(getEnv("CACHE_SIZE_LIMIT", defaultCacheSizeLimit)),
		ExecutionsDataPruneMaxCount: getEnvInt("EXECUTIONS_DATA_PRUNE_MAX_COUNT", defaultPruneMaxCount),
		Debug:                       getEnvBool("DEBUG", false),
		LogLevel:                    getEnv("LOG_LEVEL", defaultLogLevel),
		LogJSON:                     getEnvBool("LOG_JSON", false),
		MetricsEnabled:              getEnvBool("METRICS_ENABLED", true),
		AuditDBPath:                 getEnv("AUDIT_DB_PATH", defaultAuditDBPath),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
