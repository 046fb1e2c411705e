// Package api is the thin HTTP layer described as an external collaborator
// in spec.md §1/§6: request framing, JSON body parsing, bearer-token auth,
// and the operator-facing health/auth probes. The orchestrator carries all
// of the non-trivial logic; this package only adapts it to net/http.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeforge/internal/apperr"
	"codeforge/internal/audit"
	"codeforge/internal/logging"
	"codeforge/internal/metrics"
	"codeforge/internal/model"
	"codeforge/internal/orchestrator"
)

// Server adapts an Orchestrator to HTTP (spec.md §6).
type Server struct {
	orch             *orchestrator.Orchestrator
	audit            *audit.Store
	secretKey        string
	defaultTimeoutMs int64
	metricsEnabled   bool
	version          string
}

// Config carries the external-interface settings api.Server needs.
type Config struct {
	SecretKey        string
	DefaultTimeoutMs int64
	MetricsEnabled   bool
	Version          string
}

// NewServer builds the HTTP mux wired to orch.
func NewServer(orch *orchestrator.Orchestrator, auditStore *audit.Store, cfg Config) *Server {
	return &Server{
		orch:             orch,
		audit:            auditStore,
		secretKey:        cfg.SecretKey,
		defaultTimeoutMs: cfg.DefaultTimeoutMs,
		metricsEnabled:   cfg.MetricsEnabled,
		version:          cfg.Version,
	}
}

// Mux returns the fully wired http.Handler.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/verify-auth", s.requireAuth(http.HandlerFunc(s.handleVerifyAuth)))
	mux.Handle("/execute", s.requireAuth(http.HandlerFunc(s.handleExecute)))
	if s.metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// requireAuth enforces the bearer-token middleware described in spec.md
// §6: a configured SECRET_KEY requires a matching Authorization header;
// an empty SECRET_KEY disables authentication entirely.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secretKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "missing Authorization header"})
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.secretKey {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "error": "invalid bearer token"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	auth := "disabled"
	if s.secretKey != "" {
		auth = "enabled"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        s.version,
		"auth":           auth,
		"defaultTimeout": durationLabel(s.defaultTimeoutMs),
	})
}

func (s *Server) handleVerifyAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Authentication successful",
		"authenticated": true,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	log := logging.Get(logging.CategoryAPI)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"success": false, "error": "POST required"})
		return
	}

	var req model.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "malformed request body"})
		return
	}

	if err := orchestrator.Validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}

	start := time.Now()
	result, telemetry, err := s.orch.Execute(r.Context(), req)
	if err != nil {
		log.Error("request cacheKey=%s failed: %v", req.CacheKey, err)
		metrics.ObserveRequest(string(apperr.KindOf(err)))
		writeJSON(w, http.StatusOK, model.Result{Success: false, Error: err.Error(), Console: []model.ConsoleEntry{}})
		return
	}

	outcome := "success"
	if !result.Success {
		outcome = "execution_failure"
	}
	metrics.ObserveRequest(outcome)
	if s.audit != nil {
		_ = s.audit.Insert(audit.Record{
			CacheKey:    req.CacheKey,
			StartedAt:   start,
			Success:     result.Success,
			TotalMs:     time.Since(start).Milliseconds(),
			ErrorKind:   outcome,
			UsedCache:   telemetry.UsedCache,
			InstallMs:   telemetry.InstallMs,
			ExecutionMs: telemetry.ExecutionMs,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func durationLabel(ms int64) string {
	return strconv.FormatInt(ms, 10) + "ms"
}
