// Package sandbox implements the sandbox runner (spec.md §4.7): it writes
// the user program and its input into a workspace, generates a wrapper
// program that captures diagnostic output and frames the outcome as JSON,
// spawns the guest interpreter under a wall-clock deadline, and classifies
// the child's exit into a structured model.Result.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/procgroup"
)

const (
	programFilename = "program.js"
	inputFilename   = "input.json"
	wrapperFilename = "__wrapper.js"

	interpreterBinary = "node"
)

// Runner executes guest programs inside an already-allocated workspace.
type Runner struct {
	defaultTimeout time.Duration
}

// New constructs a Runner with the given default deadline, applied when a
// request omits options.timeout.
func New(defaultTimeoutMs int64) *Runner {
	return &Runner{defaultTimeout: time.Duration(defaultTimeoutMs) * time.Millisecond}
}

// RunResult is the outcome of one sandboxed execution.
type RunResult struct {
	Result        model.Result
	ElapsedMs     int64
	ResourceUsage *model.ResourceUsage
}

// rawOutcome mirrors the wrapper's JSON framing before conversion into
// model.Result (whose Console entries carry parsed time.Time values).
type rawOutcome struct {
	Success bool             `json:"success"`
	Data    interface{}      `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
	Stack   string           `json:"stack,omitempty"`
	Console []rawConsoleLine `json:"console"`
}

type rawConsoleLine struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Run writes program+input+wrapper into workspaceDir, executes it under
// timeoutMs (or the Runner's default when timeoutMs <= 0), and classifies
// the outcome (spec.md §4.7).
func (r *Runner) Run(ctx context.Context, workspaceDir, code string, items interface{}, timeoutMs int64) (RunResult, error) {
	log := logging.Get(logging.CategorySandbox)

	if err := os.WriteFile(filepath.Join(workspaceDir, programFilename), []byte(code), 0o644); err != nil {
		return RunResult{}, fmt.Errorf("sandbox: writing program: %w", err)
	}

	inputData, err := json.Marshal(items)
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: serializing items: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workspaceDir, inputFilename), inputData, 0o644); err != nil {
		return RunResult{}, fmt.Errorf("sandbox: writing input: %w", err)
	}

	wrapperSrc := renderWrapper("./"+programFilename, "./"+inputFilename)
	if err := os.WriteFile(filepath.Join(workspaceDir, wrapperFilename), []byte(wrapperSrc), 0o644); err != nil {
		return RunResult{}, fmt.Errorf("sandbox: writing wrapper: %w", err)
	}

	deadline := r.defaultTimeout
	if timeoutMs > 0 {
		deadline = time.Duration(timeoutMs) * time.Millisecond
	}

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interpreterBinary, wrapperFilename)
	cmd.Dir = workspaceDir
	procgroup.Setup(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if _, ok := runErr.(*exec.Error); ok {
			log.Error("failed to spawn interpreter: %v", runErr)
			return RunResult{
				Result:    model.Result{Success: false, Error: runErr.Error(), Console: []model.ConsoleEntry{}},
				ElapsedMs: elapsed.Milliseconds(),
			}, nil
		}
	}

	result := classify(runErr, stdout.Bytes(), stderr.Bytes(), log)

	var usage *model.ResourceUsage
	if ru, ok := procgroup.Rusage(cmd); ok {
		usage = &model.ResourceUsage{
			UserTimeMs:                 ru.UserMs,
			SystemTimeMs:               ru.SysMs,
			MaxRSSBytes:                ru.MaxRSSBytes,
			VoluntaryContextSwitches:   ru.VoluntaryContextSwitches,
			InvoluntaryContextSwitches: ru.InvoluntaryContextSwitches,
		}
	}

	return RunResult{Result: result, ElapsedMs: elapsed.Milliseconds(), ResourceUsage: usage}, nil
}

// classify implements the outcome-classification rules from spec.md §4.7.
func classify(runErr error, stdout, stderr []byte, log *logging.Logger) model.Result {
	exitedZero := runErr == nil

	if exitedZero && len(stderr) == 0 {
		var raw rawOutcome
		if err := json.Unmarshal(stdout, &raw); err != nil {
			log.Warn("stdout did not parse as JSON despite clean exit: %v", err)
			return model.Result{Success: false, Error: "Invalid output format", Console: []model.ConsoleEntry{}}
		}
		return toResult(raw)
	}

	if len(stderr) > 0 {
		var raw rawOutcome
		if err := json.Unmarshal(stderr, &raw); err == nil {
			return toResult(raw)
		}
		msg := string(bytes.TrimSpace(stderr))
		if msg == "" {
			msg = "Unknown execution error"
		}
		return model.Result{Success: false, Error: msg, Console: []model.ConsoleEntry{}}
	}

	// Non-zero exit with no diagnostic output at all (e.g. a bare process
	// kill from the deadline): synthesize from the error itself.
	errMsg := "Unknown execution error"
	if runErr != nil {
		errMsg = runErr.Error()
	}
	return model.Result{Success: false, Error: errMsg, Console: []model.ConsoleEntry{}}
}

func toResult(raw rawOutcome) model.Result {
	entries := make([]model.ConsoleEntry, 0, len(raw.Console))
	for _, c := range raw.Console {
		ts, err := time.Parse(time.RFC3339Nano, c.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		entries = append(entries, model.ConsoleEntry{
			Type:      model.ConsoleEntryType(c.Type),
			Message:   c.Message,
			Timestamp: ts,
		})
	}
	return model.Result{
		Success: raw.Success,
		Data:    raw.Data,
		Error:   raw.Error,
		Stack:   raw.Stack,
		Console: entries,
	}
}
