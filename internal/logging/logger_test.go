package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetState() {
	CloseAll()
	logsDir = ""
	enabled = false
	jsonFormat = false
	logLevel = LevelInfo
}

func TestInit_DisabledIsNoop(t *testing.T) {
	resetState()
	defer resetState()

	dir := t.TempDir()
	require.NoError(t, Init(dir, false, "debug", false))

	Get(CategoryBoot).Info("should not be written")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "disabled logging must not create a logs directory")
}

func TestInit_EnabledWritesFile(t *testing.T) {
	resetState()
	defer resetState()

	dir := t.TempDir()
	require.NoError(t, Init(dir, true, "debug", false))

	Get(CategoryResolver).Info("resolved %d packages", 3)

	logsDirPath := filepath.Join(dir, "logs")
	entries, err := os.ReadDir(logsDirPath)
	require.NoError(t, err)
	require.NotEmpty(t, entries, "enabled logging must create at least one log file")
}

func TestLevelFiltering(t *testing.T) {
	resetState()
	defer resetState()

	dir := t.TempDir()
	require.NoError(t, Init(dir, true, "warn", false))

	l := Get(CategorySandbox)
	l.Debug("debug message, should be dropped")
	l.Info("info message, should be dropped")
	l.Warn("warn message, should be kept")

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "*sandbox.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)
	require.NotContains(t, content, "debug message")
	require.NotContains(t, content, "info message")
	require.Contains(t, content, "warn message")
}
