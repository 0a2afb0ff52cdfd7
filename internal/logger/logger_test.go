package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)

	l.LogSession("CHECK_IN", "B1234XYZ", "session opened")
	l.Warn("cache", "hint write failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "SESSION", entry.Category)
	assert.Equal(t, "[CHECK_IN] B1234XYZ - session opened", entry.Message)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "CACHE", entry.Category)
	assert.Equal(t, "logger_test.go", entry.File)
}

func TestMinLevelFiltersEntries(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)
	l.minLevel = WARN

	l.Debug("DATABASE", "ignored")
	l.Info("DATABASE", "ignored")
	l.Error("DATABASE", "kept")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "kept")
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("API", "nothing happens")
		l.Close()
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, parseLevel("debug"))
	assert.Equal(t, WARN, parseLevel("WARN"))
	assert.Equal(t, ERROR, parseLevel("error"))
	assert.Equal(t, INFO, parseLevel(""))
}

func TestTerminalLineCarriesLevelAndCaller(t *testing.T) {
	line := terminalLine(LogEntry{
		Timestamp: "2026-02-10T08:15:30.000Z",
		Level:     "ERROR",
		Category:  "INVOICE",
		Message:   "counter unavailable",
		File:      "checkout.go",
		Line:      42,
	})

	assert.Contains(t, line, "08:15:30")
	assert.Contains(t, line, "ERROR")
	assert.Contains(t, line, "[INVOICE   ]")
	assert.Contains(t, line, "counter unavailable")
	assert.Contains(t, line, "(checkout.go:42)")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "FATAL", FATAL.String())
	assert.Equal(t, "INFO", LogLevel(42).String())
	assert.Equal(t, INFO, parseLevel("fatal"))
}
