package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sensor-proxy/internal/logging"
)

type logEntry struct {
	Level   string `json:"level"`
	Message string `json:"msg"`
	Sensor  string `json:"sensor"`
	Error   string `json:"error"`
}

func lastEntry(t *testing.T, buf *bytes.Buffer) logEntry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

// TestLoggerHonorsLogLevel checks that entries below the configured level are dropped.
func TestLoggerHonorsLogLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("info", logging.WithWriter(buf))
	require.NoError(t, err)

	logger.Debug("debug message")
	assert.Zero(t, buf.Len(), "debug entry must not be written at info level")

	logger.Info("info message")
	require.NotZero(t, buf.Len())
	entry := lastEntry(t, buf)
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "info message", entry.Message)
}

func TestLoggerKeyValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("debug", logging.WithWriter(buf))
	require.NoError(t, err)

	logger.Warn("decode failed", logging.AttachError(errors.New("boom"), "sensor", "cbf.device-status")...)

	entry := lastEntry(t, buf)
	assert.Equal(t, "warn", entry.Level)
	assert.Equal(t, "cbf.device-status", entry.Sensor)
	assert.Equal(t, "boom", entry.Error)
}

func TestNamedLoggerKeepsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("error", logging.WithWriter(buf))
	require.NoError(t, err)
	child := logger.Named("mirror")

	child.Info("dropped")
	assert.Zero(t, buf.Len())

	child.Error("kept")
	assert.Equal(t, "kept", lastEntry(t, buf).Message)
}

func TestZapStdLogWritesThroughLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("info", logging.WithWriter(buf))
	require.NoError(t, err)

	zap.NewStdLog(logger.Zap()).Print("http: TLS handshake error")

	entry := lastEntry(t, buf)
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "http: TLS handshake error", entry.Message)
	require.NoError(t, logger.Sync())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *logging.Logger

	assert.NotPanics(t, func() {
		logger.Info("ignored")
		logger.Named("child").Error("ignored")
		_ = logger.Sync()
	})
	assert.NotNil(t, logger.Zap())
}

func TestAttachErrorWithoutError(t *testing.T) {
	args := logging.AttachError(nil, "k", "v")
	assert.Equal(t, []any{"k", "v"}, args)
}
