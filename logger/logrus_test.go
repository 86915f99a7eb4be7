package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogrusBuffer() (*bytes.Buffer, *logrus.Logger) {
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return buf, l
}

func TestLogrusLogger_Warn(t *testing.T) {
	buf, ll := newLogrusBuffer()
	NewLogrusLogger(ll, Config{LogLevel: Warn}).Warn(context.Background(), "invalidating unknown key", "pen")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "invalidating unknown key", entry["msg"])
	assert.Contains(t, entry["file"], "logrus_test.go")
}

func TestLogrusLogger_Trace(t *testing.T) {
	buf, ll := newLogrusBuffer()
	logger := NewLogrusLogger(ll, Config{LogLevel: Info})

	logger.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `DELETE FROM "pen" WHERE "id" = 3`, 1
	}, errors.New("constraint failed"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "constraint failed", entry["error"])
	assert.Equal(t, float64(1), entry["rows"])

	buf.Reset()
	logger.LogMode(Silent).Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Empty(t, buf.String())
}

func TestLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, LogrusLevel(Error))
	assert.Equal(t, logrus.InfoLevel, LogrusLevel(Info))
}
