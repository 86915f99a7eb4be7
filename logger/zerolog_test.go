package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf), Config{LogLevel: Info})

	logger.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `INSERT INTO "company" DEFAULT VALUES RETURNING "id"`, 1
	}, nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "SQL executed", entry["message"])
	assert.Contains(t, entry["sql"], "DEFAULT VALUES")
}

func TestZerologLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf), Config{LogLevel: Error})

	logger.Warn(context.Background(), "ignored")
	assert.Empty(t, buf.String())

	logger.LogMode(Warn).Warn(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, ZerologLevel(Silent))
	assert.Equal(t, zerolog.WarnLevel, ZerologLevel(Warn))
}
