package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZapBuffer() (*bytes.Buffer, *zap.Logger) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	return &buf, zap.New(core)
}

func TestZapLogger_LogMode(t *testing.T) {
	logger := NewZapLogger(zap.NewNop(), Config{LogLevel: Error})

	infoLogger := logger.LogMode(Info)
	assert.Equal(t, Info, infoLogger.(*ZapLogger).LogLevel)
	assert.Equal(t, Error, logger.(*ZapLogger).LogLevel)
}

func TestZapLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("executed", func(t *testing.T) {
		buf, zl := newZapBuffer()
		NewZapLogger(zl, Config{LogLevel: Info}).Trace(ctx, time.Now(), func() (string, int64) {
			return `SELECT "id" FROM "pen" WHERE "person_id" = 1`, 2
		}, nil)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "SQL executed", entry["msg"])
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, float64(2), entry["rows"])
		assert.Contains(t, entry["sql"], `"pen"`)
	})

	t.Run("failed", func(t *testing.T) {
		buf, zl := newZapBuffer()
		NewZapLogger(zl, Config{LogLevel: Error}).Trace(ctx, time.Now(), func() (string, int64) {
			return `UPDATE "company" SET "cool" = true WHERE "id" = 1`, -1
		}, errors.New("database is locked"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "SQL failed", entry["msg"])
		assert.Equal(t, "database is locked", entry["error"])
		assert.NotContains(t, entry, "rows")
	})

	t.Run("slow", func(t *testing.T) {
		buf, zl := newZapBuffer()
		NewZapLogger(zl, Config{LogLevel: Warn, SlowThreshold: time.Millisecond}).Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) {
			return "SELECT 1", 1
		}, nil)
		assert.Contains(t, buf.String(), "SLOW SQL executed")
	})
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, ZapLevel(Error))
	assert.Equal(t, zapcore.WarnLevel, ZapLevel(Warn))
	assert.Equal(t, zapcore.InfoLevel, ZapLevel(Info))
	assert.Equal(t, zapcore.DPanicLevel, ZapLevel(Silent))
}
