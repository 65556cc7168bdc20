package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := log
	log = zap.New(core)
	t.Cleanup(func() { log = previous })
	return logs
}

func fieldMap(entry observer.LoggedEntry) map[string]interface{} {
	return entry.ContextMap()
}

func TestWith(t *testing.T) {
	logs := observe(t)

	ctx := With(context.Background(), zap.String("pass_id", "p1"))
	ctx = With(ctx, zap.String("class", "product"))
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	InfoCtx(child, "pass started", zap.Int("sources", 3))
	WarnCtx(context.Background(), "no scope")

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := fieldMap(entries[0])
	assert.Equal(t, "p1", fields["pass_id"])
	assert.Equal(t, "product", fields["class"])
	assert.Equal(t, int64(3), fields["sources"])

	assert.NotContains(t, fieldMap(entries[1]), "pass_id")
}

func TestWith_DoesNotLeakIntoParent(t *testing.T) {
	logs := observe(t)

	parent := With(context.Background(), zap.String("request_id", "r1"))
	_ = With(parent, zap.String("class", "review"))

	DebugCtx(parent, "parent entry")

	fields := fieldMap(logs.All()[0])
	assert.Equal(t, "r1", fields["request_id"])
	assert.NotContains(t, fields, "class")
	assert.Same(t, parent, With(parent))
}

func TestErrorMessage(t *testing.T) {
	logs := observe(t)

	ErrorCtx(context.Background(), errors.New("store insert: connection refused"))
	Error(nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "store insert: connection refused", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "error occurred", entries[1].Message)
}

func TestInitialize(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	require.NoError(t, Initialize(Config{Level: "warn", Service: "test"}))
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Initialize(Config{Debug: true, Level: "error"}))
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, Initialize(Config{Level: "loud"}))
}
