package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_KeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With("run_id", "r1")

	logger.Info("sync finished", "upserted", 12)
	logger.Warn("dangling connection", "path", "a.json")
	logger.Debug("page fetched")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "sync finished", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r1", fields["run_id"])
	assert.EqualValues(t, 12, fields["upserted"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewLogger_LevelFallback(t *testing.T) {
	logger := NewLogger("not-a-level", "json")
	require.NotNil(t, logger)
	assert.False(t, logger.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.sugar.Desugar().Core().Enabled(zapcore.InfoLevel))

	assert.True(t, NewLogger("DEBUG", "console").sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
}
