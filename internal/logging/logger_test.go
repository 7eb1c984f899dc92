package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"varweave/internal/config"
	"varweave/internal/metadata"
	"varweave/internal/weave"
)

func observe(t *testing.T, c config.LoggingConfig) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core), c)
	t.Cleanup(Reset)
	return logs
}

func TestGet_NamesLoggerByCategory(t *testing.T) {
	logs := observe(t, config.LoggingConfig{})

	Get(CategoryWeave).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "weave", entries[0].LoggerName)
	assert.Equal(t, "hello", entries[0].Message)
}

func TestGet_DisabledCategoryIsNop(t *testing.T) {
	logs := observe(t, config.LoggingConfig{Categories: map[string]bool{"ledger": false}})

	Get(CategoryLedger).Error("dropped")
	Get(CategoryWatch).Info("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.False(t, IsCategoryEnabled(CategoryLedger))
}

func TestNewSink_MapsSeverityAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewSink(zap.New(core))

	sink.Emit(weave.Event{
		Severity:      weave.SeverityInfo,
		Kind:          weave.KindMarkedVariant,
		Message:       "marking type I's parameter T as Covariant",
		TypeName:      "I",
		ParameterName: "T",
		Variance:      metadata.Covariant,
	})
	sink.Emit(weave.Event{
		Severity: weave.SeverityError,
		Kind:     weave.KindConflictingVariance,
		Message:  "conflict",
		TypeName: "K",
	})
	sink.Emit(weave.Event{
		Severity:      weave.SeverityDebug,
		Kind:          weave.KindMarkerNotFound,
		Message:       "not found",
		AttributeName: weave.DefaultCovariantName,
	})
	sink.Emit(weave.Event{Severity: weave.SeverityWarning, Kind: weave.KindAlreadyVariant, Message: "already"})

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "marked-variant", ctx["kind"])
	assert.Equal(t, "I", ctx["type"])
	assert.Equal(t, "T", ctx["parameter"])
	assert.Equal(t, "Covariant", ctx["variance"])
	assert.NotContains(t, ctx, "attribute")

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "variance")

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, weave.DefaultCovariantName, entries[2].ContextMap()["attribute"])

	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
}

func TestNewSink_NilLogger(t *testing.T) {
	NewSink(nil).Emit(weave.Event{Severity: weave.SeverityError, Message: "x"})
}

func TestInitialize_DebugModeWritesFile(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(Reset)

	err := Initialize(config.LoggingConfig{Level: "debug", DebugMode: true}, ws)
	require.NoError(t, err)

	Get(CategoryWeave).Info("file entry", zap.String("type", "I"))
	Sync()

	dir := LogsDir()
	require.Equal(t, filepath.Join(ws, config.StateDir, "logs"), dir)
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), "_varweave.log"))

	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"file entry"`)
	assert.Contains(t, string(data), `"logger":"weave"`)
}

func TestInitialize_NoFileWithoutDebugMode(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(Reset)

	require.NoError(t, Initialize(config.LoggingConfig{Level: "info"}, ws))
	assert.Empty(t, LogsDir())
	_, err := os.Stat(filepath.Join(ws, config.StateDir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitialize_BadLevel(t *testing.T) {
	t.Cleanup(Reset)
	assert.Error(t, Initialize(config.LoggingConfig{Level: "chatty"}, ""))
}
