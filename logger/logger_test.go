package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerIsNop(t *testing.T) {
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Infow("ignored", "k", "v")
		Debugw("ignored")
	})
}

func TestInitializeWriterJSON(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved; JSONOutput = false })

	var buf bytes.Buffer
	require.NoError(t, InitializeWriter(&buf, true, VerbosityInfo))
	assert.True(t, JSONOutput)

	Infow("kernel connected", FieldKernel, "python3", FieldPID, 42)
	Debugw("suppressed at info level")
	Cleanup()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kernel connected", entry["msg"])
	assert.Equal(t, "python3", entry[FieldKernel])
	assert.EqualValues(t, 42, entry[FieldPID])
}

func TestInitializeWriterConsoleLevels(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	var buf bytes.Buffer
	require.NoError(t, InitializeWriter(&buf, false, VerbosityUser))

	Infow("hidden")
	Warnw("shown")
	Cleanup()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{VerbosityTrace, zapcore.DebugLevel},
		{9, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestShouldLogTrace(t *testing.T) {
	assert.False(t, ShouldLogTrace(VerbosityDebug))
	assert.True(t, ShouldLogTrace(VerbosityTrace))
}

func TestTraceEnabled(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved; Verbosity = 0 })

	var buf bytes.Buffer
	require.NoError(t, InitializeWriter(&buf, false, VerbosityDebug))
	assert.False(t, TraceEnabled())
	require.NoError(t, InitializeWriter(&buf, false, VerbosityTrace))
	assert.True(t, TraceEnabled())
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "User", LevelName(0))
	assert.Equal(t, "Debug (-vv)", LevelName(2))
	assert.Equal(t, "Trace (-vvv)", LevelName(5))
	assert.Equal(t, "Unknown", LevelName(-3))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithComponent(WithSessionID(context.Background(), "abc"), "kernel")

	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{FieldSessionID, "abc", FieldComponent, "kernel"}, fields)
	assert.Empty(t, FieldsFromContext(context.Background()))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
	assert.NotNil(t, LoggerFromContext(context.Background(), nil))
}
