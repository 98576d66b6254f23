package kernel

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teranos/qconsole/errors"
)

func TestSplitCode(t *testing.T) {
	tests := []struct {
		code string
		want []string
	}{
		{"", nil},
		{"\n", nil},
		{"x = 1", []string{"x = 1"}},
		{"x = 1\n", []string{"x = 1"}},
		{"x = 1\n\n", []string{"x = 1", ""}},
		{"a\r\nb\rc", []string{"a", "b", "c"}},
		{"if x:\n    y\n", []string{"if x:", "    y"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitCode(tt.code), "%q", tt.code)
	}
}

func TestWriteRequest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRequest(&buf, "a = 1\r\nprint(a)\n"))

	assert.Equal(t, ExecStart+"\na = 1\nprint(a)\n"+ExecEnd+"\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRequest(&buf, ""))
	assert.Equal(t, ExecStart+"\n"+ExecEnd+"\n", buf.String())
}

func TestDecodeBlock(t *testing.T) {
	_, err := decodeBlock("{broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProtocol))

	_, err = decodeBlock(`[1, 2]`)
	assert.True(t, errors.Is(err, errors.ErrProtocol))

	b, err := decodeBlock(`  {"type": "stdout", "data": "x"}  `)
	require.NoError(t, err)
	assert.Equal(t, BlockStdout, b.Type)
	assert.False(t, b.terminal())
}

func TestBlockTerminal(t *testing.T) {
	for typ, want := range map[string]bool{
		BlockStdout:            false,
		BlockCompletions:       false,
		BlockTypeRelationships: false,
		BlockSQLMetadata:       false,
		BlockResult:            true,
		BlockSuccess:           true,
		BlockError:             true,
		"":                     true,
		"progress":             true,
	} {
		assert.Equal(t, want, (&block{Type: typ}).terminal(), typ)
	}
}

func TestApplyBlocks(t *testing.T) {
	res := newExecutionResult(1)
	apply := func(line string) error {
		b, err := decodeBlock(line)
		require.NoError(t, err)
		return b.apply(res)
	}

	require.NoError(t, apply(`{"type": "stdout", "data": 12}`))
	assert.Empty(t, res.Outputs, "non-string stdout payload is dropped")

	require.NoError(t, apply(`{"type": "sql_metadata", "data": {"tables": ["t", "t"], "columns": null}}`))
	assert.Equal(t, []string{"t"}, res.SQLMetadata.Tables)
	assert.NotNil(t, res.SQLMetadata.Columns)
	assert.NotNil(t, res.SQLMetadata.Functions)

	require.NoError(t, apply(`{"type": "type_relationships", "data": {"return_types": {"f": "T"}}}`))
	assert.Equal(t, "T", res.TypeRelationships.ReturnTypes["f"])
	assert.NotNil(t, res.TypeRelationships.TypeMethods)

	assert.Error(t, apply(`{"type": "completions", "data": {"name": "x"}}`))

	require.NoError(t, apply(`{"type": "result", "data": null}`))
	assert.True(t, res.Success)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, Result(""), res.Outputs[0], "null result payload still yields a result")

	require.NoError(t, apply(`{"type": "result", "data": [1, 2]}`))
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, Result("[1, 2]"), res.Outputs[1], "non-string result payload keeps its JSON text")

	require.NoError(t, apply(`{"type": "error", "ename": 5, "evalue": "bad"}`))
	assert.False(t, res.Success)
	require.Len(t, res.Outputs, 3)
	assert.Equal(t, "Error", res.Outputs[2].Err.Name)
	assert.Equal(t, "bad", res.Outputs[2].Err.Message)
	assert.Equal(t, []string{}, res.Outputs[2].Err.Traceback)
}

func TestCommandLine(t *testing.T) {
	name, args, err := commandLine(Config{Interpreter: `uv run "my python"`})
	require.NoError(t, err)
	assert.Equal(t, "uv", name)
	require.Len(t, args, 5)
	assert.Equal(t, []string{"run", "my python", "-u", "-c"}, args[:4])
	assert.Equal(t, companionScript, args[4])

	_, args, err = commandLine(Config{Interpreter: "python3", Script: "print('hi')"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-u", "-c", "print('hi')"}, args)

	_, args, err = commandLine(Config{Interpreter: "python3", Args: []string{}})
	require.NoError(t, err)
	assert.Empty(t, args)

	_, _, err = commandLine(Config{Interpreter: `python3 "unterminated`})
	assert.Error(t, err)
}

func TestCompanionScript(t *testing.T) {
	src := CompanionScript()
	for _, token := range []string{ReadyToken, ExecStart, ExecEnd, OutputStart, OutputEnd} {
		assert.Contains(t, src, token)
	}
	for _, typ := range []string{BlockCompletions, BlockTypeRelationships, BlockSQLMetadata} {
		assert.Contains(t, src, `"`+typ+`"`)
	}
}

func TestChildEnv(t *testing.T) {
	t.Setenv("TERM", "xterm")
	t.Setenv("TERM_PROGRAM", "vscode")

	env := childEnv([]string{"EXTRA=1"})

	assert.Contains(t, env, "TERM=dumb")
	assert.Contains(t, env, "EXTRA=1")
	assert.NotContains(t, env, "TERM=xterm")
	for _, kv := range env {
		assert.False(t, strings.HasPrefix(kv, "TERM_PROGRAM="), kv)
	}
}

func TestLineChannel(t *testing.T) {
	c := newLineChannel(strings.NewReader("one\r\ntwo\npartial"))
	defer c.close()
	ctx := context.Background()

	for _, want := range []string{"one", "two", "partial"} {
		line, err := c.next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := c.next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = c.next(ctx)
	assert.ErrorIs(t, err, io.EOF, "closed channel keeps reporting EOF")
}

func TestLineChannelContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := newLineChannel(r)
	defer c.close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineChannelLongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	c := newLineChannel(strings.NewReader(long + "\n"))
	defer c.close()

	line, err := c.next(context.Background())
	require.NoError(t, err)
	assert.Len(t, line, len(long))
}

func TestLineChannelCloseReleasesPump(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Pump blocked handing over a line nobody reads
	unread := newLineChannel(strings.NewReader("a\nb\n"))
	unread.close()

	// Pump blocked in a read until the reader is closed
	r, w := io.Pipe()
	blocked := newLineChannel(r)
	blocked.close()
	require.NoError(t, r.Close())
	require.NoError(t, w.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}
