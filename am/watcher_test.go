package am

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*ConfigWatcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("[autocomplete]\nwindow_size = 3\n"), 0644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond
	cw.load = func() (*Config, error) { return LoadFromFile(path) }
	t.Cleanup(func() { _ = cw.Stop() })
	return cw, path
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	cw, path := newTestWatcher(t)

	got := make(chan *Config, 4)
	cw.OnReload(func(c *Config) error {
		got <- c
		return nil
	})
	cw.Start()

	require.NoError(t, os.WriteFile(path, []byte("[autocomplete]\nwindow_size = 9\n"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Autocomplete.WindowSize == 9 {
				return
			}
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	cw, path := newTestWatcher(t)

	var calls atomic.Int32
	cw.OnReload(func(*Config) error {
		calls.Add(1)
		return nil
	})
	cw.Start()

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.toml"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(path+".back1", []byte("x = 1\n"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestConfigWatcher_InvalidConfigKeepsPrevious(t *testing.T) {
	cw, path := newTestWatcher(t)

	var calls atomic.Int32
	cw.OnReload(func(*Config) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[autocomplete]\nwindow_size = 0\n"), 0644))
	err := cw.reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
	assert.Zero(t, calls.Load())
}

func TestConfigWatcher_CallbackErrorsDontStopOthers(t *testing.T) {
	cw, _ := newTestWatcher(t)

	var second atomic.Bool
	cw.OnReload(func(*Config) error { return assert.AnError })
	cw.OnReload(func(*Config) error {
		second.Store(true)
		return nil
	})

	require.NoError(t, cw.reload())
	assert.True(t, second.Load())
}

func TestConfigWatcher_OwnWriteFlag(t *testing.T) {
	cw, _ := newTestWatcher(t)

	assert.False(t, cw.ownWrite.Load())
	cw.MarkOwnWrite()
	assert.True(t, cw.ownWrite.CompareAndSwap(true, false))
	assert.False(t, cw.ownWrite.Load(), "flag clears after one check")
}

func TestConfigWatcher_StopIdempotent(t *testing.T) {
	cw, _ := newTestWatcher(t)
	cw.Start()
	assert.NoError(t, cw.Stop())
	assert.NoError(t, cw.Stop())
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/config.toml.back1"))
	assert.True(t, isBackupFile("qconsole.toml.back3"))
	assert.False(t, isBackupFile("qconsole.toml"))
	assert.False(t, isBackupFile("notes.backup"))
}

func TestGlobalWatcher(t *testing.T) {
	cw, _ := newTestWatcher(t)
	SetGlobalWatcher(cw)
	t.Cleanup(func() { SetGlobalWatcher(nil) })
	assert.Same(t, cw, GetGlobalWatcher())
}
