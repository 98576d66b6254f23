package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(12), ParseValue("12"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "uv run python", ParseValue(`"uv run python"`))
	assert.Equal(t, "python3", ParseValue("python3"), "bare words are strings")
	assert.Equal(t, []interface{}{"a.db", "b.db"}, ParseValue(`["a.db", "b.db"]`))
}

func TestSetValue_CreatesAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, SetValue(path, "kernel.interpreter", "python3.12"))
	require.NoError(t, SetValue(path, "autocomplete.window_size", ParseValue("6")))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "python3.12", cfg.Kernel.Interpreter)
	assert.Equal(t, 6, cfg.Autocomplete.WindowSize)

	// First write had nothing to back up, second one did
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)
}

func TestSetValue_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := SetValue(path, "kernel.colour", "blue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing written for a rejected key")
}

func TestSetValue_PreservesUnrelatedTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[schema]\nsqlite = [\"a.db\"]\n"), 0644))

	require.NoError(t, SetValue(path, "log.json", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, toml.Unmarshal(data, &doc))
	assert.Equal(t, []interface{}{"a.db"}, doc["schema"].(map[string]interface{})["sqlite"])
	assert.Equal(t, true, doc["log"].(map[string]interface{})["json"])
}

func TestCreateBackup_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		require.NoError(t, createBackup(path))
	}

	read := func(suffix string) string {
		data, err := os.ReadFile(path + suffix)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "five", read(".back1"))
	assert.Equal(t, "four", read(".back2"))
	assert.Equal(t, "three", read(".back3"))
}

func TestSetUserValue(t *testing.T) {
	home, _ := isolate(t)

	require.NoError(t, SetUserValue("kernel.exec_timeout_seconds", ParseValue("20")))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Kernel.ExecTimeoutSeconds)
	assert.Equal(t, filepath.Join(home, UserDirName, UserConfigName), ConfigFileUsed())
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	assert.Contains(t, keys, "kernel.interpreter")
	assert.Contains(t, keys, "schema.sqlite")
	assert.IsIncreasing(t, keys)
}
