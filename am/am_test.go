package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/qconsole/errors"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance without user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Kernel.Name)
	assert.Equal(t, "Python 3", cfg.Kernel.DisplayName)
	assert.Equal(t, "python3", cfg.Kernel.Interpreter)
	assert.Empty(t, cfg.Kernel.Script)
	assert.Equal(t, 30, cfg.Kernel.StartupTimeoutSeconds)
	assert.Zero(t, cfg.Kernel.ExecTimeoutSeconds)
	assert.Equal(t, 10, cfg.Autocomplete.WindowSize)
	assert.Empty(t, cfg.Schema.SQLite)
	assert.False(t, cfg.Log.JSON)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qconsole.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[kernel]
interpreter = "uv run python"
env = ["PYTHONHASHSEED=0"]
exec_timeout_seconds = 60

[schema]
sqlite = ["warehouse.db"]
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "uv run python", cfg.Kernel.Interpreter)
	assert.Equal(t, []string{"PYTHONHASHSEED=0"}, cfg.Kernel.Env)
	assert.Equal(t, 60, cfg.Kernel.ExecTimeoutSeconds)
	assert.Equal(t, "python3", cfg.Kernel.Name, "unset keys keep their defaults")
	assert.Equal(t, []string{"warehouse.db"}, cfg.Schema.SQLite)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.toml")
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[kernel\ninterpreter = "), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func validConfig() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		panic(err)
	}
	return *cfg
}

func TestValidate(t *testing.T) {
	script := filepath.Join(t.TempDir(), "companion.py")
	require.NoError(t, os.WriteFile(script, []byte("print('ready')\n"), 0644))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "quoted interpreter", mutate: func(c *Config) { c.Kernel.Interpreter = `"/opt/my python/bin/python3" -X dev` }},
		{name: "empty interpreter", mutate: func(c *Config) { c.Kernel.Interpreter = "  " }, wantErr: "kernel.interpreter cannot be empty"},
		{name: "unterminated quote", mutate: func(c *Config) { c.Kernel.Interpreter = `python3 "-c` }, wantErr: "not a valid command line"},
		{name: "existing script", mutate: func(c *Config) { c.Kernel.Script = script }},
		{name: "missing script", mutate: func(c *Config) { c.Kernel.Script = script + ".missing" }, wantErr: "kernel.script"},
		{name: "env pair", mutate: func(c *Config) { c.Kernel.Env = []string{"A=1", "B="} }},
		{name: "env without equals", mutate: func(c *Config) { c.Kernel.Env = []string{"A"} }, wantErr: "KEY=VALUE"},
		{name: "env without key", mutate: func(c *Config) { c.Kernel.Env = []string{"=1"} }, wantErr: "KEY=VALUE"},
		{name: "zero startup timeout", mutate: func(c *Config) { c.Kernel.StartupTimeoutSeconds = 0 }, wantErr: "startup_timeout_seconds"},
		{name: "zero exec timeout waits forever", mutate: func(c *Config) { c.Kernel.ExecTimeoutSeconds = 0 }},
		{name: "negative exec timeout", mutate: func(c *Config) { c.Kernel.ExecTimeoutSeconds = -1 }, wantErr: "exec_timeout_seconds"},
		{name: "zero window", mutate: func(c *Config) { c.Autocomplete.WindowSize = 0 }, wantErr: "window_size"},
		{name: "empty sqlite path", mutate: func(c *Config) { c.Schema.SQLite = []string{"a.db", ""} }, wantErr: "schema.sqlite[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_EmptyInterpreterHint(t *testing.T) {
	cfg := validConfig()
	cfg.Kernel.Interpreter = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}
