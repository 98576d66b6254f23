package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# kernel settings\nPYTHONPATH=/srv/lib\nAPP_MODE=\"dev\"\n"), DefaultFilePermissions))

	k := KernelConfig{EnvFile: path, Env: []string{"APP_MODE=prod"}}
	env, err := k.Environment()
	require.NoError(t, err)
	assert.Equal(t, []string{"APP_MODE=dev", "PYTHONPATH=/srv/lib", "APP_MODE=prod"}, env,
		"file entries sorted by key, explicit entries last")
}

func TestEnvironment_NoFile(t *testing.T) {
	env, err := KernelConfig{Env: []string{"A=1"}}.Environment()
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1"}, env)

	env, err = KernelConfig{}.Environment()
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestEnvironment_MissingFile(t *testing.T) {
	_, err := KernelConfig{EnvFile: filepath.Join(t.TempDir(), "missing.env")}.Environment()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel.env_file")

	cfg := validConfig()
	cfg.Kernel.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	assert.Error(t, cfg.Validate())
}
