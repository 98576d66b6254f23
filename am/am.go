package am

import "os"

// Config represents the qconsole configuration
type Config struct {
	Kernel       KernelConfig       `mapstructure:"kernel"`
	Autocomplete AutocompleteConfig `mapstructure:"autocomplete"`
	Schema       SchemaConfig       `mapstructure:"schema"`
	Log          LogConfig          `mapstructure:"log"`
}

// KernelConfig configures the interpreter subprocess
type KernelConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`

	// Interpreter is a shell-quoted command line, e.g. "python3" or "uv run python".
	Interpreter string `mapstructure:"interpreter"`

	// Script replaces the embedded companion script when set (path to a file).
	Script string `mapstructure:"script"`

	// Env holds extra KEY=VALUE pairs for the child environment.
	Env []string `mapstructure:"env"`

	// EnvFile is a dotenv file loaded before Env; Env wins on conflicts.
	EnvFile string `mapstructure:"env_file"`

	StartupTimeoutSeconds int `mapstructure:"startup_timeout_seconds"` // handshake deadline
	ExecTimeoutSeconds    int `mapstructure:"exec_timeout_seconds"`    // 0 = wait forever
}

// AutocompleteConfig configures the suggestion dropdown
type AutocompleteConfig struct {
	WindowSize int `mapstructure:"window_size"` // visible rows (default: 10)
}

// SchemaConfig lists host-side schema sources offered to SQL completion
type SchemaConfig struct {
	SQLite []string `mapstructure:"sqlite"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// File and directory names used by the configuration cascade
const (
	ConfigFileName  = "qconsole.toml" // project config, found by walking up from the working directory
	UserConfigName  = "config.toml"   // inside UserDirName
	UserDirName     = ".qconsole"
	EnvPrefix       = "QCONSOLE"
	SystemConfigDir = "/etc/qconsole"
)

// File permission constants
const (
	DefaultDirPermissions  os.FileMode = 0755
	DefaultFilePermissions os.FileMode = 0644
)
