package am

import (
	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and the CLI help text
const (
	DefaultKernelName            = "python3"
	DefaultKernelDisplayName     = "Python 3"
	DefaultInterpreter           = "python3"
	DefaultStartupTimeoutSeconds = 30
	DefaultWindowSize            = 10
)

// SetDefaults configures default values for all configuration options.
// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	// Kernel defaults
	v.SetDefault("kernel.name", DefaultKernelName)
	v.SetDefault("kernel.display_name", DefaultKernelDisplayName)
	v.SetDefault("kernel.interpreter", DefaultInterpreter)
	v.SetDefault("kernel.script", "")
	v.SetDefault("kernel.env", []string{})
	v.SetDefault("kernel.env_file", "")
	v.SetDefault("kernel.startup_timeout_seconds", DefaultStartupTimeoutSeconds)
	v.SetDefault("kernel.exec_timeout_seconds", 0) // wait forever

	// Autocomplete defaults
	v.SetDefault("autocomplete.window_size", DefaultWindowSize)

	// Schema sources
	v.SetDefault("schema.sqlite", []string{})

	// Logging
	v.SetDefault("log.json", false)
}

// BindEnvVars binds keys whose environment names don't follow the
// QCONSOLE_SECTION_KEY pattern.
func BindEnvVars(v *viper.Viper) {
	// The interpreter is commonly set per shell
	_ = v.BindEnv("kernel.interpreter", "QCONSOLE_KERNEL_INTERPRETER", "QCONSOLE_PYTHON")
}
