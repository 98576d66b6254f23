package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

var (
	mu             sync.Mutex
	globalConfig   *Config
	viperInstance  *viper.Viper
	explicitConfig string
	loadedFiles    []string

	// ConfigSources records which file supplied each key during the last load.
	// Keys missing from the map come from defaults or the environment.
	ConfigSources = map[string]SourceInfo{}
)

// Load reads the qconsole configuration using Viper. The result is cached
// until Reset.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViperLocked()
	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViperLocked()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, on top of
// the defaults only
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", configPath)
	}
	return config, nil
}

// SetConfigFile makes path the highest-precedence config file (the
// --config flag). An empty path restores the normal cascade.
func SetConfigFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	explicitConfig = path
	globalConfig = nil
	viperInstance = nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	loadedFiles = nil
	ConfigSources = map[string]SourceInfo{}
}

// LoadedFiles returns the config files merged by the last load, lowest
// precedence first.
func LoadedFiles() []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), loadedFiles...)
}

// ConfigFileUsed returns the highest-precedence file merged by the last
// load, or "" when only defaults and environment apply.
func ConfigFileUsed() string {
	files := LoadedFiles()
	if len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

// initViperLocked initializes Viper with configuration sources and defaults
func initViperLocked() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)

	SetDefaults(v)

	// Merge configs in precedence order: system -> user -> project -> --config.
	// Environment variables still win over every file.
	mergeConfigFiles(v, candidateFiles())

	viperInstance = v
	return v
}

// UserConfigPath returns ~/.qconsole/config.toml
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserDirName, UserConfigName)
}

// SystemConfigPath returns the system-wide config file path
func SystemConfigPath() string {
	return filepath.Join(SystemConfigDir, UserConfigName)
}

// configFile is one level of the cascade
type configFile struct {
	source ConfigSource
	path   string
}

// candidateFiles lists the cascade, lowest precedence first
func candidateFiles() []configFile {
	paths := []configFile{{SourceSystem, SystemConfigPath()}}
	if user := UserConfigPath(); user != "" {
		paths = append(paths, configFile{SourceUser, user})
	}
	if dir, err := os.Getwd(); err == nil {
		if project := findProjectConfig(dir); project != "" {
			paths = append(paths, configFile{SourceProject, project})
		}
	}
	if explicitConfig != "" {
		paths = append(paths, configFile{SourceFlag, explicitConfig})
	}
	return paths
}

// findProjectConfig searches for qconsole.toml by walking up from dir.
// Returns the path to the first file found, or empty string if none found
func findProjectConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles deep-merges each existing file into v's config layer.
// Unreadable files are logged and skipped.
func mergeConfigFiles(v *viper.Viper, files []configFile) {
	loadedFiles = nil
	ConfigSources = map[string]SourceInfo{}

	for _, file := range files {
		configPath := file.path
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(configPath)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			logger.Warnw("Skipping unreadable config file",
				logger.FieldFile, configPath,
				logger.FieldError, err)
			continue
		}

		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			logger.Warnw("Skipping config file that failed to merge",
				logger.FieldFile, configPath,
				logger.FieldError, err)
			continue
		}

		for _, key := range tempViper.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: file.source, Path: configPath}
		}
		loadedFiles = append(loadedFiles, configPath)
		logger.Debugw("Merged config file", logger.FieldFile, configPath, "source", file.source)
	}
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}

// IsSet reports whether key has been set by any source
func IsSet(key string) bool {
	return GetViper().IsSet(key)
}
