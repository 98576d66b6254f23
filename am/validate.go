package am

import (
	"os"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/qconsole/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Interpreter must be a parseable, non-empty command line
	if strings.TrimSpace(c.Kernel.Interpreter) == "" {
		return errors.WithHint(errors.New("kernel.interpreter cannot be empty"),
			`set it to an interpreter command, e.g. interpreter = "python3"`)
	}
	words, err := shellquote.Split(c.Kernel.Interpreter)
	if err != nil {
		return errors.Wrapf(err, "kernel.interpreter %q is not a valid command line", c.Kernel.Interpreter)
	}
	if len(words) == 0 {
		return errors.New("kernel.interpreter cannot be empty")
	}

	if c.Kernel.Script != "" {
		if _, err := os.Stat(c.Kernel.Script); err != nil {
			return errors.Wrapf(err, "kernel.script %s", c.Kernel.Script)
		}
	}

	for _, kv := range c.Kernel.Env {
		if !strings.Contains(kv, "=") || strings.HasPrefix(kv, "=") {
			return errors.Newf("kernel.env entries must be KEY=VALUE, got %q", kv)
		}
	}
	if _, err := c.Kernel.Environment(); err != nil {
		return err
	}

	// Startup timeout: 0 would fail every handshake
	if c.Kernel.StartupTimeoutSeconds <= 0 {
		return errors.Newf("kernel.startup_timeout_seconds must be > 0, got %d", c.Kernel.StartupTimeoutSeconds)
	}

	// Exec timeout: 0 = wait forever, negative = invalid
	if c.Kernel.ExecTimeoutSeconds < 0 {
		return errors.Newf("kernel.exec_timeout_seconds must be >= 0, got %d", c.Kernel.ExecTimeoutSeconds)
	}

	if c.Autocomplete.WindowSize <= 0 {
		return errors.Newf("autocomplete.window_size must be > 0, got %d", c.Autocomplete.WindowSize)
	}

	for i, path := range c.Schema.SQLite {
		if strings.TrimSpace(path) == "" {
			return errors.Newf("schema.sqlite[%d] cannot be empty", i)
		}
	}

	return nil
}
