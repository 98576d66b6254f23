package commands

import (
	"context"

	"github.com/teranos/qconsole/am"
	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/kernel"
	"github.com/teranos/qconsole/logger"
)

// loadConfig loads and validates the configuration cascade.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newSession builds a disconnected session from cfg. Schema sources that
// fail to open are logged and skipped.
func newSession(ctx context.Context, cfg *am.Config) *console.Session {
	k := kernel.New(kernel.ConfigFrom(cfg.Kernel),
		kernel.WithLogger(logger.ComponentLogger("kernel")),
		kernel.WithTrace(logger.TraceEnabled()))
	engine := complete.New(
		complete.WithWindowSize(cfg.Autocomplete.WindowSize),
		complete.WithLogger(logger.ComponentLogger("complete")))
	s := console.New(k,
		console.WithEngine(engine),
		console.WithLogger(logger.ComponentLogger("console")))

	if err := s.SetSchemaSources(ctx, cfg.Schema.SQLite); err != nil {
		logger.Warnw("Some schema sources were skipped", logger.FieldError, err)
	}
	return s
}

// startSession is newSession followed by Start.
func startSession(ctx context.Context, cfg *am.Config) (*console.Session, error) {
	s := newSession(ctx, cfg)
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "failed to start kernel")
	}
	return s, nil
}

// watchSchema reloads the session's schema sources whenever the active
// config file changes. It returns a stop function; with no config file in
// use there is nothing to watch and stop is a no-op.
func watchSchema(ctx context.Context, s *console.Session) func() {
	path := am.ConfigFileUsed()
	if path == "" {
		return func() {}
	}

	w, err := am.NewConfigWatcher(path)
	if err != nil {
		logger.Warnw("Config watcher unavailable", logger.FieldFile, path, logger.FieldError, err)
		return func() {}
	}
	w.OnReload(func(cfg *am.Config) error {
		return s.SetSchemaSources(ctx, cfg.Schema.SQLite)
	})
	am.SetGlobalWatcher(w)
	w.Start()

	return func() {
		am.SetGlobalWatcher(nil)
		if err := w.Stop(); err != nil {
			logger.Debugw("Config watcher stop failed", logger.FieldError, err)
		}
	}
}
