package am

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
)

// DefaultDebouncePeriod coalesces the bursts of events editors produce on save
const DefaultDebouncePeriod = 500 * time.Millisecond

// ReloadCallback receives each validated configuration after a change on disk.
type ReloadCallback func(*Config) error

// ConfigWatcher re-runs the configuration cascade when one config file
// changes and hands the result to registered callbacks. Running sessions use
// it to pick up new schema sources without restarting the interpreter.
type ConfigWatcher struct {
	file     string
	fsw      *fsnotify.Watcher
	load     func() (*Config, error)
	debounce time.Duration

	mu        sync.Mutex
	listeners []ReloadCallback
	pending   *time.Timer

	ownWrite atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

var (
	globalWatcher   *ConfigWatcher
	globalWatcherMu sync.Mutex
)

// NewConfigWatcher creates a watcher for file. Its directory is watched so
// editors that save by rename are still seen.
func NewConfigWatcher(file string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config directory of %s", file)
	}

	return &ConfigWatcher{
		file:     abs,
		fsw:      fsw,
		load:     reloadCascade,
		debounce: DefaultDebouncePeriod,
		done:     make(chan struct{}),
	}, nil
}

func reloadCascade() (*Config, error) {
	Reset()
	return Load()
}

// OnReload registers a callback. Callbacks run on the watcher's timer
// goroutine.
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.listeners = append(cw.listeners, callback)
}

// MarkOwnWrite suppresses the reload for the next change, used when qconsole
// itself persists a setting.
func (cw *ConfigWatcher) MarkOwnWrite() {
	cw.ownWrite.Store(true)
}

// Start begins watching in a background goroutine.
func (cw *ConfigWatcher) Start() {
	go cw.loop()
}

func (cw *ConfigWatcher) loop() {
	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if !cw.touchesConfig(event) {
				continue
			}
			if cw.ownWrite.CompareAndSwap(true, false) {
				logger.Debugw("Config watcher ignoring own write", logger.FieldFile, event.Name)
				continue
			}
			logger.Infow("Config file changed",
				logger.FieldFile, event.Name,
				"op", event.Op.String())
			cw.schedule()

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

func (cw *ConfigWatcher) touchesConfig(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if isBackupFile(event.Name) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		name = event.Name
	}
	return name == cw.file
}

func (cw *ConfigWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.pending != nil {
		cw.pending.Stop()
	}
	cw.pending = time.AfterFunc(cw.debounce, func() {
		if err := cw.reload(); err != nil {
			logger.Errorw("Config reload failed", logger.FieldError, err)
		}
	})
}

// reload loads and validates the cascade, then notifies every listener.
// A listener error is logged and does not stop the others.
func (cw *ConfigWatcher) reload() error {
	cfg, err := cw.load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "reloaded config is invalid, keeping the previous one")
	}
	logger.Infow("Config reloaded", logger.FieldFile, cw.file)

	cw.mu.Lock()
	listeners := append([]ReloadCallback(nil), cw.listeners...)
	cw.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(cfg); err != nil {
			logger.Warnw("Config reload callback failed", logger.FieldError, err)
		}
	}
	return nil
}

// Stop ends watching. Safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.mu.Lock()
		if cw.pending != nil {
			cw.pending.Stop()
		}
		cw.mu.Unlock()
		err = cw.fsw.Close()
	})
	return err
}

// isBackupFile matches the .back1 to .back3 copies written by SetValue.
func isBackupFile(path string) bool {
	ext := filepath.Ext(path)
	return strings.HasPrefix(ext, ".back") && len(ext) == len(".back1")
}

// SetGlobalWatcher publishes the watcher so persisted writes can mark
// themselves.
func SetGlobalWatcher(watcher *ConfigWatcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = watcher
}

// GetGlobalWatcher returns the published watcher, or nil.
func GetGlobalWatcher() *ConfigWatcher {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	return globalWatcher
}
