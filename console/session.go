// Package console glues the kernel, the schema registry and the completion
// engine into the submit/refresh cycle driven by an input loop.
package console

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/harvest"
	"github.com/teranos/qconsole/kernel"
	"github.com/teranos/qconsole/logger"
)

// Metadata is the completion state harvested so far.
type Metadata struct {
	Dynamic       []string
	Relationships harvest.TypeRelationships
	SQL           harvest.SQLMetadata
}

// Apply loads m into e.
func (m Metadata) Apply(e *complete.Engine) {
	e.SetDynamicCompletions(m.Dynamic)
	e.SetTypeRelationships(m.Relationships)
	e.SetSQLMetadata(m.SQL)
}

// Session owns a kernel, a completion engine and the host-side schema
// providers. It is driven by one foreground loop. RefreshSchema,
// SetSchemaSources and Metadata may be called from other goroutines; schema
// changes reach the engine on the next Refresh or Submit.
type Session struct {
	kernel   kernel.Kernel
	engine   *complete.Engine
	registry *harvest.Registry
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	meta      Metadata
	kernelSQL harvest.SQLMetadata
	stale     atomic.Bool

	word Word
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the log sink.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.logger = logger.OrNop(l) }
}

// WithEngine replaces the default engine.
func WithEngine(e *complete.Engine) Option {
	return func(s *Session) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithRegistry replaces the default, empty provider registry.
func WithRegistry(r *harvest.Registry) Option {
	return func(s *Session) {
		if r != nil {
			s.registry = r
		}
	}
}

// New creates a session around k. k is not connected here.
func New(k kernel.Kernel, opts ...Option) *Session {
	s := &Session{
		kernel: k,
		logger: logger.Nop(),
		meta: Metadata{
			Dynamic:       []string{},
			Relationships: harvest.NewTypeRelationships(),
			SQL:           harvest.SQLMetadata{Tables: []string{}, Columns: []string{}, Functions: []string{}},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = complete.New(complete.WithLogger(s.logger.Named("complete")))
	}
	if s.registry == nil {
		s.registry = harvest.NewRegistry(s.logger.Named("schema"))
	}
	s.kernelSQL = s.meta.SQL
	return s
}

func (s *Session) Kernel() kernel.Kernel       { return s.kernel }
func (s *Session) Engine() *complete.Engine    { return s.engine }
func (s *Session) Registry() *harvest.Registry { return s.registry }
func (s *Session) LastWord() Word              { return s.word }

// Metadata returns a copy of the latest harvested completion state.
func (s *Session) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Metadata{
		Dynamic:       append([]string(nil), s.meta.Dynamic...),
		Relationships: s.meta.Relationships,
		SQL:           s.meta.SQL,
	}
}

// Start connects the kernel when needed and runs an empty execution so the
// initial namespace is harvested.
func (s *Session) Start(ctx context.Context) error {
	if !s.kernel.IsConnected() {
		if err := s.kernel.Connect(ctx); err != nil {
			return err
		}
	}
	_, err := s.Submit(ctx, "")
	return err
}

// Reset reconnects the kernel, discarding the interpreter's namespace.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.kernel.Disconnect(); err != nil {
		s.logger.Debugw("Disconnect before reset failed", logger.FieldError, err)
	}
	s.engine.Hide()
	return s.Start(ctx)
}

// Submit executes code and feeds the harvested metadata into the engine.
// Interpreter exceptions come back in the result; only kernel failures are
// errors.
func (s *Session) Submit(ctx context.Context, code string) (*kernel.ExecutionResult, error) {
	ctx = logger.WithSessionID(ctx, s.kernel.Info().ID)
	res, err := s.kernel.Execute(ctx, code)
	if err != nil {
		return nil, err
	}
	s.absorb(ctx, res)
	return res, nil
}

func (s *Session) absorb(ctx context.Context, res *kernel.ExecutionResult) {
	names := harvest.CompletionNames(res.Completions)
	host := s.registry.Harvest(ctx)

	s.mu.Lock()
	s.kernelSQL = res.SQLMetadata
	s.meta = Metadata{
		Dynamic:       names,
		Relationships: res.TypeRelationships,
		SQL:           res.SQLMetadata.Merge(host),
	}
	meta := s.meta
	s.stale.Store(false)
	s.mu.Unlock()

	meta.Apply(s.engine)
	s.logger.Debugw("Metadata refreshed",
		logger.FieldExecution, res.ExecutionCount,
		logger.FieldCount, len(names),
		"types", len(meta.Relationships.TypeMethods),
		"tables", len(meta.SQL.Tables))
}

// RefreshSchema re-reads the host-side providers and merges them with the
// kernel's last SQL metadata.
func (s *Session) RefreshSchema(ctx context.Context) {
	host := s.registry.Harvest(ctx)

	s.mu.Lock()
	s.meta.SQL = s.kernelSQL.Merge(host)
	s.mu.Unlock()
	s.stale.Store(true)
}

func (s *Session) syncSchema() {
	if !s.stale.CompareAndSwap(true, false) {
		return
	}
	s.mu.RLock()
	sql := s.meta.SQL
	s.mu.RUnlock()
	s.engine.SetSQLMetadata(sql)
}

// SetSchemaSources replaces the SQLite providers with one per path. Paths
// that fail to open are skipped and reported together; the rest are still
// registered.
func (s *Session) SetSchemaSources(ctx context.Context, paths []string) error {
	var (
		providers []harvest.SchemaProvider
		errs      error
	)
	for _, path := range paths {
		p, err := harvest.OpenSQLite(path, s.logger.Named("sqlite"))
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "schema source %s", path))
			continue
		}
		providers = append(providers, p)
	}

	s.registry.Replace(providers...)
	s.RefreshSchema(ctx)

	s.logger.Infow("Schema sources updated",
		logger.FieldCount, len(providers),
		"failed", len(multierr.Errors(errs)))
	return errs
}

// Refresh recomputes suggestions for the cursor position in buffer.
func (s *Session) Refresh(buffer string, cursor int) Word {
	s.syncSchema()
	s.word = Complete(s.engine, buffer, cursor)
	return s.word
}

// Accept returns the selected suggestion and the prefix it replaces, then
// hides the dropdown. ok is false when nothing is selected.
func (s *Session) Accept() (suggestion, replaced string, ok bool) {
	suggestion, ok = s.engine.Selected()
	if !ok {
		return "", "", false
	}
	replaced = s.word.Prefix
	s.engine.Hide()
	return suggestion, replaced, true
}

// AcceptInto is Accept followed by ReplaceWord on buffer.
func (s *Session) AcceptInto(buffer string) (string, int, bool) {
	w := s.word
	suggestion, _, ok := s.Accept()
	if !ok {
		return buffer, w.Start + len(w.Prefix), false
	}
	out, cursor := ReplaceWord(buffer, w, suggestion)
	return out, cursor, true
}

// Close disconnects the kernel and closes the schema providers.
func (s *Session) Close() error {
	return multierr.Combine(s.kernel.Disconnect(), s.registry.Close())
}
