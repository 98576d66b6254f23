package harvest

import (
	"context"
	"io"
	"sync"

	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/logger"
	"go.uber.org/zap"
)

// SchemaProvider lists the schema of one data-query connection.
type SchemaProvider interface {
	// Name identifies the provider in logs.
	Name() string
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]string, error)
	ListFunctions(ctx context.Context) ([]string, error)
}

// CollectSQL accumulates schema metadata from every provider in order.
// A failing step is logged at debug level and skipped, so the result may be
// partial. A table reported by several providers is listed once, but its
// columns are collected from each of them. Functions are only listed until
// some provider yields at least one.
func CollectSQL(ctx context.Context, providers []SchemaProvider, log *zap.SugaredLogger) SQLMetadata {
	log = logger.OrNop(log)

	var tables, columns, functions orderedSet
	for _, p := range providers {
		if ctx.Err() != nil {
			log.Debugw("Schema harvest interrupted", logger.FieldError, ctx.Err())
			break
		}
		plog := log.With(logger.FieldProvider, p.Name())

		names, err := p.ListTables(ctx)
		if err != nil {
			plog.Debugw("Listing tables failed", logger.FieldError, err)
		}
		for _, table := range names {
			tables.add(table)
			cols, err := p.ListColumns(ctx, table)
			if err != nil {
				plog.Debugw("Listing columns failed", "table", table, logger.FieldError, err)
				continue
			}
			for _, col := range cols {
				columns.add(table + "." + col)
				columns.add(col)
			}
		}

		if functions.len() == 0 {
			fns, err := p.ListFunctions(ctx)
			if err != nil {
				plog.Debugw("Listing functions failed", logger.FieldError, err)
			}
			functions.addAll(fns)
		}
		plog.Debugw("Schema harvested",
			"tables", tables.len(),
			"columns", columns.len(),
			"functions", functions.len())
	}

	return SQLMetadata{
		Tables:    nonNil(tables.items),
		Columns:   nonNil(columns.items),
		Functions: nonNil(functions.items),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Registry holds the host-side schema providers. It is safe for concurrent
// use; config reloads replace providers from the watcher goroutine.
type Registry struct {
	mu        sync.RWMutex
	providers []SchemaProvider
	logger    *zap.SugaredLogger
}

// NewRegistry creates an empty registry. A nil logger is replaced by a nop.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{logger: logger.OrNop(log)}
}

// Register appends p. Registering a provider whose name is already present
// replaces the old one, which is closed if it implements io.Closer.
func (r *Registry) Register(p SchemaProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.providers {
		if existing.Name() == p.Name() {
			closeProvider(existing, r.logger)
			r.providers[i] = p
			return
		}
	}
	r.providers = append(r.providers, p)
}

// Unregister removes and closes the provider called name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.providers {
		if p.Name() == name {
			closeProvider(p, r.logger)
			r.providers = append(r.providers[:i], r.providers[i+1:]...)
			return true
		}
	}
	return false
}

// Replace closes every registered provider and installs ps in their place.
func (r *Registry) Replace(ps ...SchemaProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.providers {
		closeProvider(p, r.logger)
	}
	r.providers = append([]SchemaProvider(nil), ps...)
}

// Providers returns a snapshot of the registered providers.
func (r *Registry) Providers() []SchemaProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SchemaProvider(nil), r.providers...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Harvest collects schema metadata from a snapshot of the providers.
func (r *Registry) Harvest(ctx context.Context) SQLMetadata {
	return CollectSQL(ctx, r.Providers(), r.logger)
}

// Close closes every provider and empties the registry.
func (r *Registry) Close() error {
	r.Replace()
	return nil
}

func closeProvider(p SchemaProvider, log *zap.SugaredLogger) {
	c, ok := p.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warnw("Failed to close schema provider",
			logger.FieldProvider, p.Name(),
			logger.FieldError, errors.Wrap(err, "close provider"))
	}
}
