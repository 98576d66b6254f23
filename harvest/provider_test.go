package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/qconsole/errors"
)

type fakeProvider struct {
	name       string
	tables     []string
	tablesErr  error
	columns    map[string][]string
	columnsErr map[string]error
	functions  []string
	funcsErr   error
	funcCalls  int
	closed     bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) ListTables(context.Context) ([]string, error) {
	return p.tables, p.tablesErr
}

func (p *fakeProvider) ListColumns(_ context.Context, table string) ([]string, error) {
	if err := p.columnsErr[table]; err != nil {
		return nil, err
	}
	return p.columns[table], nil
}

func (p *fakeProvider) ListFunctions(context.Context) ([]string, error) {
	p.funcCalls++
	return p.functions, p.funcsErr
}

func (p *fakeProvider) Close() error {
	p.closed = true
	return nil
}

func TestCollectSQL(t *testing.T) {
	p := &fakeProvider{
		name:   "main",
		tables: []string{"orders", "users", "orders"},
		columns: map[string][]string{
			"orders": {"id", "total"},
			"users":  {"id", "name"},
		},
		functions: []string{"sum", "count", "sum"},
	}

	md := CollectSQL(context.Background(), []SchemaProvider{p}, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, []string{"orders", "users"}, md.Tables)
	assert.Equal(t, []string{"orders.id", "id", "orders.total", "total", "users.id", "users.name", "name"}, md.Columns)
	assert.Equal(t, []string{"sum", "count"}, md.Functions)
}

func TestCollectSQLSharedTableAcrossProviders(t *testing.T) {
	first := &fakeProvider{
		name:    "primary",
		tables:  []string{"users"},
		columns: map[string][]string{"users": {"id"}},
	}
	second := &fakeProvider{
		name:    "replica",
		tables:  []string{"users", "audit"},
		columns: map[string][]string{"users": {"email"}, "audit": {"at"}},
	}

	md := CollectSQL(context.Background(), []SchemaProvider{first, second}, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, []string{"users", "audit"}, md.Tables)
	assert.Equal(t, []string{"users.id", "id", "users.email", "email", "audit.at", "at"}, md.Columns)
}

func TestCollectSQLSwallowsFailures(t *testing.T) {
	broken := &fakeProvider{
		name:       "broken",
		tables:     []string{"a", "b"},
		columns:    map[string][]string{"b": {"x"}},
		columnsErr: map[string]error{"a": errors.New("no such table")},
		funcsErr:   errors.New("catalog unavailable"),
	}
	second := &fakeProvider{name: "second", tablesErr: errors.New("offline"), functions: []string{"avg"}}
	third := &fakeProvider{name: "third", functions: []string{"max"}}

	md := CollectSQL(context.Background(), []SchemaProvider{broken, second, third}, nil)

	assert.Equal(t, []string{"a", "b"}, md.Tables)
	assert.Equal(t, []string{"b.x", "x"}, md.Columns)
	assert.Equal(t, []string{"avg"}, md.Functions)
	assert.Equal(t, 0, third.funcCalls, "functions are listed only while none are recorded")
}

func TestCollectSQLNoProviders(t *testing.T) {
	md := CollectSQL(context.Background(), nil, nil)

	assert.NotNil(t, md.Tables)
	assert.NotNil(t, md.Columns)
	assert.NotNil(t, md.Functions)
	assert.True(t, md.IsEmpty())
}

func TestCollectSQLStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	md := CollectSQL(ctx, []SchemaProvider{&fakeProvider{name: "p", tables: []string{"t"}}}, nil)
	assert.True(t, md.IsEmpty())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t).Sugar())
	first := &fakeProvider{name: "one", tables: []string{"t1"}}
	dup := &fakeProvider{name: "one", tables: []string{"t2"}}
	other := &fakeProvider{name: "two", tables: []string{"t3"}}

	reg.Register(first)
	reg.Register(other)
	reg.Register(dup)

	require.Equal(t, 2, reg.Len())
	assert.True(t, first.closed, "replaced provider is closed")
	assert.Equal(t, []string{"t2", "t3"}, reg.Harvest(context.Background()).Tables)

	assert.True(t, reg.Unregister("two"))
	assert.False(t, reg.Unregister("two"))
	assert.True(t, other.closed)

	fresh := &fakeProvider{name: "fresh"}
	reg.Replace(fresh)
	assert.True(t, dup.closed)
	assert.Equal(t, []SchemaProvider{fresh}, reg.Providers())

	require.NoError(t, reg.Close())
	assert.True(t, fresh.closed)
	assert.Zero(t, reg.Len())
}
