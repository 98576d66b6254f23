package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLMetadataMerge(t *testing.T) {
	a := SQLMetadata{
		Tables:    []string{"orders", "users"},
		Columns:   []string{"orders.id", "id"},
		Functions: []string{"sum"},
	}
	b := SQLMetadata{
		Tables:    []string{"users", "Users", "items"},
		Columns:   []string{"users.id", "id"},
		Functions: nil,
	}

	merged := a.Merge(b)

	assert.Equal(t, []string{"orders", "users", "Users", "items"}, merged.Tables)
	assert.Equal(t, []string{"orders.id", "id", "users.id"}, merged.Columns)
	assert.Equal(t, []string{"sum"}, merged.Functions)
	assert.Equal(t, []string{"orders", "users"}, a.Tables, "inputs are not modified")
}

func TestSQLMetadataIsEmpty(t *testing.T) {
	assert.True(t, SQLMetadata{}.IsEmpty())
	assert.False(t, SQLMetadata{Functions: []string{"count"}}.IsEmpty())
}

func TestIsPrivate(t *testing.T) {
	for name, want := range map[string]bool{
		"":                  true,
		"_":                 true,
		"__name__":          true,
		"QCONSOLE_EXEC_END": true,
		"qconsole":          false,
		"df":                false,
	} {
		assert.Equal(t, want, IsPrivate(name), name)
	}
}
