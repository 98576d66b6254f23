package sqlctx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// at returns buffer with the cursor marker removed and the marker's offset.
func at(marked string) (string, int) {
	i := strings.Index(marked, "|")
	return marked[:i] + marked[i+1:], i
}

func TestIsInSQLContext(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   bool
	}{
		{"duckdb sql call", `db.sql("SELECT * FROM |")`, true},
		{"spark sql call", `spark.sql("SELECT |")`, true},
		{"print is not sql", `print("hello|")`, false},
		{"single quotes", `con.execute('SELECT id FROM |')`, true},
		{"pandas read_sql", `pd.read_sql("SELECT |", engine)`, true},
		{"read_sql_query", `pd.read_sql_query("SEL|`, true},
		{"read_sql_table", `pd.read_sql_table("ord|`, true},
		{"query call", `client.query("SELECT |`, true},
		{"escaped quote keeps context", `db.sql("SELECT \"name\" FROM |")`, true},
		{"f-string", `db.sql(f"SELECT * FROM {table} WHERE |")`, true},
		{"upper F-string", `db.sql(F"SELECT |")`, true},
		{"whitespace before quote", "db.sql(  \"SELECT |\")", true},
		{"newline before quote", "db.sql(\n    \"SELECT |\")", true},
		{"triple quoted second line", "db.sql(\"\"\"\nSELECT *\nFROM |\n\"\"\")", true},
		{"triple single quoted", "con.sql('''SELECT |", true},
		{"outside string", `db.sql("SELECT 1")|`, false},
		{"code only", `x = 1 + |`, false},
		{"second argument string", `db.sql("SELECT 1", "|")`, false},
		{"sql without dot", `sql("SELECT |")`, false},
		{"execute without call paren", `db.execute_many("SELECT |")`, false},
		{"cursor at start", `|db.sql("x")`, false},
		{"empty buffer", `|`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer, cursor := at(tt.buffer)
			assert.Equal(t, tt.want, IsInSQLContext(buffer, cursor))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		buffer string
		want   Context
	}{
		{`x = foo|`, ContextCode},
		{`print("hel|")`, ContextString},
		{`db.sql("SELECT |")`, ContextSQL},
		{`s = 'it\'s |'`, ContextString},
		{`s = "a" + "b"|`, ContextCode},
		{`s = "it's |"`, ContextString},
	}

	for _, tt := range tests {
		t.Run(tt.buffer, func(t *testing.T) {
			buffer, cursor := at(tt.buffer)
			assert.Equal(t, tt.want, Classify(buffer, cursor))
		})
	}
}

func TestCursorClamped(t *testing.T) {
	buffer := `db.sql("SELECT `
	assert.True(t, IsInSQLContext(buffer, len(buffer)+50))
	assert.False(t, IsInSQLContext(buffer, -3))
}

func TestWindowLimit(t *testing.T) {
	gap := WindowSize - len(".sql(")
	far := "db.sql(" + strings.Repeat(" ", gap) + `"SELECT `
	assert.True(t, IsInSQLContext(far, len(far)), "pattern fully inside the window")

	tooFar := "db.sql(" + strings.Repeat(" ", gap+1) + `"SELECT `
	assert.False(t, IsInSQLContext(tooFar, len(tooFar)))
}

func TestIsInString(t *testing.T) {
	buffer, cursor := at(`print("a\\|")`)
	assert.True(t, IsInString(buffer, cursor))
	assert.False(t, IsInString(`x`, 1))
}

func TestContextString(t *testing.T) {
	assert.Equal(t, "code", ContextCode.String())
	assert.Equal(t, "string", ContextString.String())
	assert.Equal(t, "sql", ContextSQL.String())
}
