package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertBuilder_ReplaceOnConflict(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("edges")
	ib.Cols("partition_key", "row_key", "properties")
	ib.Values("p", "r", "{}")
	ib.ReplaceOnConflict([]string{"partition_key", "row_key"}, "properties")

	query, args := ib.Build()
	assert.Equal(t,
		"INSERT INTO edges (partition_key, row_key, properties) VALUES ($1, $2, $3) "+
			"ON CONFLICT (partition_key, row_key) DO UPDATE SET properties = EXCLUDED.properties",
		query)
	assert.Equal(t, []any{"p", "r", "{}"}, args)
}

func TestSelectBuilder_UsesPostgresPlaceholders(t *testing.T) {
	sb := NewSelectBuilder()
	sb.Select("id").From("documents").Where(sb.Equal("entity_type", "Widget"))

	query, args := sb.Build()
	assert.Equal(t, "SELECT id FROM documents WHERE entity_type = $1", query)
	assert.Equal(t, []any{"Widget"}, args)
}
