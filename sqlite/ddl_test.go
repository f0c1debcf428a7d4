package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDDL = `
CREATE TABLE Gene (
	ID INTEGER PRIMARY KEY,
	Symbol VARCHAR(32) NOT NULL,
	Name TEXT
);

CREATE TABLE disease (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE gene_to_disease (
	gene_id INTEGER REFERENCES Gene(ID),
	disease_id INTEGER REFERENCES disease(id),
	score REAL
);

CREATE INDEX idx_gene_symbol ON Gene(Symbol);
`

func TestLoadDDLSchema(t *testing.T) {
	t.Parallel()

	t.Run("reads tables and columns", func(t *testing.T) {
		t.Parallel()

		schema, err := sqlite.LoadDDLSchema(context.Background(), testDDL)

		require.NoError(t, err)
		assert.Equal(t, ragchat.Relational, schema.Kind)
		assert.Equal(t, []string{"gene", "disease"}, schema.EntityNames())
		assert.Equal(t, []string{"id", "symbol", "name"}, schema.Entity("gene").Properties)

		rel := schema.Relationship("gene_to_disease")
		require.NotNil(t, rel)
		assert.Equal(t, []string{"gene_id", "disease_id", "score"}, rel.Properties)
	})

	t.Run("rejects invalid DDL", func(t *testing.T) {
		t.Parallel()

		_, err := sqlite.LoadDDLSchema(context.Background(), "CREATE TABLE (")

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("refuses to attach databases", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "attached.db")
		ddl := "ATTACH DATABASE '" + path + "' AS other;\nCREATE TABLE other.gene (id INTEGER);"

		_, err := sqlite.LoadDDLSchema(context.Background(), ddl)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "attached database file was created")
	})

	t.Run("refuses to vacuum into a file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "copy.db")
		ddl := "CREATE TABLE gene (id INTEGER);\nVACUUM INTO '" + path + "';"

		_, err := sqlite.LoadDDLSchema(context.Background(), ddl)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "vacuum target file was created")
	})

	t.Run("rejects DDL without tables", func(t *testing.T) {
		t.Parallel()

		_, err := sqlite.LoadDDLSchema(context.Background(), "-- nothing here")

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})
}

func TestLoadDDLSchemaFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(path, []byte(testDDL), 0o644))

	schema, err := sqlite.LoadDDLSchemaFile(context.Background(), path)

	require.NoError(t, err)
	assert.Len(t, schema.Entities, 2)
}
