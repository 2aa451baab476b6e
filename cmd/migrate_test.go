package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE DATABASE x;\n\n CREATE TABLE x.y (a Int8)\nENGINE = Memory;\n")
	assert.Equal(t, []string{"CREATE DATABASE x", "CREATE TABLE x.y (a Int8)\nENGINE = Memory"}, got)
	assert.Empty(t, splitStatements(" ;\n"))
}

func TestShippedMigrationParses(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("..", "migrations", "clickhouse", "001_predictions.sql"))
	require.NoError(t, err)

	stmts := splitStatements(string(body))
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "ReplacingMergeTree")
}
