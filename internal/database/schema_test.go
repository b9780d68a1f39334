package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Released ports are reused by later streams while terminated rows keep
// their old port value, so the streams table must not carry a full
// unique constraint on port; uniqueness only holds across live rows.
func TestSchemaAllowsPortReuseAcrossTerminatedStreams(t *testing.T) {
	var streamsDDL string
	partialIndex := false

	for _, stmt := range schemaStatements {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS dedicated_streams") {
			streamsDDL = stmt
		}
		if strings.Contains(stmt, "idx_dedicated_streams_port_live") {
			partialIndex = true
			assert.Contains(t, stmt, "UNIQUE INDEX")
			assert.Contains(t, stmt, "WHERE status <> 'terminated'")
		}
	}

	require.NotEmpty(t, streamsDDL)
	require.True(t, partialIndex, "live-stream port uniqueness index missing")

	for _, line := range strings.Split(streamsDDL, "\n") {
		if strings.Contains(line, "port INTEGER") {
			assert.NotContains(t, line, "UNIQUE",
				"port column must not be globally unique, terminated rows retain their port")
		}
	}
}

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	for _, stmt := range schemaStatements {
		assert.True(t,
			strings.Contains(stmt, "IF NOT EXISTS"),
			"statement must be safe to re-run: %s", strings.Fields(stmt)[0])
	}
}
