package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Both backends must satisfy the Store interface.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func TestRunFilter_ZeroValueIsUnfiltered(t *testing.T) {
	f := RunFilter{}
	assert.Empty(t, f.Status)
	assert.Empty(t, f.DocID)
	assert.Empty(t, f.Outcome)
	assert.True(t, f.CreatedAfter.IsZero())
}
