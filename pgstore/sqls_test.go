package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenumberPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT 1", renumberPlaceholders("SELECT 1"))
	assert.Equal(t,
		"SELECT id FROM cert WHERE ca_id = $1 AND sn = $2",
		renumberPlaceholders("SELECT id FROM cert WHERE ca_id = ? AND sn = ?"))
}

func TestFetchFirst(t *testing.T) {
	sqls, err := newSQLCache()
	require.NoError(t, err)

	q := sqls.fetchFirst("SELECT sn FROM cert WHERE ca_id = ?", 10)
	assert.Equal(t, "SELECT sn FROM cert WHERE ca_id = $1 LIMIT 10", q)

	// Same core text, different limit: distinct cache entries.
	q20 := sqls.fetchFirst("SELECT sn FROM cert WHERE ca_id = ?", 20)
	assert.Equal(t, "SELECT sn FROM cert WHERE ca_id = $1 LIMIT 20", q20)

	// Cached render is stable.
	assert.Equal(t, q, sqls.fetchFirst("SELECT sn FROM cert WHERE ca_id = ?", 10))
}

func TestFetchFirstNoLimit(t *testing.T) {
	sqls, err := newSQLCache()
	require.NoError(t, err)
	assert.Equal(t, "SELECT sn FROM cert WHERE ca_id = $1",
		sqls.fetchFirst("SELECT sn FROM cert WHERE ca_id = ?", 0))
}

func TestPredicates(t *testing.T) {
	var p predicates
	assert.Equal(t, "", p.clause())

	p.add(`ca_id = ?`, 1)
	p.add(`rev = 1`)
	p.add(`id > ?`, int64(100))
	assert.Equal(t, " WHERE ca_id = ? AND rev = 1 AND id > ?", p.clause())
	assert.Equal(t, []interface{}{1, int64(100)}, p.args)
}
