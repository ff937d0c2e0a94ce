package pgstore

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Query text is written with ? placeholders and rendered for PostgreSQL
// on demand. Rendered row-limited queries are cached, keyed by core text
// and limit, since the same handful of queries is built over and over on
// the hot paths.

const sqlCacheSize = 256

type sqlCache struct {
	cache *lru.Cache
}

func newSQLCache() (*sqlCache, error) {
	c, err := lru.New(sqlCacheSize)
	if err != nil {
		return nil, err
	}
	return &sqlCache{cache: c}, nil
}

// fetchFirst renders coreSQL as a PostgreSQL query returning at most
// limit rows. limit <= 0 means no row cap.
func (s *sqlCache) fetchFirst(coreSQL string, limit int) string {
	key := fmt.Sprintf("%d:%s", limit, coreSQL)
	if v, ok := s.cache.Get(key); ok {
		return v.(string)
	}
	q := renumberPlaceholders(coreSQL)
	if limit > 0 {
		q = fmt.Sprintf("%s LIMIT %d", q, limit)
	}
	s.cache.Add(key, q)
	return q
}

// renumberPlaceholders rewrites ? placeholders to $1..$n. Query text
// here never contains string literals, so no quote handling is needed.
func renumberPlaceholders(coreSQL string) string {
	if !strings.ContainsRune(coreSQL, '?') {
		return coreSQL
	}
	var b strings.Builder
	b.Grow(len(coreSQL) + 8)
	n := 0
	for _, r := range coreSQL {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// predicates collects WHERE conditions and their arguments for
// dynamically shaped queries.
type predicates struct {
	exprs []string
	args  []interface{}
}

// add appends a condition. expr uses ? placeholders, one per argument.
func (p *predicates) add(expr string, args ...interface{}) {
	p.exprs = append(p.exprs, expr)
	p.args = append(p.args, args...)
}

func (p *predicates) clause() string {
	if len(p.exprs) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.exprs, " AND ")
}
