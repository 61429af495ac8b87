package store

import "strings"

// predicates is an ordered list of (condition, bound args) pairs that
// are appended conditionally and rendered once. Keeping conditions and
// their parameters together means placeholder order can never drift
// from argument order.
type predicates struct {
	conds []string
	args  []any
}

func (p *predicates) add(cond string, args ...any) {
	p.conds = append(p.conds, cond)
	p.args = append(p.args, args...)
}

// where renders the accumulated conditions as a WHERE clause. The
// always-true base predicate keeps the rendering uniform when no
// filter is present.
func (p *predicates) where() string {
	clause := " WHERE 1=1"
	if len(p.conds) > 0 {
		clause += " AND " + strings.Join(p.conds, " AND ")
	}
	return clause
}
