package query

import (
	"fmt"
	"strings"
	"time"
)

// Dialect adapts predicate rendering to one SQL engine.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th argument (1-based).
	// v is the value that will be bound, so dialects can add casts.
	Placeholder(n int, v any) string
	// ContainsFold returns a case-insensitive LIKE expression comparing column
	// against the (already escaped) pattern bound at placeholder.
	ContainsFold(column, placeholder string) string
}

// Where renders the predicate as a SQL boolean expression plus its bind
// arguments. An empty predicate renders as "" with no arguments; callers
// omit the WHERE clause in that case.
//
// Substring literals are escaped with EscapeLike and wrapped in %...%, so a
// dialect's ContainsFold must declare ESCAPE '\'. Times are bound in UTC so
// stores that keep timestamps as text compare them consistently.
func (p Predicate) Where(d Dialect) (string, []any) {
	if p.IsEmpty() {
		return "", nil
	}

	clauses := make([]string, 0, len(p.Conditions))
	args := make([]any, 0, len(p.Conditions))

	for _, c := range p.Conditions {
		v := c.Value
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		if c.Op == OpContainsFold {
			v = "%" + EscapeLike(fmt.Sprint(v)) + "%"
		}
		args = append(args, v)
		ph := d.Placeholder(len(args), v)

		switch c.Op {
		case OpContainsFold:
			clauses = append(clauses, d.ContainsFold(c.Field.Column(), ph))
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s %s", c.Field.Column(), c.Op, ph))
		}
	}

	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE metacharacters in s so it matches literally
// under ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
