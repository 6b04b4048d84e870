package db

import (
	"strings"
)

// Query builds a SELECT from a base statement and a growing list of AND-ed
// conditions. Placeholders are positional, so arguments are kept in the order
// the clauses were added.
type Query struct {
	base    string
	where   []string
	args    []interface{}
	orderBy string
	limit   *int
	offset  *int
}

// NewQuery starts a builder from base, which must not contain a WHERE clause
func NewQuery(base string) *Query {
	return &Query{base: base}
}

// Where adds a condition
func (q *Query) Where(condition string, args ...interface{}) *Query {
	q.where = append(q.where, condition)
	q.args = append(q.args, args...)
	return q
}

// OrderBy sets the ORDER BY clause
func (q *Query) OrderBy(clause string) *Query {
	q.orderBy = clause
	return q
}

// Limit sets LIMIT
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset sets OFFSET. It only renders together with Limit.
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// Build renders the statement and its arguments
func (q *Query) Build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(q.base)
	args := append([]interface{}{}, q.args...)

	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	if q.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.orderBy)
	}
	if q.limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *q.limit)
		if q.offset != nil {
			sb.WriteString(" OFFSET ?")
			args = append(args, *q.offset)
		}
	}
	return sb.String(), args
}

// In renders "?, ?, ?" for n values and returns ids as arguments
func In[T any](ids []T) (string, []interface{}) {
	if len(ids) == 0 {
		return "", nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
