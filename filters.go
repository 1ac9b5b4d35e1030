package tablekit

import (
	"github.com/uptrace/bun"
)

// RowCondition is a single column filter applied to a listing query.
type RowCondition struct {
	Column   string
	Operator string // "=", "!=", ">", ">=", "<", "<=", "like", "ilike", "in"
	Value    any
}

// RowsOptions provides options for listing queries.
type RowsOptions struct {
	// Conditions are ANDed together.
	Conditions []RowCondition

	// Search matches a case-insensitive substring against every visible
	// string-like column.
	Search string

	// OrderBy is the column to sort on; empty means primary key order.
	OrderBy string
	Desc    bool

	// Pagination
	Limit  int
	Offset int

	// IncludeTotal adds a count of all matching rows (before pagination)
	// to the result.
	IncludeTotal bool

	// Modifiers selects registered query modifiers by name; the value is
	// handed to the modifier function.
	Modifiers map[string]any
}

// NewRowsOptions creates a new RowsOptions with default values.
func NewRowsOptions() RowsOptions {
	return RowsOptions{
		Limit: 100,
	}
}

// WithCondition appends a column condition.
func (o RowsOptions) WithCondition(column, operator string, value any) RowsOptions {
	o.Conditions = append(o.Conditions, RowCondition{Column: column, Operator: operator, Value: value})
	return o
}

// WithEquals appends an equality condition.
func (o RowsOptions) WithEquals(column string, value any) RowsOptions {
	return o.WithCondition(column, "=", value)
}

// WithSearch sets the free-text search term.
func (o RowsOptions) WithSearch(term string) RowsOptions {
	o.Search = term
	return o
}

// WithOrder sets the sort column and direction.
func (o RowsOptions) WithOrder(column string, desc bool) RowsOptions {
	o.OrderBy = column
	o.Desc = desc
	return o
}

// WithLimit sets the limit for results.
func (o RowsOptions) WithLimit(limit int) RowsOptions {
	o.Limit = limit
	return o
}

// WithOffset sets the offset for pagination.
func (o RowsOptions) WithOffset(offset int) RowsOptions {
	o.Offset = offset
	return o
}

// WithPagination sets both limit and offset.
func (o RowsOptions) WithPagination(limit, offset int) RowsOptions {
	o.Limit = limit
	o.Offset = offset
	return o
}

// WithModifier selects a registered query modifier for this call.
func (o RowsOptions) WithModifier(name string, value any) RowsOptions {
	if o.Modifiers == nil {
		o.Modifiers = make(map[string]any)
	}
	o.Modifiers[name] = value
	return o
}

// WithTotal requests the total matching-row count alongside the page.
func (o RowsOptions) WithTotal() RowsOptions {
	o.IncludeTotal = true
	return o
}

// SelfFilter is an AccessFilterFunc scoping rows to the ones whose column
// holds the caller's principal id, the usual shape of a self-service
// resource.
func SelfFilter(column string) AccessFilterFunc {
	return func(p *Principal, q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(column), p.ID)
	}
}

// allowedOperators guards against raw SQL reaching the query builder.
var allowedOperators = map[string]string{
	"=":     "=",
	"!=":    "!=",
	">":     ">",
	">=":    ">=",
	"<":     "<",
	"<=":    "<=",
	"like":  "LIKE",
	"ilike": "ILIKE",
	"in":    "IN",
}
