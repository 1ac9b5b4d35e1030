package tablekit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// redacted replaces secret values in audit details and events.
const redacted = "[redacted]"

// hashSecret hashes a secret-typed value before it reaches storage.
func hashSecret(value any) (string, error) {
	plain, ok := value.(string)
	if !ok {
		plain = fmt.Sprintf("%v", value)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret checks a plaintext candidate against a stored secret-column
// value. It is the only supported way to use a stored secret.
func CompareSecret(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}

// RecordCreate inserts one record. Caller-supplied values are admitted per
// column only when the principal has create access; otherwise the column's
// default applies. Column on-create hooks, secret hashing, aggregated
// validation and resource-level hooks run before any write; the insert is
// followed by the audit entry, the after event and a detached search-index
// update. Returns the new identifier.
func (r *Resource) RecordCreate(ctx context.Context, principal *Principal, data map[string]any) (int64, error) {
	return r.recordCreate(ctx, principal, data, false)
}

func (r *Resource) recordCreate(ctx context.Context, principal *Principal, data map[string]any, noAudit bool) (int64, error) {
	payload := make(map[string]any)

	for _, col := range r.Columns() {
		supplied, present := data[col.Name]

		var value any
		if present && !col.ReadOnly && col.HasCreateAccess(principal) {
			value = supplied
		} else {
			def, err := col.DefaultValue(ctx, principal)
			if err != nil {
				return 0, err
			}
			value = def
		}

		if col.onCreate != nil {
			value = col.onCreate(value)
		}

		if value == nil {
			continue
		}

		if col.Type == TypeSecret && !isEmptyValue(value) {
			hashed, err := hashSecret(value)
			if err != nil {
				return 0, err
			}
			value = hashed
		}

		payload[col.Name] = value
	}

	var msgs []string
	for _, col := range r.Columns() {
		msgs = append(msgs, col.Validate(ctx, principal, payload[col.Name])...)
	}
	if len(msgs) > 0 {
		return 0, &ValidationError{Messages: msgs}
	}

	var err error
	for _, hook := range r.createHooks {
		payload, err = hook(ctx, principal, payload)
		if err != nil {
			return 0, err
		}
	}

	if err := r.emitBefore(ctx, principal, "recordCreate", 0, payload); err != nil {
		return 0, err
	}

	id, err := r.insertRow(ctx, payload)
	if err != nil {
		return 0, err
	}

	if !noAudit {
		if err := r.audit(ctx, principal, "recordCreate", id, "created", payload); err != nil {
			return 0, err
		}
	}

	r.emitAfter(ctx, principal, "recordCreate", id, payload)
	r.indexAsync(ctx, id, payload)

	return id, nil
}

// insertRow writes one row and returns the generated identifier. It runs on
// the internal path: no access checks, hooks or side effects.
func (r *Resource) insertRow(ctx context.Context, data map[string]any) (int64, error) {
	if len(data) == 0 {
		data = map[string]any{}
	}

	var id int64
	start := time.Now()
	_, err := r.db().NewInsert().
		Model(&data).
		TableExpr("?", bun.Ident(r.table)).
		Returning("id").
		Exec(ctx, &id)
	r.engine.monitor.observe(r.table, "insert", start, err)
	if err := dbkit.WithErr1(err, "insertRow").Err(); err != nil {
		return 0, NewError(ErrDatabaseError, "insert failed: "+err.Error()).WithTable(r.table)
	}
	return id, nil
}

// RecordUpdate mutates the supplied fields of one record. Fields that do not
// belong to this resource, or that the principal may not write, are silently
// dropped. Returns the affected-row count.
func (r *Resource) RecordUpdate(ctx context.Context, principal *Principal, id int64, data map[string]any) (int64, error) {
	payload := make(map[string]any)
	var msgs []string

	for name, supplied := range data {
		col := r.columns[name]
		if col == nil || col.ReadOnly || !col.HasWriteAccess(principal) {
			continue
		}

		value := supplied
		if col.onUpdate != nil {
			value = col.onUpdate(value)
		}

		if vs := col.Validate(ctx, principal, value); len(vs) > 0 {
			msgs = append(msgs, vs...)
			continue
		}

		if col.Type == TypeSecret && !isEmptyValue(value) {
			hashed, err := hashSecret(value)
			if err != nil {
				return 0, err
			}
			value = hashed
		}

		payload[name] = value
	}

	if len(msgs) > 0 {
		return 0, &ValidationError{Messages: msgs}
	}
	if len(payload) == 0 {
		return 0, nil
	}

	var err error
	for _, hook := range r.updateHooks {
		payload, err = hook(ctx, principal, payload)
		if err != nil {
			return 0, err
		}
	}

	if err := r.emitBefore(ctx, principal, "recordUpdate", id, payload); err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := r.db().NewUpdate().
		Model(&payload).
		TableExpr("?", bun.Ident(r.table)).
		Where("id = ?", id).
		Exec(ctx)
	r.engine.monitor.observe(r.table, "update", start, err)
	if err := dbkit.WithErr(result, err, "RecordUpdate").Err(); err != nil {
		return 0, NewError(ErrDatabaseError, "update failed: "+err.Error()).
			WithTable(r.table).WithRecord(id)
	}
	affected, _ := result.RowsAffected()

	if err := r.audit(ctx, principal, "recordUpdate", id, "updated", payload); err != nil {
		return 0, err
	}

	r.emitAfter(ctx, principal, "recordUpdate", id, payload)
	r.indexAsync(ctx, id, payload)

	return affected, nil
}

// RecordDelete removes one record. Returns the affected-row count.
func (r *Resource) RecordDelete(ctx context.Context, principal *Principal, id int64) (int64, error) {
	if err := r.emitBefore(ctx, principal, "recordDelete", id, nil); err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := r.db().NewDelete().
		Table(r.table).
		Where("id = ?", id).
		Exec(ctx)
	r.engine.monitor.observe(r.table, "delete", start, err)
	if err := dbkit.WithErr(result, err, "RecordDelete").Err(); err != nil {
		return 0, NewError(ErrDatabaseError, "delete failed: "+err.Error()).
			WithTable(r.table).WithRecord(id)
	}
	affected, _ := result.RowsAffected()

	if err := r.audit(ctx, principal, "recordDelete", id, "deleted", nil); err != nil {
		return 0, err
	}

	r.emitAfter(ctx, principal, "recordDelete", id, nil)
	r.deleteIndexAsync(ctx, id)

	return affected, nil
}

// GetOptions selects the record for RecordGet: by id, or by the first match
// of the conditions.
type GetOptions struct {
	RecordID       int64
	Conditions     []RowCondition
	IncludeSecrets bool
}

// RecordGet returns one record as a column-name map, or nil when no visible
// row matches. Secret-typed columns are excluded unless explicitly requested;
// reference columns carry their joined display value under
// "<column>_<display>".
func (r *Resource) RecordGet(ctx context.Context, principal *Principal, opts GetOptions) (map[string]any, error) {
	q := r.baseSelect(principal, opts.IncludeSecrets, false)

	if opts.RecordID != 0 {
		q = q.Where("?.id = ?", bun.Ident(r.table), opts.RecordID)
	}
	for _, cond := range opts.Conditions {
		var err error
		q, err = r.applyCondition(q, cond)
		if err != nil {
			return nil, err
		}
	}

	var row map[string]any
	start := time.Now()
	err := q.Limit(1).Scan(ctx, &row)
	r.engine.monitor.observe(r.table, "select", start, err)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, NewError(ErrDatabaseError, "select failed: "+err.Error()).WithTable(r.table)
	}

	r.recordView(ctx, principal, row)

	return row, nil
}

// RowsResult is one page of a listing plus the optional total.
type RowsResult struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

// RowsGet returns a page of records using the same projection, join and
// access-filter machinery as RecordGet, plus free-text search, declared
// conditions, named query modifiers, sorting and pagination.
func (r *Resource) RowsGet(ctx context.Context, principal *Principal, opts RowsOptions) (*RowsResult, error) {
	build := func() (*bun.SelectQuery, error) {
		q := r.baseSelect(principal, false, true)

		for _, cond := range opts.Conditions {
			var err error
			q, err = r.applyCondition(q, cond)
			if err != nil {
				return nil, err
			}
		}

		if opts.Search != "" {
			q = r.applySearch(q, principal, opts.Search)
		}

		for name, value := range opts.Modifiers {
			fn, ok := r.queryModifiers[name]
			if !ok {
				return nil, NewError(ErrInvalidDeclaration, "unknown query modifier "+name).WithTable(r.table)
			}
			q = fn(q, value)
		}

		return q, nil
	}

	result := &RowsResult{}

	if opts.IncludeTotal {
		q, err := build()
		if err != nil {
			return nil, err
		}
		start := time.Now()
		count, err := q.Count(ctx)
		r.engine.monitor.observe(r.table, "count", start, err)
		if err := dbkit.WithErr1(err, "RowsGet count").Err(); err != nil {
			return nil, NewError(ErrDatabaseError, "count failed: "+err.Error()).WithTable(r.table)
		}
		result.Count = count
	}

	q, err := build()
	if err != nil {
		return nil, err
	}

	if opts.OrderBy != "" {
		if r.columns[opts.OrderBy] == nil && opts.OrderBy != "id" {
			return nil, NewError(ErrInvalidDeclaration, "unknown sort column "+opts.OrderBy).WithTable(r.table)
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("?.? ?", bun.Ident(r.table), bun.Ident(opts.OrderBy), bun.Safe(dir))
	} else {
		q = q.OrderExpr("?.id ASC", bun.Ident(r.table))
	}

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	rows := make([]map[string]any, 0)
	start := time.Now()
	err = q.Scan(ctx, &rows)
	r.engine.monitor.observe(r.table, "select", start, err)
	if err := dbkit.WithErr1(err, "RowsGet").Err(); err != nil {
		return nil, NewError(ErrDatabaseError, "select failed: "+err.Error()).WithTable(r.table)
	}

	result.Rows = rows
	if !opts.IncludeTotal {
		result.Count = len(rows)
	}

	return result, nil
}

// baseSelect builds the projection shared by RecordGet and RowsGet: id plus
// every readable column, left joins for reference columns, and the declared
// row-level access filters.
func (r *Resource) baseSelect(principal *Principal, includeSecrets, listing bool) *bun.SelectQuery {
	q := r.db().NewSelect().
		TableExpr("? AS ?", bun.Ident(r.table), bun.Ident(r.table)).
		ColumnExpr("?.id AS id", bun.Ident(r.table))

	for _, col := range r.Columns() {
		if !col.HasReadAccess(principal) {
			continue
		}
		if col.Type == TypeSecret && !includeSecrets {
			continue
		}
		if listing && col.HiddenList {
			continue
		}

		q = q.ColumnExpr("?.? AS ?", bun.Ident(r.table), bun.Ident(col.Name), bun.Ident(col.Name))

		if col.Join != "" {
			q = q.Join("LEFT JOIN ? AS ? ON ?.? = ?.id",
				bun.Ident(col.Join), bun.Ident(col.JoinAlias),
				bun.Ident(r.table), bun.Ident(col.Name), bun.Ident(col.JoinAlias)).
				ColumnExpr("?.? AS ?",
					bun.Ident(col.JoinAlias), bun.Ident(col.JoinDisplay), bun.Ident(col.JoinDisplayAlias))
		}
	}

	return r.applyAccessFilters(principal, q)
}

// applyCondition adds one validated column condition.
func (r *Resource) applyCondition(q *bun.SelectQuery, cond RowCondition) (*bun.SelectQuery, error) {
	if r.columns[cond.Column] == nil && cond.Column != "id" {
		return nil, NewError(ErrInvalidDeclaration, "unknown filter column "+cond.Column).
			WithTable(r.table).WithColumn(cond.Column)
	}
	op, ok := allowedOperators[cond.Operator]
	if !ok {
		return nil, NewError(ErrInvalidDeclaration, "unknown filter operator "+cond.Operator).
			WithTable(r.table).WithColumn(cond.Column)
	}

	if op == "IN" {
		return q.Where("?.? IN (?)", bun.Ident(r.table), bun.Ident(cond.Column), bun.In(cond.Value)), nil
	}
	return q.Where("?.? ? ?", bun.Ident(r.table), bun.Ident(cond.Column), bun.Safe(op), cond.Value), nil
}

// applySearch ORs a case-insensitive substring match across every readable
// text-like column.
func (r *Resource) applySearch(q *bun.SelectQuery, principal *Principal, term string) *bun.SelectQuery {
	pattern := "%" + term + "%"
	return q.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range r.Columns() {
			switch col.Type {
			case TypeString, TypeText, TypeEmail, TypePhone, TypeSelect:
			default:
				continue
			}
			if !col.HasReadAccess(principal) {
				continue
			}
			g = g.WhereOr("?.? ILIKE ?", bun.Ident(r.table), bun.Ident(col.Name), pattern)
		}
		return g
	})
}

// audit writes one entry for a mutating operation unless auditing is
// disabled for this resource. Secret values never reach the detail payload.
func (r *Resource) audit(ctx context.Context, principal *Principal, operation string, id int64, message string, detail map[string]any) error {
	if r.auditDisabled || r.engine.auditSink == nil {
		return nil
	}

	entry := &AuditEntry{
		Table:     r.table,
		Row:       id,
		Principal: principal,
		Action:    operation,
		Message:   message,
		Detail:    r.redactSecrets(detail),
	}
	return r.engine.auditSink.Log(ctx, entry)
}

// redactSecrets copies a payload with secret-typed values masked.
func (r *Resource) redactSecrets(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for name, value := range data {
		if col := r.columns[name]; col != nil && col.Type == TypeSecret {
			out[name] = redacted
			continue
		}
		out[name] = value
	}
	return out
}

// emitBefore publishes the pre-write event; a handler error vetoes the
// operation.
func (r *Resource) emitBefore(ctx context.Context, principal *Principal, operation string, id int64, data map[string]any) error {
	if r.engine.bus == nil {
		return nil
	}
	return r.engine.bus.Publish(ctx, &Event{
		Topic:     eventTopic(r.table, operation, "before"),
		Table:     r.table,
		Operation: operation,
		Phase:     "before",
		RecordID:  id,
		Record:    r.redactSecrets(data),
		Principal: principal,
	})
}

// emitAfter publishes the post-write event; handler errors are logged, the
// operation already happened.
func (r *Resource) emitAfter(ctx context.Context, principal *Principal, operation string, id int64, data map[string]any) {
	if r.engine.bus == nil {
		return
	}
	err := r.engine.bus.Publish(ctx, &Event{
		Topic:     eventTopic(r.table, operation, "after"),
		Table:     r.table,
		Operation: operation,
		Phase:     "after",
		RecordID:  id,
		Record:    r.redactSecrets(data),
		Principal: principal,
	})
	if err != nil {
		r.engine.log.WithError(err).
			WithField("table", r.table).
			WithField("operation", operation).
			Warn("after-event handler failed")
	}
}

// indexAsync hands the record to the search indexer without blocking the
// caller. Failures are logged and swallowed.
func (r *Resource) indexAsync(ctx context.Context, id int64, data map[string]any) {
	if r.engine.indexer == nil {
		return
	}
	req := &IndexRequest{
		Table:    r.table,
		RecordID: id,
		Text:     flattenSearchText(r, data),
		Data:     r.redactSecrets(data),
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := r.engine.indexer.Index(detached, req); err != nil {
			r.engine.log.WithError(err).
				WithField("table", r.table).
				WithField("record", id).
				Warn("search index update failed")
		}
	}()
}

// deleteIndexAsync removes the record from the search index, best effort.
func (r *Resource) deleteIndexAsync(ctx context.Context, id int64) {
	if r.engine.indexer == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := r.engine.indexer.Delete(detached, r.table, id); err != nil {
			r.engine.log.WithError(err).
				WithField("table", r.table).
				WithField("record", id).
				Warn("search index removal failed")
		}
	}()
}

// recordView appends the record to the recently-viewed trail, best effort.
func (r *Resource) recordView(ctx context.Context, principal *Principal, row map[string]any) {
	if r.viewsDisabled || row == nil || principal == nil || principal.System {
		return
	}
	if err := r.engine.recordView(ctx, principal, r.table, row); err != nil {
		r.engine.log.WithError(err).
			WithField("table", r.table).
			Warn("recording view failed")
	}
}

// Method handlers bound by registerMethods. They translate the generic
// argument map of the dispatch contract into the typed calls above.

func (r *Resource) methodRecordCreate(ctx context.Context, call *Call) (any, error) {
	data, err := argRecord(call.Args, "data")
	if err != nil {
		return nil, err
	}
	noAudit := argBool(call.Args, "noAudit") && call.Principal.bypassesAccess()
	id, err := r.recordCreate(ctx, call.Principal, data, noAudit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

func (r *Resource) methodRecordUpdate(ctx context.Context, call *Call) (any, error) {
	id, err := argID(call.Args, "recordId")
	if err != nil {
		return nil, err
	}
	data, err := argRecord(call.Args, "data")
	if err != nil {
		return nil, err
	}
	affected, err := r.RecordUpdate(ctx, call.Principal, id, data)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rowsUpdated": affected}, nil
}

func (r *Resource) methodRecordDelete(ctx context.Context, call *Call) (any, error) {
	id, err := argID(call.Args, "recordId")
	if err != nil {
		return nil, err
	}
	affected, err := r.RecordDelete(ctx, call.Principal, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rowsDeleted": affected}, nil
}

func (r *Resource) methodRecordGet(ctx context.Context, call *Call) (any, error) {
	opts := GetOptions{}
	if id, err := argID(call.Args, "recordId"); err == nil {
		opts.RecordID = id
	}
	if where, ok := call.Args["where"].(map[string]any); ok {
		for column, value := range where {
			opts.Conditions = append(opts.Conditions, RowCondition{Column: column, Operator: "=", Value: value})
		}
	}
	if opts.RecordID == 0 && len(opts.Conditions) == 0 {
		return nil, NewError(ErrMissingRecordID, "recordGet needs a recordId or a where clause").WithTable(r.table)
	}
	return r.RecordGet(ctx, call.Principal, opts)
}

func (r *Resource) methodRowsGet(ctx context.Context, call *Call) (any, error) {
	opts := NewRowsOptions()

	if where, ok := call.Args["where"].(map[string]any); ok {
		for column, value := range where {
			opts.Conditions = append(opts.Conditions, RowCondition{Column: column, Operator: "=", Value: value})
		}
	}
	if search, ok := call.Args["search"].(string); ok {
		opts.Search = search
	}
	if sortField, ok := call.Args["sortField"].(string); ok {
		opts.OrderBy = sortField
		if order, ok := call.Args["sortOrder"].(string); ok {
			opts.Desc = order == "desc" || order == "DESC"
		}
	}
	if limit, err := argID(call.Args, "limit"); err == nil && limit > 0 {
		opts.Limit = int(limit)
	}
	if offset, err := argID(call.Args, "offset"); err == nil && offset > 0 {
		opts.Offset = int(offset)
	}
	opts.IncludeTotal = argBool(call.Args, "returnCount")
	if modifiers, ok := call.Args["modifiers"].(map[string]any); ok {
		opts.Modifiers = modifiers
	}

	return r.RowsGet(ctx, call.Principal, opts)
}

// argRecord extracts a required map argument.
func argRecord(args map[string]any, key string) (map[string]any, error) {
	data, ok := args[key].(map[string]any)
	if !ok {
		return nil, NewError(ErrInvalidDeclaration, "argument "+key+" must be an object")
	}
	return data, nil
}

// argID extracts an integer argument, accepting the numeric kinds a JSON or
// driver layer may produce.
func argID(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	}
	return 0, NewError(ErrMissingRecordID, "argument "+key+" must be an integer")
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
