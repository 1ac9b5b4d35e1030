package tablekit

import (
	"context"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// tableExists checks the catalog for the physical relation.
func (r *Resource) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db().NewRaw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?)",
		r.table,
	).Scan(ctx, &exists)
	return exists, dbkit.WithErr1(err, "tableExists").Err()
}

// columnExists checks the catalog for one physical column.
func (r *Resource) columnExists(ctx context.Context, column string) (bool, error) {
	var exists bool
	err := r.db().NewRaw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?)",
		r.table, column,
	).Scan(ctx, &exists)
	return exists, dbkit.WithErr1(err, "columnExists").Err()
}

// syncSchema brings the physical relation up to the declaration. It is
// additive and idempotent: the table is created with the synthetic id column
// when absent, missing columns are added with their physical type, comment
// and indexes, and existing columns are never altered or dropped. When the
// table was created by this run, the queued seed records are flushed.
func (r *Resource) syncSchema(ctx context.Context) error {
	log := r.engine.log.WithField("table", r.table)

	existed, err := r.tableExists(ctx)
	if err != nil {
		return err
	}

	if !existed {
		_, err = r.db().NewRaw(
			"CREATE TABLE IF NOT EXISTS ? (id BIGSERIAL PRIMARY KEY)",
			bun.Ident(r.table),
		).Exec(ctx)
		if err := dbkit.WithErr1(err, "createTable").Err(); err != nil {
			return NewError(ErrDatabaseError, "creating table: "+err.Error()).WithTable(r.table)
		}
		log.Info("table created")
	}

	for _, col := range r.Columns() {
		if err := r.syncColumn(ctx, col); err != nil {
			return err
		}
	}

	if !existed && len(r.seeds) > 0 {
		if err := r.flushSeeds(ctx); err != nil {
			return err
		}
		log.WithField("records", len(r.seeds)).Info("seed records inserted")
	}

	return nil
}

// syncColumn adds one missing physical column with its metadata.
func (r *Resource) syncColumn(ctx context.Context, col *Column) error {
	present, err := r.columnExists(ctx, col.Name)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	_, err = r.db().NewRaw(
		"ALTER TABLE ? ADD COLUMN IF NOT EXISTS ? ?",
		bun.Ident(r.table), bun.Ident(col.Name), bun.Safe(col.PhysicalType),
	).Exec(ctx)
	if err := dbkit.WithErr1(err, "addColumn").Err(); err != nil {
		return NewError(ErrDatabaseError, "adding column: "+err.Error()).
			WithTable(r.table).WithColumn(col.Name)
	}

	if col.FriendlyName != "" {
		_, err = r.db().NewRaw(
			"COMMENT ON COLUMN ?.? IS ?",
			bun.Ident(r.table), bun.Ident(col.Name), col.FriendlyName,
		).Exec(ctx)
		if err := dbkit.WithErr1(err, "commentColumn").Err(); err != nil {
			return err
		}
	}

	if col.Unique {
		_, err = r.db().NewRaw(
			"CREATE UNIQUE INDEX IF NOT EXISTS ? ON ? (?)",
			bun.Ident("uq_"+r.table+"_"+col.Name), bun.Ident(r.table), bun.Ident(col.Name),
		).Exec(ctx)
	} else if col.Index {
		_, err = r.db().NewRaw(
			"CREATE INDEX IF NOT EXISTS ? ON ? (?)",
			bun.Ident("idx_"+r.table+"_"+col.Name), bun.Ident(r.table), bun.Ident(col.Name),
		).Exec(ctx)
	}
	if err := dbkit.WithErr1(err, "indexColumn").Err(); err != nil {
		return NewError(ErrDatabaseError, "indexing column: "+err.Error()).
			WithTable(r.table).WithColumn(col.Name)
	}

	return nil
}

// flushSeeds inserts the queued records. Callable values resolve at insertion
// time; inserts run on the internal path, so no audit entries are written.
func (r *Resource) flushSeeds(ctx context.Context) error {
	for _, seed := range r.seeds {
		data := make(map[string]any, len(seed))
		for name, value := range seed {
			if fn, ok := value.(DefaultFunc); ok {
				resolved, err := fn(ctx, nil)
				if err != nil {
					return err
				}
				data[name] = resolved
				continue
			}
			if fn, ok := value.(func(context.Context, *Principal) (any, error)); ok {
				resolved, err := fn(ctx, nil)
				if err != nil {
					return err
				}
				data[name] = resolved
				continue
			}
			data[name] = value
		}

		if _, err := r.insertRow(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// ColumnSchema is the presentation contract for one column: its declared
// metadata plus the effective access for the requesting principal.
type ColumnSchema struct {
	Name         string       `json:"name"`
	FriendlyName string       `json:"friendlyName"`
	Type         ColumnType   `json:"type"`
	FieldType    string       `json:"fieldType"`
	HelpText     string       `json:"helpText,omitempty"`
	Required     bool         `json:"required"`
	ReadOnly     bool         `json:"readOnly"`
	Hidden       bool         `json:"hidden"`
	HiddenList   bool         `json:"hiddenList"`
	HiddenCreate bool         `json:"hiddenCreate"`
	HiddenUpdate bool         `json:"hiddenUpdate"`
	Options      []string     `json:"options,omitempty"`
	Order        int          `json:"order"`
	Join         string       `json:"join,omitempty"`
	JoinDisplay  string       `json:"joinDisplay,omitempty"`
	Access       ColumnAccess `json:"access"`
	Default      any          `json:"default,omitempty"`
}

// ResourceSchema is the contract a presentation layer renders forms from,
// without reimplementing the access algebra.
type ResourceSchema struct {
	Name           string         `json:"name"`
	Label          string         `json:"label"`
	ReadOnly       bool           `json:"readOnly"`
	CreateDisabled bool           `json:"createDisabled"`
	Columns        []ColumnSchema `json:"schema"`
}

// SchemaGet resolves the declared columns against the principal: per-column
// effective read/write/create access and default values, plus whether the
// resource as a whole is read-only or creation-disabled for this principal.
func (r *Resource) SchemaGet(ctx context.Context, principal *Principal) (*ResourceSchema, error) {
	out := &ResourceSchema{
		Name:           r.table,
		Label:          r.label,
		ReadOnly:       !r.Authorized(principal, "recordUpdate"),
		CreateDisabled: !r.Authorized(principal, "recordCreate"),
	}

	for _, col := range r.Columns() {
		def, err := col.DefaultValue(ctx, principal)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, ColumnSchema{
			Name:         col.Name,
			FriendlyName: col.FriendlyName,
			Type:         col.Type,
			FieldType:    col.FieldType,
			HelpText:     col.HelpText,
			Required:     col.Required,
			ReadOnly:     col.ReadOnly,
			Hidden:       col.Hidden,
			HiddenList:   col.HiddenList,
			HiddenCreate: col.HiddenCreate,
			HiddenUpdate: col.HiddenUpdate,
			Options:      col.Options,
			Order:        col.Order,
			Join:         col.Join,
			JoinDisplay:  col.JoinDisplay,
			Access:       col.Access(principal),
			Default:      def,
		})
	}

	return out, nil
}

func (r *Resource) methodSchemaGet(ctx context.Context, call *Call) (any, error) {
	return r.SchemaGet(ctx, call.Principal)
}
