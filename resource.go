package tablekit

import (
	"context"
	"sort"

	"github.com/uptrace/bun"
)

// ResourceHookFunc transforms the accumulated payload of a create or update.
// Hooks run in declaration order; each receives the payload produced by the
// previous one and returns the payload for the next.
type ResourceHookFunc func(ctx context.Context, principal *Principal, data map[string]any) (map[string]any, error)

// AccessFilterFunc narrows a read/list query to the rows the principal may
// see. Filters run in declaration order on every recordGet and rowsGet.
//
// Example (self-service scoping):
//
//	resource.AccessFilterAdd(func(p *tablekit.Principal, q *bun.SelectQuery) *bun.SelectQuery {
//	    return q.Where("owner = ?", p.ID)
//	})
type AccessFilterFunc func(principal *Principal, q *bun.SelectQuery) *bun.SelectQuery

// QueryModifierFunc is a named listing transform selectable per rowsGet call,
// for filters beyond simple column equality.
type QueryModifierFunc func(q *bun.SelectQuery, value any) *bun.SelectQuery

// InitFunc is a per-resource initialization callback. Pre hooks run before
// schema synchronization, post hooks after it.
type InitFunc func(ctx context.Context) error

// ParentLink records a many-to-one reference from this resource to another.
type ParentLink struct {
	Column  string // local FK column
	Table   string // referenced resource
	Display string // referenced display column
	Label   string
}

// ChildLink is the reverse of a ParentLink: a resource whose records point at
// records of this one through Column.
type ChildLink struct {
	Table  string `json:"table"`
	Label  string `json:"label"`
	Column string `json:"column"`
}

// JunctionDecl declares a many-to-many relation. The engine expands it into a
// junction resource at initialization.
type JunctionDecl struct {
	Name     string // junction table name; defaults to "<table1>_<table2>"
	Table1   string
	Display1 string
	Table2   string
	Display2 string
}

// ResourceConfig declares a resource.
type ResourceConfig struct {
	// Name is the physical table name, also the resource's registry key.
	Name  string
	Label string

	RolesWrite []string
	RolesRead  []string

	// AuthRequired defaults to true; methods then reject nil principals.
	AuthRequired *bool

	// Audit defaults to true; when disabled, mutations on this resource
	// produce no audit entries (the audit resource itself disables it).
	Audit *bool

	// Views defaults to true; when disabled, record reads are not added to
	// the recently-viewed trail.
	Views *bool
}

// Resource compiles a declaration of columns, actions and relations into a
// live CRUD surface over one physical table. Declare everything before
// Engine.Init; the declaration is immutable afterwards.
type Resource struct {
	*Core

	table string
	label string

	columns     map[string]*Column
	columnOrder []string
	actions     map[string]*Action
	actionOrder []string

	parents   []ParentLink
	children  []ChildLink
	junctions []JunctionDecl

	createHooks    []ResourceHookFunc
	updateHooks    []ResourceHookFunc
	accessFilters  []AccessFilterFunc
	queryModifiers map[string]QueryModifierFunc

	// seeds insert exactly once, when schema sync creates the table.
	seeds []map[string]any

	initPre  []InitFunc
	initPost []InitFunc

	auditDisabled bool
	viewsDisabled bool

	engine *Engine
}

// NewResource builds an unregistered resource from its declaration and
// registers the standard CRUD methods. Most callers use Engine.NewResource,
// which also registers the result with the engine.
func NewResource(cfg ResourceConfig) (*Resource, error) {
	if cfg.Name == "" {
		return nil, NewError(ErrInvalidDeclaration, "resource name cannot be empty")
	}
	if !identPattern.MatchString(cfg.Name) {
		return nil, NewError(ErrInvalidDeclaration,
			"resource name must be a lowercase identifier: "+cfg.Name)
	}
	if cfg.Label == "" {
		cfg.Label = cfg.Name
	}

	r := &Resource{
		Core:           NewCore(cfg.Name),
		table:          cfg.Name,
		label:          cfg.Label,
		columns:        make(map[string]*Column),
		actions:        make(map[string]*Action),
		queryModifiers: make(map[string]QueryModifierFunc),
	}

	if cfg.AuthRequired != nil {
		r.authRequired = *cfg.AuthRequired
	}
	if cfg.Audit != nil {
		r.auditDisabled = !*cfg.Audit
	}
	if cfg.Views != nil {
		r.viewsDisabled = !*cfg.Views
	}

	r.RolesWriteAdd(cfg.RolesWrite...)
	r.RolesReadAdd(cfg.RolesRead...)

	if err := r.registerMethods(); err != nil {
		return nil, err
	}

	return r, nil
}

// registerMethods binds the CRUD surface into the method registry.
func (r *Resource) registerMethods() error {
	bindings := []struct {
		id string
		fn MethodFunc
	}{
		{"recordCreate", r.methodRecordCreate},
		{"recordUpdate", r.methodRecordUpdate},
		{"recordDelete", r.methodRecordDelete},
		{"recordGet", r.methodRecordGet},
		{"rowsGet", r.methodRowsGet},
		{"schemaGet", r.methodSchemaGet},
		{"actionsGet", r.methodActionsGet},
		{"childrenGet", r.methodChildrenGet},
	}
	for _, b := range bindings {
		if err := r.MethodRegister(MethodConfig{ID: b.id, Handler: b.fn}); err != nil {
			return err
		}
	}
	r.ReadOnlyMethodsAdd("recordGet", "rowsGet", "schemaGet", "actionsGet", "childrenGet")
	return nil
}

// Table returns the physical table name.
func (r *Resource) Table() string {
	return r.table
}

// Label returns the human-readable name.
func (r *Resource) Label() string {
	return r.label
}

// ColumnAdd declares one column. Names must be unique within the resource;
// "id" is reserved for the synthetic identifier.
func (r *Resource) ColumnAdd(def ColumnDef) error {
	if def.Name == "id" {
		return NewError(ErrInvalidDeclaration, "column name id is reserved").WithTable(r.table)
	}
	if _, exists := r.columns[def.Name]; exists {
		return NewError(ErrDuplicateColumn, "duplicate column "+def.Name).
			WithTable(r.table).WithColumn(def.Name)
	}

	col, err := newColumn(r, def)
	if err != nil {
		return err
	}

	r.columns[def.Name] = col
	r.columnOrder = append(r.columnOrder, def.Name)
	return nil
}

// Column returns a declared column, or nil.
func (r *Resource) Column(name string) *Column {
	return r.columns[name]
}

// Columns returns the declared columns ordered by their presentation weight,
// declaration order breaking ties.
func (r *Resource) Columns() []*Column {
	cols := make([]*Column, 0, len(r.columnOrder))
	for _, name := range r.columnOrder {
		cols = append(cols, r.columns[name])
	}
	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].Order < cols[j].Order
	})
	return cols
}

// ActionAdd declares one action.
func (r *Resource) ActionAdd(def ActionDef) error {
	a, err := newAction(r, def)
	if err != nil {
		return err
	}
	r.actions[a.ID] = a
	r.actionOrder = append(r.actionOrder, a.ID)
	return nil
}

// Action returns a declared action by id, or nil.
func (r *Resource) Action(id string) *Action {
	return r.actions[id]
}

// ManyToOneAdd declares a reference to a parent resource: an indexed integer
// column joined to the parent's display column, plus the reverse child link
// registered on the parent at engine initialization.
//
// Example:
//
//	task.ManyToOneAdd(tablekit.ColumnDef{
//	    Name:        "project",
//	    Join:        "project",
//	    JoinDisplay: "name",
//	})
func (r *Resource) ManyToOneAdd(def ColumnDef) error {
	if def.Join == "" {
		return NewError(ErrInvalidDeclaration,
			"many-to-one column "+def.Name+" needs a referenced resource").
			WithTable(r.table).WithColumn(def.Name)
	}
	if def.Type == "" {
		def.Type = TypeInteger
	}
	if def.JoinDisplay == "" {
		def.JoinDisplay = "name"
	}
	def.Index = true

	if err := r.ColumnAdd(def); err != nil {
		return err
	}

	label := def.FriendlyName
	if label == "" {
		label = def.Name
	}
	r.parents = append(r.parents, ParentLink{
		Column:  def.Name,
		Table:   def.Join,
		Display: def.JoinDisplay,
		Label:   label,
	})
	return nil
}

// ManyToManyAdd declares a many-to-many relation with another resource. The
// engine synthesizes the junction resource during Init.
func (r *Resource) ManyToManyAdd(decl JunctionDecl) error {
	if decl.Table1 == "" {
		decl.Table1 = r.table
	}
	if decl.Table1 == "" || decl.Table2 == "" {
		return NewError(ErrInvalidDeclaration, "many-to-many needs both resources").WithTable(r.table)
	}
	if decl.Name == "" {
		decl.Name = decl.Table1 + "_" + decl.Table2
	}
	if decl.Display1 == "" {
		decl.Display1 = "name"
	}
	if decl.Display2 == "" {
		decl.Display2 = "name"
	}
	r.junctions = append(r.junctions, decl)
	return nil
}

// ChildAdd registers a reverse link shown under this resource's records.
// Engine.Init calls this for every declared many-to-one; resources may also
// add links by hand.
func (r *Resource) ChildAdd(link ChildLink) {
	for _, c := range r.children {
		if c.Table == link.Table && c.Column == link.Column {
			return
		}
	}
	r.children = append(r.children, link)
}

// OnCreateAdd appends a resource-level create hook.
func (r *Resource) OnCreateAdd(fn ResourceHookFunc) {
	r.createHooks = append(r.createHooks, fn)
}

// OnUpdateAdd appends a resource-level update hook.
func (r *Resource) OnUpdateAdd(fn ResourceHookFunc) {
	r.updateHooks = append(r.updateHooks, fn)
}

// AccessFilterAdd appends a row-level access filter applied to every read
// and list query.
func (r *Resource) AccessFilterAdd(fn AccessFilterFunc) {
	r.accessFilters = append(r.accessFilters, fn)
}

// QueryModifierAdd registers a named listing transform. Callers select it per
// rowsGet call through the modifiers argument.
func (r *Resource) QueryModifierAdd(name string, fn QueryModifierFunc) error {
	if name == "" || fn == nil {
		return NewError(ErrInvalidDeclaration, "query modifier needs a name and a function").
			WithTable(r.table)
	}
	if _, exists := r.queryModifiers[name]; exists {
		return NewError(ErrInvalidDeclaration, "duplicate query modifier "+name).WithTable(r.table)
	}
	r.queryModifiers[name] = fn
	return nil
}

// SeedAdd queues a record inserted exactly once, when schema synchronization
// creates the physical table. Values may be DefaultFunc callables, resolved
// at insertion time.
func (r *Resource) SeedAdd(data map[string]any) {
	r.seeds = append(r.seeds, data)
}

// InitPreAdd appends a callback run before this resource's schema sync.
func (r *Resource) InitPreAdd(fn InitFunc) {
	r.initPre = append(r.initPre, fn)
}

// InitAdd appends a callback run after this resource's schema sync.
func (r *Resource) InitAdd(fn InitFunc) {
	r.initPost = append(r.initPost, fn)
}

// Parents returns the declared many-to-one links.
func (r *Resource) Parents() []ParentLink {
	out := make([]ParentLink, len(r.parents))
	copy(out, r.parents)
	return out
}

// applyAccessFilters threads the declared row-level filters through a query.
func (r *Resource) applyAccessFilters(principal *Principal, q *bun.SelectQuery) *bun.SelectQuery {
	if principal.bypassesAccess() {
		return q
	}
	for _, f := range r.accessFilters {
		q = f(principal, q)
	}
	return q
}

// db returns the engine's database handle.
func (r *Resource) db() Database {
	return r.engine.db
}
