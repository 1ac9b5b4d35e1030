package tablekit

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures an Engine. Every field is optional.
type Options struct {
	// Logger receives structured engine logs; defaults to a fresh logrus
	// logger.
	Logger *logrus.Logger

	// AuditSink receives one entry per mutating operation; defaults to a
	// sink writing through the built-in audit resource.
	AuditSink AuditSink

	// EventBus carries lifecycle events; defaults to an in-process bus.
	EventBus EventBus

	// SearchIndexer receives post-mutation documents; defaults to a no-op.
	SearchIndexer SearchIndexer

	// SlowQueryThreshold logs a warning per storage query above it; zero
	// disables the check.
	SlowQueryThreshold time.Duration
}

// Engine holds the resource registry and the shared collaborators. Declare
// resources, call Init once, then serve Execute calls until shutdown.
type Engine struct {
	db        Database
	log       *logrus.Logger
	bus       EventBus
	auditSink AuditSink
	indexer   SearchIndexer
	monitor   *queryMonitor
	roles     *RoleDirectory

	resources map[string]*Resource
	order     []string

	auditResource *Resource
	viewsResource *Resource

	initialized bool
}

// New builds an engine over an injected database handle and registers the
// built-in resources: audit, views, role, user and group (the latter two
// with their role junctions).
func New(db Database, opts Options) (*Engine, error) {
	if db == nil {
		return nil, NewError(ErrInvalidDeclaration, "engine needs a database handle")
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = NewMemoryBus()
	}
	indexer := opts.SearchIndexer
	if indexer == nil {
		indexer = NoopIndexer{}
	}

	e := &Engine{
		db:        db,
		log:       log,
		bus:       bus,
		indexer:   indexer,
		roles:     newRoleDirectory(db),
		resources: make(map[string]*Resource),
	}
	e.monitor = newQueryMonitor(e, opts.SlowQueryThreshold)

	builtins := []func() (*Resource, error){
		newAuditResource,
		newViewsResource,
		newRoleResource,
		newUserResource,
		newGroupResource,
	}
	for _, build := range builtins {
		r, err := build()
		if err != nil {
			return nil, err
		}
		if err := e.ResourceAdd(r); err != nil {
			return nil, err
		}
	}

	e.auditResource = e.resources["audit"]
	e.viewsResource = e.resources["views"]

	e.auditSink = opts.AuditSink
	if e.auditSink == nil {
		e.auditSink = &tableAuditSink{resource: e.auditResource}
	}

	return e, nil
}

// ResourceAdd registers a resource built with NewResource. Names must be
// unique; registration order is the schema-sync and init-hook order.
func (e *Engine) ResourceAdd(r *Resource) error {
	if e.initialized {
		return NewError(ErrInvalidDeclaration, "resources must be registered before Init").WithTable(r.table)
	}
	if _, exists := e.resources[r.table]; exists {
		return NewError(ErrInvalidDeclaration, "duplicate resource "+r.table).WithTable(r.table)
	}
	r.engine = e
	e.resources[r.table] = r
	e.order = append(e.order, r.table)
	return nil
}

// NewResource builds a resource from its declaration and registers it.
func (e *Engine) NewResource(cfg ResourceConfig) (*Resource, error) {
	r, err := NewResource(cfg)
	if err != nil {
		return nil, err
	}
	if err := e.ResourceAdd(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Resource returns a registered resource, or nil.
func (e *Engine) Resource(name string) *Resource {
	return e.resources[name]
}

// ResourceNames returns the registered resource names in registration order.
func (e *Engine) ResourceNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Init compiles the declarations: junctions are expanded, the implicit
// audit/views children and the reverse links of every many-to-one are
// registered, and each resource runs its pre hooks, schema sync and post
// hooks in registration order. Call it exactly once, after every
// declaration.
func (e *Engine) Init(ctx context.Context) error {
	if e.initialized {
		return NewError(ErrInvalidDeclaration, "engine already initialized")
	}

	if err := e.expandJunctions(); err != nil {
		return err
	}
	e.linkResources()

	for _, name := range e.order {
		r := e.resources[name]

		for _, fn := range r.initPre {
			if err := fn(ctx); err != nil {
				return err
			}
		}
		if err := r.syncSchema(ctx); err != nil {
			return err
		}
		for _, fn := range r.initPost {
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}

	// Role records feed the name-to-id cache; any mutation resets it.
	if err := e.bus.Subscribe("role.**", func(_ context.Context, _ *Event) error {
		e.roles.Reset()
		return nil
	}); err != nil {
		return err
	}

	e.initialized = true
	e.log.WithField("resources", len(e.order)).Info("engine initialized")
	return nil
}

// expandJunctions synthesizes a resource per declared many-to-many pair,
// carrying the declaring resource's role sets.
func (e *Engine) expandJunctions() error {
	for _, name := range append([]string(nil), e.order...) {
		r := e.resources[name]
		for _, decl := range r.junctions {
			if decl.Table1 == "" {
				decl.Table1 = r.table
			}
			if decl.Name == "" {
				decl.Name = decl.Table1 + "_" + decl.Table2
			}
			if _, exists := e.resources[decl.Name]; exists {
				continue
			}

			j, err := NewJunction(decl, r.RolesWrite(), r.RolesRead())
			if err != nil {
				return err
			}
			if err := e.ResourceAdd(j); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkResources registers the implicit audit/views children on every
// resource and the reverse link of every declared many-to-one.
func (e *Engine) linkResources() {
	for _, name := range e.order {
		r := e.resources[name]

		if name != "audit" && name != "views" {
			r.ChildAdd(ChildLink{Table: "audit", Label: "Audit", Column: "row_id"})
			r.ChildAdd(ChildLink{Table: "views", Label: "Recently Viewed", Column: "row_id"})
		}

		for _, p := range r.parents {
			parent := e.resources[p.Table]
			if parent == nil {
				e.log.WithField("table", r.table).
					WithField("parent", p.Table).
					Warn("many-to-one references an unregistered resource")
				continue
			}
			parent.ChildAdd(ChildLink{Table: r.table, Label: r.label, Column: p.Column})
		}
	}
}

// Execute dispatches one operation: it resolves the resource, enforces the
// auth-required and role gates, decorates the context with the operation and
// a request id, and invokes the bound method. Unknown methods return
// (nil, nil), matching MethodExecute.
func (e *Engine) Execute(ctx context.Context, principal *Principal, resource, methodID string, args map[string]any) (any, error) {
	if !e.initialized {
		return nil, NewError(ErrNotInitialized, "call Init before Execute")
	}

	r := e.resources[resource]
	if r == nil {
		return nil, NewError(ErrUnknownResource, "unknown resource "+resource)
	}

	if principal == nil && r.MethodAuthRequired(methodID) {
		return nil, NewError(ErrNoPrincipal, "method "+methodID+" requires an authenticated principal").
			WithTable(resource)
	}

	if !r.Authorized(principal, methodID) {
		err := NewError(ErrUnauthorized, "not authorized").WithTable(resource)
		if principal != nil {
			err = err.WithPrincipal(principal.Name)
		}
		return nil, err
	}

	ctx = WithOperation(ctx, resource+"."+methodID)
	ctx = EnsureRequestID(ctx)
	if principal != nil {
		ctx = WithPrincipal(ctx, principal)
	}

	return r.MethodExecute(ctx, principal, methodID, args)
}

// Menu aggregates the declared menu items across every resource, filtered to
// the ones the principal may see and sorted by their order weight.
func (e *Engine) Menu(principal *Principal) []MenuItem {
	var items []MenuItem
	for _, name := range e.order {
		for _, item := range e.resources[name].MenuItems() {
			if len(item.RolesHide) > 0 && principal.HasAnyRole(item.RolesHide...) {
				continue
			}
			if !principal.IsSystem() && len(item.Roles) > 0 && !principal.HasAnyRole(item.Roles...) {
				continue
			}
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return items
}

// Roles returns the role name-to-id directory.
func (e *Engine) Roles() *RoleDirectory {
	return e.roles
}

// Bus returns the event bus.
func (e *Engine) Bus() EventBus {
	return e.bus
}

// Logger returns the engine logger.
func (e *Engine) Logger() *logrus.Logger {
	return e.log
}

// GetQueryMetrics returns the current query metrics
func (e *Engine) GetQueryMetrics() QueryMetrics {
	return e.monitor.getMetrics()
}

// ResetQueryMetrics resets all metrics
func (e *Engine) ResetQueryMetrics() {
	e.monitor.reset()
}

// recordView appends one row to the recently-viewed trail.
func (e *Engine) recordView(ctx context.Context, principal *Principal, table string, row map[string]any) error {
	id, _ := row["id"].(int64)
	_, err := e.viewsResource.insertRow(ctx, map[string]any{
		"created":    time.Now().UnixMilli(),
		"table_name": table,
		"row_id":     id,
		"actor":      principal.ID,
		"display":    viewDisplay(row),
	})
	return err
}
