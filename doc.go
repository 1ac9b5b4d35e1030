// Package tablekit provides a metadata-driven resource engine: tables are
// declared as metadata (columns, relations, actions) and compiled at startup
// into live, access-controlled CRUD resources backed by a relational store.
//
// Call sites never write SQL. They declare a resource once and get create,
// read, update, delete, list/filter/sort/paginate, schema introspection and a
// permission-aware action catalog for free.
//
// # Core Concepts
//
// Resource: one declared schema mapped to one physical table, with full CRUD,
// access control and lifecycle hooks. Schema synchronization is idempotent
// and additive: re-running it only adds missing columns, never drops or
// alters existing ones.
//
// Column: a declared field carrying its own read/write/create role
// requirements, default-value resolver, validation chain and the mapping from
// a logical type to a physical storage type.
//
// Action: a declared, role-gated operation distinct from raw CRUD (for
// example "Reset Password"), bound to a method in the resource's method
// registry.
//
// Principal: an authenticated caller plus its resolved role set. A principal
// flagged System (and only that, never a merely incomplete request context)
// bypasses the role algebra; this is the trusted-internal-caller escape hatch
// used by seeding and the audit sink.
//
// # Basic Usage
//
//	// 1. Create the engine (at application startup)
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	engine, _ := tablekit.New(db, tablekit.Options{})
//
//	// 2. Declare resources
//	tasks, _ := engine.NewResource(tablekit.ResourceConfig{Name: "task", Label: "Task"})
//	tasks.RolesWriteAdd("Admin")
//	tasks.RolesReadAdd("Viewer")
//	tasks.ColumnAdd(tablekit.ColumnDef{Name: "title", Type: tablekit.TypeString, Required: true})
//	tasks.ColumnAdd(tablekit.ColumnDef{Name: "done", Type: tablekit.TypeBoolean})
//
//	// 3. Synchronize schemas and flush seed records
//	engine.Init(ctx)
//
//	// 4. Serve requests
//	out, err := engine.Execute(ctx, principal, "task", "recordCreate",
//	    map[string]any{"data": map[string]any{"title": "write docs"}})
//
// # Access Control
//
// Three tiers compose on every operation: table-level role sets
// (RolesWriteAdd / RolesReadAdd), column-level role sets (ColumnDef
// RolesRead/RolesWrite/RolesCreate, defaulting to the table's) and row-level
// access filters (AccessFilterAdd) threaded through every read query.
// Authorization failures narrow the result silently -- columns are dropped
// from projections, actions are hidden -- except at the method-dispatch
// boundary, which reports a generic unauthorized error.
//
// # Relations
//
// ManyToOneAdd declares a reference column; reads left-join the referenced
// resource's display column automatically, and the referencing resource
// appears as a child tab of the referenced one. ManyToManyAdd declares a
// pair; the engine synthesizes a junction resource with two indexed
// foreign-key columns. Every resource is implicitly a child of the built-in
// audit trail and recently-viewed trail.
//
// # Hierarchical Permissions
//
// NewTree builds a tree-shaped resource (records reference a parent record of
// the same resource) whose per-node permission records resolve through the
// nearest ancestor that has any records attached. Results are cached per
// (principal, node) and the cache is invalidated whenever a permission record
// changes.
//
//	pages, _ := tablekit.NewTree(engine, tablekit.TreeConfig{Name: "page", Label: "Page"})
//	level, _ := pages.Authorized(ctx, principal, pageID)
//	if level >= tablekit.AccessRead {
//	    // principal may read this page
//	}
//
// # Collaborators
//
// The engine talks to the outside world through narrow interfaces: AuditSink
// (failures propagate; auditing is not best-effort), EventBus
// (<table>.<operation>.before handlers may veto a write by returning an
// error) and SearchIndexer (fire-and-forget; failures are logged and
// swallowed, never surfaced to the caller).
package tablekit
