package tablekit

import (
	"context"
	"sync"

	"github.com/fernandezvara/dbkit"
	"github.com/uptrace/bun"
)

// AccessLevel is the resolved access of one principal on one tree node.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessReadWrite
)

// String returns the storage representation of the level.
func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "read"
	case AccessReadWrite:
		return "read-write"
	default:
		return "none"
	}
}

func parseAccessLevel(s string) AccessLevel {
	switch s {
	case "read":
		return AccessRead
	case "read-write":
		return AccessReadWrite
	default:
		return AccessNone
	}
}

// maxTreeDepth bounds the ancestor walk; a chain this deep means a cycle or
// a corrupt parent column.
const maxTreeDepth = 64

// TreeConfig declares a tree resource.
type TreeConfig struct {
	Name  string
	Label string

	RolesWrite []string
	RolesRead  []string

	// ParentColumn is the self-reference column; defaults to "parent".
	ParentColumn string
}

// TreeResource is a resource whose records form a tree through a
// self-referencing parent column, with optional per-node permission records
// scoping access. Resolution walks from the node up the parent chain to the
// nearest ancestor carrying permission records; nodes without any records in
// their chain are fully open. Results are cached per (principal, node) until
// a permission record or the tree itself mutates.
type TreeResource struct {
	*Resource

	// Permissions is the companion resource holding the per-node records:
	// node x (role | user | group) x level.
	Permissions *Resource

	parentColumn string
	cache        *permissionCache
}

// NewTree declares a tree resource and its companion permission resource and
// registers both with the engine. Call before Engine.Init, then add domain
// columns to the embedded Resource as usual.
//
// Update and delete on a node require a resolved read-write level; creating
// a node under a parent requires read-write on that parent. Both are
// enforced through before-event handlers, so they also cover calls arriving
// through Engine.Execute.
func NewTree(engine *Engine, cfg TreeConfig) (*TreeResource, error) {
	if cfg.ParentColumn == "" {
		cfg.ParentColumn = "parent"
	}

	r, err := engine.NewResource(ResourceConfig{
		Name:       cfg.Name,
		Label:      cfg.Label,
		RolesWrite: cfg.RolesWrite,
		RolesRead:  cfg.RolesRead,
	})
	if err != nil {
		return nil, err
	}

	if err := r.ColumnAdd(ColumnDef{
		Name:         "name",
		FriendlyName: "Name",
		Type:         TypeString,
		Required:     true,
		Order:        10,
	}); err != nil {
		return nil, err
	}

	if err := r.ManyToOneAdd(ColumnDef{
		Name:         cfg.ParentColumn,
		FriendlyName: "Parent",
		Join:         cfg.Name,
		JoinDisplay:  "name",
		Order:        20,
	}); err != nil {
		return nil, err
	}

	perms, err := engine.NewResource(ResourceConfig{
		Name:       cfg.Name + "_permission",
		Label:      cfg.Label + " Permissions",
		RolesWrite: cfg.RolesWrite,
	})
	if err != nil {
		return nil, err
	}

	if err := perms.ManyToOneAdd(ColumnDef{
		Name:         "node",
		FriendlyName: cfg.Label,
		Join:         cfg.Name,
		JoinDisplay:  "name",
		Required:     true,
		Order:        10,
	}); err != nil {
		return nil, err
	}
	refs := []ColumnDef{
		{Name: "role", FriendlyName: "Role", Join: "role", JoinDisplay: "name", Order: 20},
		{Name: "user_id", FriendlyName: "User", Join: "user", JoinDisplay: "name", Order: 30},
		{Name: "group_id", FriendlyName: "Group", Join: "group", JoinDisplay: "name", Order: 40},
	}
	for _, def := range refs {
		if err := perms.ManyToOneAdd(def); err != nil {
			return nil, err
		}
	}
	if err := perms.ColumnAdd(ColumnDef{
		Name:         "level",
		FriendlyName: "Level",
		Type:         TypeSelect,
		Options:      []string{"read", "read-write"},
		Required:     true,
		Default:      "read",
		Order:        50,
	}); err != nil {
		return nil, err
	}

	t := &TreeResource{
		Resource:     r,
		Permissions:  perms,
		parentColumn: cfg.ParentColumn,
		cache:        newPermissionCache(),
	}

	if err := t.wireInvalidation(engine); err != nil {
		return nil, err
	}
	if err := t.wireGates(engine); err != nil {
		return nil, err
	}

	if err := r.MethodRegister(MethodConfig{ID: "authorizedGet", Handler: t.methodAuthorizedGet, ReadOnly: true}); err != nil {
		return nil, err
	}
	r.ReadOnlyMethodsAdd("authorizedGet")

	return t, nil
}

// wireInvalidation resets the cache whenever a permission record mutates, or
// the tree itself does: a moved or deleted node re-scopes every descendant,
// so per-entry invalidation would be unsound.
func (t *TreeResource) wireInvalidation(engine *Engine) error {
	reset := func(_ context.Context, _ *Event) error {
		t.cache.Reset()
		return nil
	}
	if err := engine.bus.Subscribe(t.Permissions.table+".*.after", reset); err != nil {
		return err
	}
	if err := engine.bus.Subscribe(t.table+".recordUpdate.after", reset); err != nil {
		return err
	}
	return engine.bus.Subscribe(t.table+".recordDelete.after", reset)
}

// wireGates enforces node-level access on mutations through before-event
// handlers: update and delete need read-write on the node, create needs
// read-write on the declared parent.
func (t *TreeResource) wireGates(engine *Engine) error {
	gate := func(ctx context.Context, event *Event) error {
		if event.Principal.bypassesAccess() {
			return nil
		}

		nodeID := event.RecordID
		if event.Operation == "recordCreate" {
			parent, err := argID(event.Record, t.parentColumn)
			if err != nil {
				return nil // root node, table-level roles already checked
			}
			nodeID = parent
		}

		level, err := t.Authorized(ctx, event.Principal, nodeID)
		if err != nil {
			return err
		}
		if level < AccessReadWrite {
			return NewError(ErrUnauthorized, "no write access to this node").
				WithTable(t.table).WithRecord(nodeID).WithPrincipal(event.Principal.Name)
		}
		return nil
	}

	for _, op := range []string{"recordCreate", "recordUpdate", "recordDelete"} {
		if err := engine.bus.Subscribe(eventTopic(t.table, op, "before"), gate); err != nil {
			return err
		}
	}
	return nil
}

// permissionRecord is one row of the companion resource as the resolver
// reads it.
type permissionRecord struct {
	Role  *int64 `bun:"role"`
	User  *int64 `bun:"user_id"`
	Group *int64 `bun:"group_id"`
	Level string `bun:"level"`
}

// Authorized resolves the principal's access to a node: cache hit, else an
// ancestor walk from the node up the parent chain to the first node carrying
// permission records. A chain without records anywhere resolves to
// read-write. The result is cached per (principal, node).
func (t *TreeResource) Authorized(ctx context.Context, principal *Principal, nodeID int64) (AccessLevel, error) {
	if principal.bypassesAccess() {
		return AccessReadWrite, nil
	}

	if level, ok := t.cache.Get(principal.ID, nodeID); ok {
		return level, nil
	}

	level, err := t.resolve(ctx, principal, nodeID)
	if err != nil {
		return AccessNone, err
	}

	t.cache.Set(principal.ID, nodeID, level)
	return level, nil
}

func (t *TreeResource) resolve(ctx context.Context, principal *Principal, nodeID int64) (AccessLevel, error) {
	current := nodeID
	for depth := 0; depth < maxTreeDepth; depth++ {
		records, err := t.permissionRecords(ctx, current)
		if err != nil {
			return AccessNone, err
		}
		if len(records) > 0 {
			return t.evaluate(ctx, principal, records)
		}

		parent, err := t.parentOf(ctx, current)
		if err != nil {
			return AccessNone, err
		}
		if parent == 0 {
			// No permission records anywhere in the chain: open node.
			return AccessReadWrite, nil
		}
		current = parent
	}

	return AccessNone, NewError(ErrHierarchyDepth, "ancestor chain exceeds the depth bound").
		WithTable(t.table).WithRecord(nodeID)
}

// evaluate applies the permission records of the stopping ancestor: any
// matching record grants its level, read-write winning over read; no match
// denies.
func (t *TreeResource) evaluate(ctx context.Context, principal *Principal, records []permissionRecord) (AccessLevel, error) {
	roleIDs, err := t.engine.roles.IDsForNames(ctx, principal.Roles)
	if err != nil {
		return AccessNone, err
	}
	roleSet := make(map[int64]bool, len(roleIDs))
	for _, id := range roleIDs {
		roleSet[id] = true
	}

	best := AccessNone
	for _, rec := range records {
		match := false
		switch {
		case rec.Role != nil && roleSet[*rec.Role]:
			match = true
		case rec.User != nil && *rec.User == principal.ID:
			match = true
		case rec.Group != nil && principal.InGroup(*rec.Group):
			match = true
		}
		if !match {
			continue
		}

		if level := parseAccessLevel(rec.Level); level > best {
			best = level
		}
		if best == AccessReadWrite {
			break
		}
	}

	return best, nil
}

// permissionRecords loads the records attached to one node.
func (t *TreeResource) permissionRecords(ctx context.Context, nodeID int64) ([]permissionRecord, error) {
	var records []permissionRecord
	err := t.db().NewSelect().
		ColumnExpr("role, user_id, group_id, level").
		TableExpr("?", bun.Ident(t.Permissions.table)).
		Where("node = ?", nodeID).
		Scan(ctx, &records)
	if err := dbkit.WithErr1(err, "permissionRecords").Err(); err != nil {
		return nil, NewError(ErrDatabaseError, "loading permission records: "+err.Error()).
			WithTable(t.Permissions.table).WithRecord(nodeID)
	}
	return records, nil
}

// parentOf returns the parent node id, or zero for a root node.
func (t *TreeResource) parentOf(ctx context.Context, nodeID int64) (int64, error) {
	var parent *int64
	err := t.db().NewSelect().
		ColumnExpr("?", bun.Ident(t.parentColumn)).
		TableExpr("?", bun.Ident(t.table)).
		Where("id = ?", nodeID).
		Scan(ctx, &parent)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return 0, nil
		}
		return 0, NewError(ErrDatabaseError, "loading parent node: "+err.Error()).
			WithTable(t.table).WithRecord(nodeID)
	}
	if parent == nil {
		return 0, nil
	}
	return *parent, nil
}

func (t *TreeResource) methodAuthorizedGet(ctx context.Context, call *Call) (any, error) {
	nodeID, err := argID(call.Args, "recordId")
	if err != nil {
		return nil, err
	}
	level, err := t.Authorized(ctx, call.Principal, nodeID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"level": level.String()}, nil
}

// permissionCache maps (principal, node) to a resolved level. It is safe for
// concurrent use; invalidation is a full reset.
type permissionCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]AccessLevel
}

type cacheKey struct {
	principal int64
	node      int64
}

func newPermissionCache() *permissionCache {
	return &permissionCache{entries: make(map[cacheKey]AccessLevel)}
}

func (c *permissionCache) Get(principal, node int64) (AccessLevel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, ok := c.entries[cacheKey{principal, node}]
	return level, ok
}

func (c *permissionCache) Set(principal, node int64, level AccessLevel) {
	c.mu.Lock()
	c.entries[cacheKey{principal, node}] = level
	c.mu.Unlock()
}

func (c *permissionCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]AccessLevel)
	c.mu.Unlock()
}

// Len reports the number of cached resolutions.
func (c *permissionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
