package tablekit

import (
	"context"
	"sort"
	"sync"
)

// Call carries the arguments of one method invocation together with the
// principal performing it.
type Call struct {
	Principal *Principal
	Args      map[string]any
}

// MethodFunc is a callable operation registered on a Core.
type MethodFunc func(ctx context.Context, call *Call) (any, error)

// ValidatorFunc validates the arguments of a call before the bound method
// runs. It returns one message per violation; all messages of one call are
// aggregated into a single ValidationError.
type ValidatorFunc func(ctx context.Context, call *Call) []string

// MethodConfig declares a method for registration.
type MethodConfig struct {
	ID        string
	Handler   MethodFunc
	Validator ValidatorFunc

	// Overwrite allows replacing an already-registered id.
	Overwrite bool

	// ReadOnly marks the method as satisfied by a read role.
	ReadOnly bool

	// AuthRequired overrides the core default when non-nil.
	AuthRequired *bool
}

type method struct {
	id           string
	fn           MethodFunc
	validator    ValidatorFunc
	readOnly     bool
	authRequired bool
}

// Core is the capability root every resource composes: a registry of callable
// operations keyed by a stable string id, the role sets that gate them, and
// menu metadata. It is populated at startup and treated as immutable at
// request time.
type Core struct {
	name string

	mu      sync.RWMutex
	methods map[string]*method

	// Default roles required to execute methods. The principal must hold
	// ANY of rolesWrite; rolesRead only grants read-only methods and is
	// only consulted when rolesWrite is non-empty.
	rolesWrite []string
	rolesRead  []string

	// Aggregates of every role that can possibly write to or read from
	// this core, including per-column and per-action grants. Used by
	// Authorized since a principal can be granted a single column.
	rolesAllWrite []string
	rolesAllRead  []string

	menuItems []MenuItem

	// authRequired is the default for registered methods.
	authRequired bool
}

// NewCore creates a capability root. Methods require authentication by
// default.
func NewCore(name string) *Core {
	return &Core{
		name:         name,
		methods:      make(map[string]*method),
		authRequired: true,
	}
}

// Name returns the core's name.
func (c *Core) Name() string {
	return c.name
}

// MethodRegister registers a callable operation.
//
// Fails if the id is empty, the handler is nil, or the id is already
// registered and Overwrite is false.
func (c *Core) MethodRegister(cfg MethodConfig) error {
	if cfg.ID == "" {
		return NewError(ErrInvalidDeclaration, "method id is required").WithTable(c.name)
	}
	if cfg.Handler == nil {
		return NewError(ErrInvalidDeclaration, "method handler is required").WithTable(c.name).WithColumn(cfg.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.methods[cfg.ID]; exists && !cfg.Overwrite {
		return NewError(ErrDuplicateMethod, "method id "+cfg.ID+" already registered").WithTable(c.name)
	}

	authRequired := c.authRequired
	if cfg.AuthRequired != nil {
		authRequired = *cfg.AuthRequired
	}

	c.methods[cfg.ID] = &method{
		id:           cfg.ID,
		fn:           cfg.Handler,
		validator:    cfg.Validator,
		readOnly:     cfg.ReadOnly,
		authRequired: authRequired,
	}
	return nil
}

// MethodAdd is shorthand for MethodRegister with defaults.
func (c *Core) MethodAdd(id string, fn MethodFunc, validator ValidatorFunc) error {
	return c.MethodRegister(MethodConfig{ID: id, Handler: fn, Validator: validator})
}

// MethodAuthRequired reports whether a method requires an authenticated
// principal. Unknown methods require authentication.
func (c *Core) MethodAuthRequired(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.methods[id]; ok {
		return m.authRequired
	}
	return true
}

// MethodReadOnly reports whether a method is flagged read-only.
func (c *Core) MethodReadOnly(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.methods[id]; ok {
		return m.readOnly
	}
	return false
}

// ReadOnlyMethodsAdd flags already-registered methods as read-only.
func (c *Core) ReadOnlyMethodsAdd(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if m, ok := c.methods[id]; ok {
			m.readOnly = true
		}
	}
}

// MethodList returns the registered method ids, sorted.
func (c *Core) MethodList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.methods))
	for id := range c.methods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MethodExecute validates and invokes a registered method. Returns (nil, nil)
// when the id is unknown. Validation failures aggregate into one
// ValidationError raised before the method runs.
func (c *Core) MethodExecute(ctx context.Context, principal *Principal, id string, args map[string]any) (any, error) {
	c.mu.RLock()
	m, ok := c.methods[id]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	call := &Call{Principal: principal, Args: args}

	if m.validator != nil {
		if msgs := m.validator(ctx, call); len(msgs) > 0 {
			return nil, &ValidationError{Messages: msgs}
		}
	}

	return m.fn(ctx, call)
}

// RolesWriteAdd adds roles that allow read and write access.
func (c *Core) RolesWriteAdd(roles ...string) {
	c.rolesWrite = combine(c.rolesWrite, roles)
	c.rolesAllWrite = combine(c.rolesAllWrite, roles)
}

// rolesWriteAllAdd records roles that can write through a narrower grant
// (a single column or action) without widening the table default.
func (c *Core) rolesWriteAllAdd(roles ...string) {
	c.rolesAllWrite = combine(c.rolesAllWrite, roles)
}

// RolesReadAdd adds roles that allow read-only access.
func (c *Core) RolesReadAdd(roles ...string) {
	c.rolesRead = combine(c.rolesRead, roles)
	c.rolesAllRead = combine(c.rolesAllRead, roles)
}

// rolesReadAllAdd records roles that can read through a narrower grant.
func (c *Core) rolesReadAllAdd(roles ...string) {
	c.rolesAllRead = combine(c.rolesAllRead, roles)
}

// RolesWrite returns the default write roles.
func (c *Core) RolesWrite() []string {
	return c.rolesWrite
}

// RolesRead returns the default read roles.
func (c *Core) RolesRead() []string {
	return c.rolesRead
}

// Authorized reports whether a principal may execute a method on this core:
// true when no write roles are declared (open resource), when the principal
// holds any possible write role, or when it holds any possible read role and
// the method is read-only.
func (c *Core) Authorized(principal *Principal, methodID string) bool {
	if principal.IsSystem() {
		return true
	}

	if len(c.rolesAllWrite) == 0 {
		return true
	}

	if principal.HasAnyRole(c.rolesAllWrite...) {
		return true
	}

	if len(c.rolesAllRead) > 0 &&
		principal.HasAnyRole(c.rolesAllRead...) &&
		c.MethodReadOnly(methodID) {
		return true
	}

	return false
}

// MenuItem is presentation metadata attached to a resource.
type MenuItem struct {
	Label     string
	Parent    string
	Icon      string
	Order     float64
	Navigate  string
	Table     string
	Roles     []string // principal must hold any to see the item; resolved at add time
	RolesHide []string // principal must hold none to see the item
}

// MenuItemAdd registers a menu entry. When the item declares no roles, the
// resolved visibility is the union of the core's write and read roles; call
// this after the role adds so the resolution sees them.
func (c *Core) MenuItemAdd(item MenuItem) {
	if item.Label == "" {
		item.Label = "No Label Provided"
	}
	if item.Order == 0 {
		item.Order = 500
	}
	if item.Table == "" {
		item.Table = c.name
	}
	if item.Navigate == "" {
		item.Navigate = "/" + c.name
	}
	if item.Roles == nil {
		item.Roles = combine(combine([]string{}, c.rolesWrite), c.rolesRead)
	}

	c.menuItems = append(c.menuItems, item)
}

// MenuItems returns the registered menu entries.
func (c *Core) MenuItems() []MenuItem {
	return c.menuItems
}

// combine appends the members of add that first does not already contain.
func combine(first []string, add []string) []string {
	for _, item := range add {
		found := false
		for _, existing := range first {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			first = append(first, item)
		}
	}
	return first
}
