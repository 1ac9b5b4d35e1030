package tablekit

import (
	"context"
	"sync"

	"github.com/fernandezvara/dbkit"
)

// Role names seeded on first creation of the role table. Authenticated is
// implied for every logged-in principal; Admin gates the built-in resources.
const (
	RoleAuthenticated = "Authenticated"
	RoleAdmin         = "Admin"
)

// newRoleResource declares the built-in role catalog, seeded with the two
// well-known roles.
func newRoleResource() (*Resource, error) {
	r, err := NewResource(ResourceConfig{
		Name:       "role",
		Label:      "Roles",
		RolesWrite: []string{RoleAdmin},
		RolesRead:  []string{RoleAuthenticated},
	})
	if err != nil {
		return nil, err
	}

	if err := r.ColumnAdd(ColumnDef{
		Name:         "name",
		FriendlyName: "Name",
		Type:         TypeString,
		Required:     true,
		Unique:       true,
		Order:        10,
	}); err != nil {
		return nil, err
	}

	r.SeedAdd(map[string]any{"name": RoleAuthenticated})
	r.SeedAdd(map[string]any{"name": RoleAdmin})

	return r, nil
}

// newUserResource declares the built-in user resource with its role
// junction. The password column is secret typed: hashed at rest, excluded
// from reads, verified only through CompareSecret.
func newUserResource() (*Resource, error) {
	r, err := NewResource(ResourceConfig{
		Name:       "user",
		Label:      "Users",
		RolesWrite: []string{RoleAdmin},
	})
	if err != nil {
		return nil, err
	}

	cols := []ColumnDef{
		{Name: "name", FriendlyName: "Name", Type: TypeString, Required: true, Order: 10},
		{Name: "email", FriendlyName: "Email", Type: TypeEmail, Required: true, Unique: true, Order: 20},
		{Name: "password", FriendlyName: "Password", Type: TypeSecret, HiddenList: true, Order: 30},
		{Name: "active", FriendlyName: "Active", Type: TypeBoolean, Default: true, Order: 40},
	}
	for _, def := range cols {
		if err := r.ColumnAdd(def); err != nil {
			return nil, err
		}
	}

	if err := r.ManyToManyAdd(JunctionDecl{
		Name:     "user_role",
		Table2:   "role",
		Display1: "name",
		Display2: "name",
	}); err != nil {
		return nil, err
	}

	return r, nil
}

// newGroupResource declares the built-in group resource with its role
// junction.
func newGroupResource() (*Resource, error) {
	r, err := NewResource(ResourceConfig{
		Name:       "group",
		Label:      "Groups",
		RolesWrite: []string{RoleAdmin},
	})
	if err != nil {
		return nil, err
	}

	if err := r.ColumnAdd(ColumnDef{
		Name:         "name",
		FriendlyName: "Name",
		Type:         TypeString,
		Required:     true,
		Unique:       true,
		Order:        10,
	}); err != nil {
		return nil, err
	}

	if err := r.ManyToManyAdd(JunctionDecl{
		Name:     "group_role",
		Table2:   "role",
		Display1: "name",
		Display2: "name",
	}); err != nil {
		return nil, err
	}

	return r, nil
}

// RoleDirectory resolves role names to their row ids through a process-local
// cache. The engine resets the cache whenever a role record mutates.
type RoleDirectory struct {
	db Database

	mu     sync.RWMutex
	byName map[string]int64
}

func newRoleDirectory(db Database) *RoleDirectory {
	return &RoleDirectory{
		db:     db,
		byName: make(map[string]int64),
	}
}

// NameToID resolves one role name. Unknown names resolve to zero without an
// error; a zero id never matches a permission record.
func (d *RoleDirectory) NameToID(ctx context.Context, name string) (int64, error) {
	d.mu.RLock()
	id, ok := d.byName[name]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	err := d.db.NewRaw("SELECT id FROM role WHERE name = ?", name).Scan(ctx, &id)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return 0, nil
		}
		return 0, dbkit.WithErr1(err, "NameToID").Err()
	}

	d.mu.Lock()
	d.byName[name] = id
	d.mu.Unlock()

	return id, nil
}

// IDsForNames resolves a set of role names, dropping the unknown ones.
func (d *RoleDirectory) IDsForNames(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := d.NameToID(ctx, name)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Reset drops every cached resolution.
func (d *RoleDirectory) Reset() {
	d.mu.Lock()
	d.byName = make(map[string]int64)
	d.mu.Unlock()
}
