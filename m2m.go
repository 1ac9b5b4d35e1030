package tablekit

// NewJunction synthesizes the linking resource of a many-to-many declaration:
// two required, indexed integer foreign-key columns id1 and id2, each joined
// to its referenced resource's display column, and no domain columns. The
// result is a plain resource; CRUD, access control, audit and events behave
// exactly as on any other resource.
//
// Engine.Init expands declared JunctionDecls through this constructor,
// carrying the declaring resource's role sets; it can also be called directly
// for a standalone junction.
func NewJunction(decl JunctionDecl, rolesWrite, rolesRead []string) (*Resource, error) {
	if decl.Table1 == "" || decl.Table2 == "" {
		return nil, NewError(ErrInvalidDeclaration, "junction needs both referenced resources")
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

	r, err := NewResource(ResourceConfig{
		Name:       decl.Name,
		Label:      decl.Table1 + " / " + decl.Table2,
		RolesWrite: rolesWrite,
		RolesRead:  rolesRead,
	})
	if err != nil {
		return nil, err
	}

	if err := r.ManyToOneAdd(ColumnDef{
		Name:         "id1",
		FriendlyName: decl.Table1,
		Type:         TypeInteger,
		Required:     true,
		Join:         decl.Table1,
		JoinDisplay:  decl.Display1,
	}); err != nil {
		return nil, err
	}

	if err := r.ManyToOneAdd(ColumnDef{
		Name:         "id2",
		FriendlyName: decl.Table2,
		Type:         TypeInteger,
		Required:     true,
		Join:         decl.Table2,
		JoinDisplay:  decl.Display2,
	}); err != nil {
		return nil, err
	}

	return r, nil
}
