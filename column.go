package tablekit

import (
	"context"
	"fmt"
	"regexp"
)

// DefaultFunc computes a column default from the request context.
type DefaultFunc func(ctx context.Context, principal *Principal) (any, error)

// ValidateFunc checks one value. It returns a human-readable message, or
// empty when the value is valid.
type ValidateFunc func(ctx context.Context, principal *Principal, value any) string

// HookFunc transforms a column value on create or update.
type HookFunc func(value any) any

// ColumnDef declares one field of a resource.
type ColumnDef struct {
	Name         string
	FriendlyName string
	Type         ColumnType // defaults to TypeString
	FieldType    string     // presentation type, defaults to the column type
	HelpText     string

	Index  bool
	Unique bool

	// Order weights presentation; lower sorts first. Defaults to 10000
	// (the synthetic id column uses 5000).
	Order int

	PrimaryKey bool
	ReadOnly   bool
	Required   bool

	Hidden       bool
	HiddenList   bool
	HiddenCreate bool
	HiddenUpdate bool

	// Default is the static default value; DefaultFunc computes one from
	// the request and wins when both are set.
	Default     any
	DefaultFunc DefaultFunc

	// Lifecycle hooks. OnCreateOrUpdate is mutually exclusive with
	// OnCreate/OnUpdate.
	OnCreate         HookFunc
	OnUpdate         HookFunc
	OnCreateOrUpdate HookFunc

	// Options constrains TypeSelect values.
	Options []string

	// Role requirements. nil inherits the owning resource's defaults; an
	// explicit empty slice opens the column to everyone.
	RolesRead   []string
	RolesWrite  []string
	RolesCreate []string

	Validations []ValidateFunc

	// Reference fields, set through ManyToOneAdd.
	Join             string // referenced table
	JoinDisplay      string // display column on the referenced table
	JoinFriendlyName string
}

// Column is a resolved, immutable field of a resource.
type Column struct {
	Name         string
	FriendlyName string
	Type         ColumnType
	FieldType    string
	PhysicalType string
	HelpText     string

	Index      bool
	Unique     bool
	Order      int
	PrimaryKey bool
	ReadOnly   bool
	Required   bool

	Hidden       bool
	HiddenList   bool
	HiddenCreate bool
	HiddenUpdate bool

	Options []string

	Table string // owning table

	Join             string
	JoinAlias        string
	JoinDisplay      string
	JoinDisplayAlias string
	JoinFriendlyName string

	rolesRead   []string
	rolesWrite  []string
	rolesCreate []string

	defaultValue any
	defaultFunc  DefaultFunc
	onCreate     HookFunc
	onUpdate     HookFunc
	validations  []ValidateFunc
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// newColumn resolves a declaration against its owning resource. Role sets
// left nil inherit the resource defaults; explicit per-column roles widen the
// resource's aggregate role sets so Authorized can see column-only grants.
func newColumn(r *Resource, def ColumnDef) (*Column, error) {
	if def.Name == "" || !identPattern.MatchString(def.Name) {
		return nil, NewError(ErrInvalidDeclaration, fmt.Sprintf("invalid column name %q", def.Name)).WithTable(r.table)
	}

	if def.Type == "" {
		def.Type = TypeString
	}

	physical, err := def.Type.PhysicalType()
	if err != nil {
		return nil, err
	}

	if def.OnCreateOrUpdate != nil && (def.OnCreate != nil || def.OnUpdate != nil) {
		return nil, NewError(ErrConflictingHooks,
			"column "+def.Name+" declares OnCreateOrUpdate together with OnCreate or OnUpdate").
			WithTable(r.table).WithColumn(def.Name)
	}
	onCreate, onUpdate := def.OnCreate, def.OnUpdate
	if def.OnCreateOrUpdate != nil {
		onCreate = def.OnCreateOrUpdate
		onUpdate = def.OnCreateOrUpdate
	}

	rolesWrite := def.RolesWrite
	if rolesWrite == nil {
		rolesWrite = r.RolesWrite()
	} else {
		r.rolesWriteAllAdd(rolesWrite...)
	}

	rolesRead := def.RolesRead
	if rolesRead == nil {
		rolesRead = r.RolesRead()
	} else {
		r.rolesReadAllAdd(rolesRead...)
	}

	rolesCreate := def.RolesCreate
	if rolesCreate == nil {
		rolesCreate = r.RolesWrite()
	} else {
		r.rolesWriteAllAdd(rolesCreate...)
	}

	if def.FriendlyName == "" {
		def.FriendlyName = def.Name
	}
	if def.FieldType == "" {
		def.FieldType = string(def.Type)
	}
	if def.Order == 0 {
		def.Order = 10000
	}

	col := &Column{
		Name:             def.Name,
		FriendlyName:     def.FriendlyName,
		Type:             def.Type,
		FieldType:        def.FieldType,
		PhysicalType:     physical,
		HelpText:         def.HelpText,
		Index:            def.Index,
		Unique:           def.Unique,
		Order:            def.Order,
		PrimaryKey:       def.PrimaryKey,
		ReadOnly:         def.ReadOnly,
		Required:         def.Required,
		Hidden:           def.Hidden,
		HiddenList:       def.HiddenList,
		HiddenCreate:     def.HiddenCreate,
		HiddenUpdate:     def.HiddenUpdate,
		Options:          def.Options,
		Table:            r.table,
		Join:             def.Join,
		JoinDisplay:      def.JoinDisplay,
		JoinFriendlyName: def.JoinFriendlyName,
		rolesRead:        rolesRead,
		rolesWrite:       rolesWrite,
		rolesCreate:      rolesCreate,
		defaultValue:     def.Default,
		defaultFunc:      def.DefaultFunc,
		onCreate:         onCreate,
		onUpdate:         onUpdate,
		validations:      def.Validations,
	}

	if col.Join != "" {
		col.JoinAlias = col.Name + "_join"
		col.JoinDisplayAlias = col.Name + "_" + col.JoinDisplay
	}

	return col, nil
}

// HasReadAccess reports whether the principal may read this column: granted
// when no write roles are declared, or the principal holds any write role, or
// any read role. Trusted internal callers always pass.
func (c *Column) HasReadAccess(principal *Principal) bool {
	if principal.bypassesAccess() {
		return true
	}
	if len(c.rolesWrite) == 0 {
		return true
	}
	if principal.HasAnyRole(c.rolesWrite...) {
		return true
	}
	return principal.HasAnyRole(c.rolesRead...)
}

// HasWriteAccess reports whether the principal may write this column.
func (c *Column) HasWriteAccess(principal *Principal) bool {
	if principal.bypassesAccess() {
		return true
	}
	if len(c.rolesWrite) == 0 {
		return true
	}
	return principal.HasAnyRole(c.rolesWrite...)
}

// HasCreateAccess reports whether the principal may supply this column on
// create. Writers can always create; create-specific roles widen that.
func (c *Column) HasCreateAccess(principal *Principal) bool {
	if principal.bypassesAccess() {
		return true
	}
	if len(c.rolesWrite) == 0 {
		return true
	}
	if principal.HasAnyRole(c.rolesWrite...) {
		return true
	}
	if len(c.rolesCreate) > 0 {
		return principal.HasAnyRole(c.rolesCreate...)
	}
	return false
}

// ColumnAccess is the effective access of one principal to one column.
type ColumnAccess struct {
	Read   bool
	Write  bool
	Create bool
}

// Access resolves the principal's effective access to this column.
func (c *Column) Access(principal *Principal) ColumnAccess {
	return ColumnAccess{
		Read:   c.HasReadAccess(principal),
		Write:  c.HasWriteAccess(principal),
		Create: c.HasCreateAccess(principal),
	}
}

// DefaultValue resolves the column default: the computed default when
// declared, the static default otherwise, nil when neither.
func (c *Column) DefaultValue(ctx context.Context, principal *Principal) (any, error) {
	if c.defaultFunc != nil {
		return c.defaultFunc(ctx, principal)
	}
	return c.defaultValue, nil
}

// Validate runs the column's validation chain against a value and returns
// every violation. An empty result means valid.
func (c *Column) Validate(ctx context.Context, principal *Principal, value any) []string {
	var errs []string

	if c.Required && isEmptyValue(value) {
		errs = append(errs, fmt.Sprintf("Field %s is required.", c.FriendlyName))
	}

	if msg := validateTypedValue(c.Type, c.FriendlyName, value); msg != "" {
		errs = append(errs, msg)
	}

	if c.Type == TypeSelect && len(c.Options) > 0 && !isEmptyValue(value) {
		if s, ok := value.(string); ok {
			found := false
			for _, opt := range c.Options {
				if opt == s {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, fmt.Sprintf("Field %s must be one of the declared options.", c.FriendlyName))
			}
		}
	}

	for _, validate := range c.validations {
		if msg := validate(ctx, principal, value); msg != "" {
			errs = append(errs, msg)
		}
	}

	return errs
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
