package tablekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResource(t *testing.T, cfg ResourceConfig) *Resource {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "widget"
	}
	r, err := NewResource(cfg)
	require.NoError(t, err)
	return r
}

func TestColumnAdd(t *testing.T) {
	t.Run("duplicate name rejected", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		require.NoError(t, r.ColumnAdd(ColumnDef{Name: "title"}))
		err := r.ColumnAdd(ColumnDef{Name: "title"})
		assert.ErrorIs(t, err, ErrDuplicateColumn)
	})

	t.Run("id is reserved", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		err := r.ColumnAdd(ColumnDef{Name: "id"})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("invalid names rejected", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		for _, name := range []string{"", "Title", "1st", "with space", "semi;colon"} {
			err := r.ColumnAdd(ColumnDef{Name: name})
			assert.ErrorIs(t, err, ErrInvalidDeclaration, "name %q", name)
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		err := r.ColumnAdd(ColumnDef{Name: "blob", Type: ColumnType("jsonb")})
		assert.ErrorIs(t, err, ErrInvalidColumnType)
	})

	t.Run("combined and separate hooks conflict", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		hook := func(v any) any { return v }
		err := r.ColumnAdd(ColumnDef{Name: "slug", OnCreateOrUpdate: hook, OnCreate: hook})
		assert.ErrorIs(t, err, ErrConflictingHooks)
	})

	t.Run("columns sort by order weight", func(t *testing.T) {
		r := testResource(t, ResourceConfig{})
		require.NoError(t, r.ColumnAdd(ColumnDef{Name: "zeta", Order: 20}))
		require.NoError(t, r.ColumnAdd(ColumnDef{Name: "alpha", Order: 10}))
		require.NoError(t, r.ColumnAdd(ColumnDef{Name: "tail"})) // defaults to the end

		cols := r.Columns()
		require.Len(t, cols, 3)
		assert.Equal(t, "alpha", cols[0].Name)
		assert.Equal(t, "zeta", cols[1].Name)
		assert.Equal(t, "tail", cols[2].Name)
	})
}

func TestColumnAccess(t *testing.T) {
	editor := &Principal{ID: 1, Name: "e", Roles: []string{"Editor"}}
	viewer := &Principal{ID: 2, Name: "v", Roles: []string{"Viewer"}}
	intern := &Principal{ID: 3, Name: "i", Roles: []string{"Intern"}}
	guest := &Principal{ID: 4, Name: "g", Roles: []string{"Guest"}}

	r := testResource(t, ResourceConfig{
		RolesWrite: []string{"Editor"},
		RolesRead:  []string{"Viewer"},
	})
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "title"}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "open_note", RolesWrite: []string{}}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "draft", RolesCreate: []string{"Intern"}}))

	t.Run("inherited roles", func(t *testing.T) {
		col := r.Column("title")
		assert.True(t, col.HasWriteAccess(editor))
		assert.True(t, col.HasReadAccess(viewer))
		assert.False(t, col.HasWriteAccess(viewer))
		assert.False(t, col.HasReadAccess(guest))
	})

	t.Run("empty write roles means open", func(t *testing.T) {
		col := r.Column("open_note")
		assert.True(t, col.HasReadAccess(guest))
		assert.True(t, col.HasWriteAccess(guest))
		assert.True(t, col.HasCreateAccess(guest))
	})

	t.Run("create roles widen create only", func(t *testing.T) {
		col := r.Column("draft")
		assert.True(t, col.HasCreateAccess(intern))
		assert.False(t, col.HasWriteAccess(intern))
		assert.True(t, col.HasCreateAccess(editor))
	})

	t.Run("system and internal callers bypass", func(t *testing.T) {
		col := r.Column("title")
		assert.True(t, col.HasWriteAccess(SystemPrincipal()))
		assert.True(t, col.HasWriteAccess(nil))
	})

	t.Run("column grant widens resource authorization", func(t *testing.T) {
		assert.True(t, r.Authorized(intern, "recordCreate"))
		assert.False(t, r.Authorized(guest, "recordCreate"))
	})
}

func TestColumnDefaultValue(t *testing.T) {
	ctx := context.Background()
	r := testResource(t, ResourceConfig{})
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "status", Default: "new"}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "owner", Type: TypeInteger,
		DefaultFunc: func(_ context.Context, p *Principal) (any, error) {
			if p == nil {
				return int64(0), nil
			}
			return p.ID, nil
		}}))

	static, err := r.Column("status").DefaultValue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", static)

	computed, err := r.Column("owner").DefaultValue(ctx, &Principal{ID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(42), computed)
}

func TestColumnValidate(t *testing.T) {
	ctx := context.Background()
	r := testResource(t, ResourceConfig{})
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "title", FriendlyName: "Title", Required: true}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "email", FriendlyName: "Email", Type: TypeEmail}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "priority", FriendlyName: "Priority", Type: TypeSelect,
		Options: []string{"low", "high"}}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "amount", FriendlyName: "Amount", Type: TypeInteger,
		Validations: []ValidateFunc{func(_ context.Context, _ *Principal, value any) string {
			if v, ok := value.(int); ok && v < 0 {
				return "Field Amount must not be negative."
			}
			return ""
		}}}))

	t.Run("required", func(t *testing.T) {
		errs := r.Column("title").Validate(ctx, nil, "")
		require.Len(t, errs, 1)
		assert.Equal(t, "Field Title is required.", errs[0])
	})

	t.Run("format", func(t *testing.T) {
		assert.NotEmpty(t, r.Column("email").Validate(ctx, nil, "nope"))
		assert.Empty(t, r.Column("email").Validate(ctx, nil, "ok@example.com"))
	})

	t.Run("select options", func(t *testing.T) {
		assert.NotEmpty(t, r.Column("priority").Validate(ctx, nil, "medium"))
		assert.Empty(t, r.Column("priority").Validate(ctx, nil, "low"))
	})

	t.Run("declared validators chain", func(t *testing.T) {
		assert.NotEmpty(t, r.Column("amount").Validate(ctx, nil, -5))
		assert.Empty(t, r.Column("amount").Validate(ctx, nil, 5))
	})
}
