package tablekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	t.Run("name is required and validated", func(t *testing.T) {
		_, err := NewResource(ResourceConfig{})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)

		_, err = NewResource(ResourceConfig{Name: "Not Valid"})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("label defaults to the name", func(t *testing.T) {
		r, err := NewResource(ResourceConfig{Name: "task"})
		require.NoError(t, err)
		assert.Equal(t, "task", r.Label())
	})

	t.Run("read methods are flagged read-only", func(t *testing.T) {
		r, err := NewResource(ResourceConfig{Name: "task"})
		require.NoError(t, err)

		for _, id := range []string{"recordGet", "rowsGet", "schemaGet", "actionsGet", "childrenGet"} {
			assert.True(t, r.MethodReadOnly(id), id)
		}
		for _, id := range []string{"recordCreate", "recordUpdate", "recordDelete"} {
			assert.False(t, r.MethodReadOnly(id), id)
		}
	})
}

func TestManyToOneAdd(t *testing.T) {
	t.Run("declares an indexed integer reference", func(t *testing.T) {
		r := testResource(t, ResourceConfig{Name: "task"})
		require.NoError(t, r.ManyToOneAdd(ColumnDef{Name: "project", Join: "project"}))

		col := r.Column("project")
		require.NotNil(t, col)
		assert.Equal(t, TypeInteger, col.Type)
		assert.True(t, col.Index)
		assert.Equal(t, "project", col.Join)
		assert.Equal(t, "name", col.JoinDisplay)
		assert.Equal(t, "project_join", col.JoinAlias)
		assert.Equal(t, "project_name", col.JoinDisplayAlias)

		parents := r.Parents()
		require.Len(t, parents, 1)
		assert.Equal(t, ParentLink{Column: "project", Table: "project", Display: "name", Label: "project"}, parents[0])
	})

	t.Run("requires a referenced resource", func(t *testing.T) {
		r := testResource(t, ResourceConfig{Name: "task"})
		err := r.ManyToOneAdd(ColumnDef{Name: "project"})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})
}

func TestManyToManyAdd(t *testing.T) {
	r := testResource(t, ResourceConfig{Name: "project"})
	require.NoError(t, r.ManyToManyAdd(JunctionDecl{Table2: "member"}))

	require.Len(t, r.junctions, 1)
	decl := r.junctions[0]
	assert.Equal(t, "project", decl.Table1)
	assert.Equal(t, "project_member", decl.Name)
	assert.Equal(t, "name", decl.Display1)
	assert.Equal(t, "name", decl.Display2)
}

func TestChildAdd(t *testing.T) {
	r := testResource(t, ResourceConfig{Name: "project"})
	r.ChildAdd(ChildLink{Table: "task", Label: "Tasks", Column: "project"})
	r.ChildAdd(ChildLink{Table: "task", Label: "Tasks", Column: "project"}) // dedupe

	assert.Len(t, r.children, 1)
}

func TestQueryModifierAdd(t *testing.T) {
	r := testResource(t, ResourceConfig{Name: "task"})
	fn := QueryModifierFunc(nil)

	assert.Error(t, r.QueryModifierAdd("", fn))

	require.Error(t, r.QueryModifierAdd("mine", nil))
}

func TestSchemaGet(t *testing.T) {
	ctx := context.Background()
	r := testResource(t, ResourceConfig{
		Name:       "task",
		Label:      "Tasks",
		RolesWrite: []string{"Editor"},
		RolesRead:  []string{"Viewer"},
	})
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "title", Required: true, Order: 10}))
	require.NoError(t, r.ColumnAdd(ColumnDef{Name: "status", Type: TypeSelect,
		Options: []string{"open", "closed"}, Default: "open", Order: 20}))

	t.Run("editor gets full access", func(t *testing.T) {
		editor := &Principal{ID: 1, Roles: []string{"Editor"}}
		schema, err := r.SchemaGet(ctx, editor)
		require.NoError(t, err)

		assert.Equal(t, "task", schema.Name)
		assert.False(t, schema.ReadOnly)
		assert.False(t, schema.CreateDisabled)
		require.Len(t, schema.Columns, 2)
		assert.True(t, schema.Columns[0].Access.Write)
		assert.Equal(t, "open", schema.Columns[1].Default)
	})

	t.Run("viewer sees a read-only resource", func(t *testing.T) {
		viewer := &Principal{ID: 2, Roles: []string{"Viewer"}}
		schema, err := r.SchemaGet(ctx, viewer)
		require.NoError(t, err)

		assert.True(t, schema.ReadOnly)
		assert.True(t, schema.CreateDisabled)
		require.Len(t, schema.Columns, 2)
		assert.True(t, schema.Columns[0].Access.Read)
		assert.False(t, schema.Columns[0].Access.Write)
	})
}

func TestResourceHookRegistration(t *testing.T) {
	r := testResource(t, ResourceConfig{Name: "task"})

	r.OnCreateAdd(func(_ context.Context, _ *Principal, data map[string]any) (map[string]any, error) {
		return data, nil
	})
	r.OnUpdateAdd(func(_ context.Context, _ *Principal, data map[string]any) (map[string]any, error) {
		return data, nil
	})
	r.SeedAdd(map[string]any{"title": "first"})

	assert.Len(t, r.createHooks, 1)
	assert.Len(t, r.updateHooks, 1)
	assert.Len(t, r.seeds, 1)
}
