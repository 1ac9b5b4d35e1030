package tablekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopMethod(_ context.Context, _ *Call) (any, error) {
	return "ok", nil
}

func TestMethodRegister(t *testing.T) {
	t.Run("rejects empty id", func(t *testing.T) {
		c := NewCore("widget")
		err := c.MethodRegister(MethodConfig{Handler: noopMethod})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("rejects nil handler", func(t *testing.T) {
		c := NewCore("widget")
		err := c.MethodRegister(MethodConfig{ID: "doThing"})
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		c := NewCore("widget")
		require.NoError(t, c.MethodAdd("doThing", noopMethod, nil))
		err := c.MethodAdd("doThing", noopMethod, nil)
		assert.ErrorIs(t, err, ErrDuplicateMethod)
	})

	t.Run("overwrite flag replaces", func(t *testing.T) {
		c := NewCore("widget")
		require.NoError(t, c.MethodAdd("doThing", noopMethod, nil))

		replaced := false
		err := c.MethodRegister(MethodConfig{
			ID: "doThing",
			Handler: func(_ context.Context, _ *Call) (any, error) {
				replaced = true
				return nil, nil
			},
			Overwrite: true,
		})
		require.NoError(t, err)

		_, err = c.MethodExecute(context.Background(), nil, "doThing", nil)
		require.NoError(t, err)
		assert.True(t, replaced)
	})

	t.Run("auth required defaults and overrides", func(t *testing.T) {
		c := NewCore("widget")
		open := false
		require.NoError(t, c.MethodAdd("secure", noopMethod, nil))
		require.NoError(t, c.MethodRegister(MethodConfig{ID: "public", Handler: noopMethod, AuthRequired: &open}))

		assert.True(t, c.MethodAuthRequired("secure"))
		assert.False(t, c.MethodAuthRequired("public"))
		assert.True(t, c.MethodAuthRequired("unknown"))
	})
}

func TestMethodExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id returns nil without error", func(t *testing.T) {
		c := NewCore("widget")
		out, err := c.MethodExecute(ctx, nil, "missing", nil)
		assert.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("aggregates validator messages", func(t *testing.T) {
		c := NewCore("widget")
		require.NoError(t, c.MethodRegister(MethodConfig{
			ID:      "doThing",
			Handler: noopMethod,
			Validator: func(_ context.Context, _ *Call) []string {
				return []string{"first problem", "second problem"}
			},
		}))

		_, err := c.MethodExecute(ctx, nil, "doThing", nil)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "first problem")
		assert.Contains(t, err.Error(), "second problem")
	})

	t.Run("passes principal and args", func(t *testing.T) {
		c := NewCore("widget")
		p := &Principal{ID: 7, Name: "pat"}
		require.NoError(t, c.MethodAdd("echo", func(_ context.Context, call *Call) (any, error) {
			assert.Equal(t, p, call.Principal)
			return call.Args["value"], nil
		}, nil))

		out, err := c.MethodExecute(ctx, p, "echo", map[string]any{"value": 42})
		require.NoError(t, err)
		assert.Equal(t, 42, out)
	})
}

func TestAuthorized(t *testing.T) {
	writer := &Principal{ID: 1, Name: "w", Roles: []string{"Editor"}}
	reader := &Principal{ID: 2, Name: "r", Roles: []string{"Viewer"}}
	nobody := &Principal{ID: 3, Name: "n", Roles: []string{"Guest"}}

	t.Run("open core allows everyone", func(t *testing.T) {
		c := NewCore("widget")
		require.NoError(t, c.MethodAdd("doThing", noopMethod, nil))
		assert.True(t, c.Authorized(nobody, "doThing"))
	})

	t.Run("write role grants all methods", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		c.RolesReadAdd("Viewer")
		require.NoError(t, c.MethodAdd("doThing", noopMethod, nil))

		assert.True(t, c.Authorized(writer, "doThing"))
		assert.False(t, c.Authorized(nobody, "doThing"))
	})

	t.Run("read role grants only read-only methods", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		c.RolesReadAdd("Viewer")
		require.NoError(t, c.MethodAdd("mutate", noopMethod, nil))
		require.NoError(t, c.MethodAdd("inspect", noopMethod, nil))
		c.ReadOnlyMethodsAdd("inspect")

		assert.True(t, c.Authorized(reader, "inspect"))
		assert.False(t, c.Authorized(reader, "mutate"))
	})

	t.Run("system principal bypasses", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		assert.True(t, c.Authorized(SystemPrincipal(), "anything"))
	})

	t.Run("column-only grant widens authorization", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		c.rolesWriteAllAdd("Support")
		support := &Principal{ID: 4, Name: "s", Roles: []string{"Support"}}

		assert.True(t, c.Authorized(support, "doThing"))
		// The table default stays narrow.
		assert.Equal(t, []string{"Editor"}, c.RolesWrite())
	})
}

func TestMenuItemAdd(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		c.RolesReadAdd("Viewer")
		c.MenuItemAdd(MenuItem{Label: "Widgets"})

		items := c.MenuItems()
		require.Len(t, items, 1)
		assert.Equal(t, "Widgets", items[0].Label)
		assert.Equal(t, 500.0, items[0].Order)
		assert.Equal(t, "widget", items[0].Table)
		assert.Equal(t, "/widget", items[0].Navigate)
		assert.ElementsMatch(t, []string{"Editor", "Viewer"}, items[0].Roles)
	})

	t.Run("explicit roles win", func(t *testing.T) {
		c := NewCore("widget")
		c.RolesWriteAdd("Editor")
		c.MenuItemAdd(MenuItem{Label: "Admin Only", Roles: []string{"Admin"}, Order: 10})

		items := c.MenuItems()
		require.Len(t, items, 1)
		assert.Equal(t, []string{"Admin"}, items[0].Roles)
		assert.Equal(t, 10.0, items[0].Order)
	})
}

func TestMethodList(t *testing.T) {
	c := NewCore("widget")
	require.NoError(t, c.MethodAdd("zulu", noopMethod, nil))
	require.NoError(t, c.MethodAdd("alpha", noopMethod, nil))
	assert.Equal(t, []string{"alpha", "zulu"}, c.MethodList())
}
