package tablekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleDirectory(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}
	ctx := context.Background()

	engine, db, err := SetupTestEngine(ctx)
	require.NoError(t, err)
	defer db.Close()

	roles := engine.Roles()

	t.Run("resolves seeded roles and caches them", func(t *testing.T) {
		id, err := roles.NameToID(ctx, RoleAuthenticated)
		require.NoError(t, err)
		assert.NotZero(t, id)

		roles.mu.RLock()
		cached, ok := roles.byName[RoleAuthenticated]
		roles.mu.RUnlock()
		assert.True(t, ok)
		assert.Equal(t, id, cached)
	})

	t.Run("unknown names resolve to zero without caching", func(t *testing.T) {
		name := uniqueName("ghost")
		id, err := roles.NameToID(ctx, name)
		require.NoError(t, err)
		assert.Zero(t, id)

		roles.mu.RLock()
		_, ok := roles.byName[name]
		roles.mu.RUnlock()
		assert.False(t, ok)
	})

	t.Run("unknown names are dropped from id sets", func(t *testing.T) {
		ids, err := roles.IDsForNames(ctx, []string{RoleAuthenticated, uniqueName("ghost")})
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})

	t.Run("role mutations reset the cache", func(t *testing.T) {
		_, err := roles.NameToID(ctx, RoleAdmin)
		require.NoError(t, err)

		_, err = engine.Resource("role").RecordCreate(ctx, SystemPrincipal(), map[string]any{
			"name": uniqueName("role"),
		})
		require.NoError(t, err)

		roles.mu.RLock()
		size := len(roles.byName)
		roles.mu.RUnlock()
		assert.Zero(t, size)
	})
}

func TestBuiltinResources(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}
	ctx := context.Background()

	engine, db, err := SetupTestEngine(ctx)
	require.NoError(t, err)
	defer db.Close()

	t.Run("junctions expand at init", func(t *testing.T) {
		for _, name := range []string{"user_role", "group_role"} {
			r := engine.Resource(name)
			require.NotNil(t, r, name)
			assert.NotNil(t, r.Column("id1"))
			assert.NotNil(t, r.Column("id2"))
		}
	})

	t.Run("user email is validated", func(t *testing.T) {
		_, err := engine.Resource("user").RecordCreate(ctx, adminPrincipal(), map[string]any{
			"name":  uniqueName("bad"),
			"email": "not-an-address",
		})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "Email")
	})

	t.Run("user password never reads back", func(t *testing.T) {
		name := uniqueName("usr")
		id, err := engine.Resource("user").RecordCreate(ctx, adminPrincipal(), map[string]any{
			"name":     name,
			"email":    name + "@example.com",
			"password": "s3cret",
		})
		require.NoError(t, err)

		row, err := engine.Resource("user").RecordGet(ctx, adminPrincipal(), GetOptions{RecordID: id})
		require.NoError(t, err)
		_, present := row["password"]
		assert.False(t, present)
	})
}
