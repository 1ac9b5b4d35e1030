package tablekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJunction(t *testing.T) {
	t.Run("shape", func(t *testing.T) {
		j, err := NewJunction(JunctionDecl{
			Table1:   "project",
			Display1: "name",
			Table2:   "member",
			Display2: "email",
		}, []string{"Editor"}, nil)
		require.NoError(t, err)

		assert.Equal(t, "project_member", j.Table())

		cols := j.Columns()
		require.Len(t, cols, 2)

		id1 := j.Column("id1")
		require.NotNil(t, id1)
		assert.Equal(t, TypeInteger, id1.Type)
		assert.True(t, id1.Index)
		assert.True(t, id1.Required)
		assert.Equal(t, "project", id1.Join)
		assert.Equal(t, "name", id1.JoinDisplay)

		id2 := j.Column("id2")
		require.NotNil(t, id2)
		assert.Equal(t, TypeInteger, id2.Type)
		assert.True(t, id2.Index)
		assert.Equal(t, "member", id2.Join)
		assert.Equal(t, "email", id2.JoinDisplay)
	})

	t.Run("registers both parent links", func(t *testing.T) {
		j, err := NewJunction(JunctionDecl{Table1: "a", Table2: "b"}, nil, nil)
		require.NoError(t, err)

		parents := j.Parents()
		require.Len(t, parents, 2)
		assert.Equal(t, "a", parents[0].Table)
		assert.Equal(t, "id1", parents[0].Column)
		assert.Equal(t, "b", parents[1].Table)
		assert.Equal(t, "id2", parents[1].Column)
	})

	t.Run("inherits the full method surface", func(t *testing.T) {
		j, err := NewJunction(JunctionDecl{Table1: "a", Table2: "b"}, nil, nil)
		require.NoError(t, err)

		methods := j.MethodList()
		for _, id := range []string{"recordCreate", "recordUpdate", "recordDelete", "recordGet", "rowsGet", "schemaGet", "actionsGet", "childrenGet"} {
			assert.Contains(t, methods, id)
		}
	})

	t.Run("rejects a missing side", func(t *testing.T) {
		_, err := NewJunction(JunctionDecl{Table1: "a"}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("carries the declaring role sets", func(t *testing.T) {
		j, err := NewJunction(JunctionDecl{Table1: "a", Table2: "b"},
			[]string{"Editor"}, []string{"Viewer"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Editor"}, j.RolesWrite())
		assert.Equal(t, []string{"Viewer"}, j.RolesRead())
	})
}
