package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

func TestStoreMirrorsBackendSemantics(t *testing.T) {
	ctx := context.Background()
	s := New(fields.NewRegistry())

	_, err := s.Add(&types.Item{ItemID: "t", ParentID: types.RootItemID, Name: "T"})
	require.NoError(t, err)
	_, err = s.Add(&types.Item{ItemID: "c", ParentID: "t", Name: "C"})
	require.NoError(t, err)
	_, err = s.Add(&types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Related", Type: types.FieldTypeMultilist, Value: "t|c|t"},
	}})
	require.NoError(t, err)

	_, err = s.Add(&types.Item{ItemID: "t", ParentID: types.RootItemID, Name: "Dup"})
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = s.Add(&types.Item{ItemID: "a|b", ParentID: types.RootItemID, Name: "Piped"})
	assert.ErrorIs(t, err, types.ErrInvalidID)

	c, err := s.GetItem(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, "/content/T/C", c.Path)

	kids, err := s.Children(ctx, "t")
	require.NoError(t, err)
	require.Len(t, kids, 1)

	n, err := s.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "duplicate references in one field collapse")

	ed, err := s.BeginEdit(ctx, "src", types.EditOptions{})
	require.NoError(t, err)
	ed.Item().Field("Related").Value = "c"
	require.NoError(t, ed.Commit())

	n, err = s.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.BeginEdit(ctx, types.RootItemID, types.EditOptions{})
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	require.NoError(t, s.Delete("t"))
	_, err = s.GetItem(ctx, "c")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Len(t, s.Links(), 1, "incoming link from src stays")
}
