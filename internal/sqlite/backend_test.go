package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// setupBackend creates an attached Backend in a temp dir with the standard
// field handlers. Detach is registered as cleanup.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	return attachAt(t, t.TempDir())
}

func attachAt(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend(fields.NewRegistry())
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func mustCreate(t *testing.T, b *Backend, item *types.Item) string {
	t.Helper()
	id, err := b.CreateItem(context.Background(), item)
	require.NoError(t, err)
	return id
}

func TestAttachLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds the content root", func(t *testing.T) {
		b := setupBackend(t)
		root, err := b.GetItem(ctx, types.RootItemID)
		require.NoError(t, err)
		assert.Equal(t, "/content", root.Path)
		assert.True(t, root.Protected)
	})

	t.Run("attach twice fails", func(t *testing.T) {
		b := setupBackend(t)
		err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
		assert.ErrorIs(t, err, types.ErrAlreadyAttached)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		b := NewBackend(nil)
		assert.ErrorIs(t, b.Attach(types.Config{DataDir: t.TempDir()}), types.ErrBackendEmpty)
	})

	t.Run("detached backend refuses operations", func(t *testing.T) {
		b := setupBackend(t)
		require.NoError(t, b.Detach())
		require.NoError(t, b.Detach(), "detach is idempotent")
		_, err := b.GetItem(ctx, types.RootItemID)
		assert.ErrorIs(t, err, types.ErrDetached)
	})
}

func TestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	home := mustCreate(t, b, &types.Item{ParentID: types.RootItemID, Name: "Home"})
	mustCreate(t, b, &types.Item{ItemID: "news", ParentID: home, Name: "News", SortOrder: 2})
	mustCreate(t, b, &types.Item{ItemID: "about", ParentID: home, Name: "About", SortOrder: 1,
		Fields: []types.Field{{FieldID: "Title", Type: types.FieldTypeText, Value: "About us"}}})

	item, err := b.GetItem(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "/content/Home/News", item.Path)
	assert.Equal(t, home, item.ParentID)

	item, err = b.GetItem(ctx, "ABOUT")
	require.NoError(t, err, "IDs are case-insensitive")
	require.NotNil(t, item.Field("Title"))
	assert.Equal(t, "About us", item.Field("Title").Value)

	children, err := b.Children(ctx, home)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "about", children[0].ItemID)
	assert.Equal(t, "news", children[1].ItemID)

	leaf, err := b.Children(ctx, "news")
	require.NoError(t, err)
	assert.Empty(t, leaf)

	_, err = b.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetItem(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	tests := []struct {
		name    string
		item    *types.Item
		wantErr error
	}{
		{"nil item", nil, types.ErrInvalidData},
		{"empty name", &types.Item{ParentID: types.RootItemID}, types.ErrInvalidName},
		{"slash in name", &types.Item{ParentID: types.RootItemID, Name: "a/b"}, types.ErrInvalidName},
		{"no parent", &types.Item{Name: "x"}, types.ErrInvalidID},
		{"unknown parent", &types.Item{ParentID: "nope", Name: "x"}, types.ErrNotFound},
		{"id outside the link charset", &types.Item{ItemID: "a b", ParentID: types.RootItemID, Name: "x"}, types.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateItem(ctx, tt.item)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLinksDerivedFromFields(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	target := mustCreate(t, b, &types.Item{ItemID: "target", ParentID: types.RootItemID, Name: "Target"})
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Source", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "target"},
		{FieldID: "Related", Type: types.FieldTypeMultilist, Value: "target|target|other"},
		{FieldID: "Body", Type: types.FieldTypeRichText, Value: `<a href="~/link.aspx?_id=target">t</a>`},
		{FieldID: "Title", Type: types.FieldTypeText, Value: "target"},
	}})

	targetItem, err := b.GetItem(ctx, target)
	require.NoError(t, err)

	refs, err := b.GetReferrers(ctx, targetItem)
	require.NoError(t, err)
	require.Len(t, refs, 3, "one link per referring field; text fields hold no links")
	var fieldIDs []string
	for _, l := range refs {
		assert.Equal(t, "src", l.SourceItemID)
		fieldIDs = append(fieldIDs, l.SourceFieldID)
	}
	assert.ElementsMatch(t, []string{"Main", "Related", "Body"}, fieldIDs)

	n, err := b.GetReferrerCount(ctx, targetItem)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	src, err := b.GetItem(ctx, "src")
	require.NoError(t, err)
	out, err := b.GetReferences(ctx, src)
	require.NoError(t, err)
	assert.Len(t, out, 4, "Related also points at the missing item 'other'")
}

func TestEditCommitReindexes(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	mustCreate(t, b, &types.Item{ItemID: "a", ParentID: types.RootItemID, Name: "A"})
	mustCreate(t, b, &types.Item{ItemID: "b", ParentID: types.RootItemID, Name: "B"})
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "a"},
	}})

	ed, err := b.BeginEdit(ctx, "src", types.EditOptions{Actor: "tester"})
	require.NoError(t, err)
	ed.Item().Field("Main").Value = "b"
	require.NoError(t, ed.Commit())
	assert.ErrorIs(t, ed.Commit(), types.ErrEditClosed)

	a, _ := b.GetItem(ctx, "a")
	bb, _ := b.GetItem(ctx, "b")
	na, err := b.GetReferrerCount(ctx, a)
	require.NoError(t, err)
	nb, err := b.GetReferrerCount(ctx, bb)
	require.NoError(t, err)
	assert.Equal(t, 0, na)
	assert.Equal(t, 1, nb)

	t.Run("rollback discards changes", func(t *testing.T) {
		ed, err := b.BeginEdit(ctx, "src", types.EditOptions{})
		require.NoError(t, err)
		ed.Item().Field("Main").Value = ""
		require.NoError(t, ed.Rollback())
		assert.ErrorIs(t, ed.Commit(), types.ErrEditClosed)

		src, err := b.GetItem(ctx, "src")
		require.NoError(t, err)
		assert.Equal(t, "b", src.Field("Main").Value)
	})
}

func TestProtectedItems(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	mustCreate(t, b, &types.Item{ItemID: "p", ParentID: types.RootItemID, Name: "P", Protected: true})

	_, err := b.BeginEdit(ctx, "p", types.EditOptions{Actor: "editor"})
	assert.ErrorIs(t, err, types.ErrAccessDenied)

	ed, err := b.BeginEdit(ctx, "p", types.EditOptions{Actor: "editor", Unrestricted: true})
	require.NoError(t, err)
	require.NoError(t, ed.Rollback())

	assert.ErrorIs(t, b.DeleteItem(ctx, "p", types.EditOptions{}), types.ErrAccessDenied)
	require.NoError(t, b.DeleteItem(ctx, "p", types.EditOptions{Unrestricted: true}))
}

func TestMoveItem(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	mustCreate(t, b, &types.Item{ItemID: "a", ParentID: types.RootItemID, Name: "A"})
	mustCreate(t, b, &types.Item{ItemID: "a1", ParentID: "a", Name: "A1"})
	mustCreate(t, b, &types.Item{ItemID: "a11", ParentID: "a1", Name: "A11"})
	mustCreate(t, b, &types.Item{ItemID: "b", ParentID: types.RootItemID, Name: "B"})

	assert.ErrorIs(t, b.MoveItem(ctx, "a", "a11"), types.ErrCycle)
	assert.ErrorIs(t, b.MoveItem(ctx, "a", "a"), types.ErrCycle)
	assert.ErrorIs(t, b.MoveItem(ctx, types.RootItemID, "a"), types.ErrAccessDenied)

	require.NoError(t, b.MoveItem(ctx, "a1", "b"))
	a11, err := b.GetItem(ctx, "a11")
	require.NoError(t, err)
	assert.Equal(t, "/content/B/A1/A11", a11.Path)
	a1, err := b.GetItem(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "b", a1.ParentID)
}

func TestDeleteItemKeepsIncomingLinks(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	mustCreate(t, b, &types.Item{ItemID: "t", ParentID: types.RootItemID, Name: "T"})
	mustCreate(t, b, &types.Item{ItemID: "c", ParentID: "t", Name: "C", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "x"},
	}})
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "t"},
	}})

	require.NoError(t, b.DeleteItem(ctx, "t", types.EditOptions{}))

	_, err := b.GetItem(ctx, "c")
	assert.ErrorIs(t, err, types.ErrNotFound)

	broken, err := b.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, broken, "incoming link stays as a broken link")

	fromDeleted, err := b.GetReferrerCount(ctx, &types.Item{ItemID: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, fromDeleted, "outgoing links of deleted items are dropped")
}

func TestJSONLIsSourceOfTruth(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := attachAt(t, dir)
	mustCreate(t, b, &types.Item{ItemID: "t", ParentID: types.RootItemID, Name: "T"})
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "t"},
	}})
	require.NoError(t, b.Detach())

	data, err := os.ReadFile(filepath.Join(dir, itemsFileName))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"), "root plus two items")

	b2 := attachAt(t, dir)
	src, err := b2.GetItem(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, "t", src.Field("Main").Value)

	n, err := b2.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMissingLinksFileRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := attachAt(t, dir)
	mustCreate(t, b, &types.Item{ItemID: "t", ParentID: types.RootItemID, Name: "T"})
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Related", Type: types.FieldTypeMultilist, Value: "t"},
	}})
	require.NoError(t, b.Detach())
	require.NoError(t, os.Remove(filepath.Join(dir, linksFileName)))

	b2 := attachAt(t, dir)
	n, err := b2.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportYAML(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	doc := `
items:
  - id: home
    name: Home
    fields:
      - {id: Related, type: multilist, value: "news|about"}
    children:
      - id: news
        name: News
      - id: about
        name: About
        fields:
          - {id: Body, type: rich text, value: '<a href="~/link.aspx?_id=news">n</a>'}
`
	n, err := b.ImportYAML(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	news, err := b.GetItem(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "/content/Home/News", news.Path)

	count, err := b.GetReferrerCount(ctx, news)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := b.ImportYAML(ctx, strings.NewReader("items:\n  - id: x\n    nmae: typo\n"))
		assert.Error(t, err)
	})

	t.Run("underscore ids are indexed from rich text", func(t *testing.T) {
		_, err := b.ImportYAML(ctx, strings.NewReader(`
items:
  - id: press_kit
    name: Press Kit
  - id: footer
    name: Footer
    fields:
      - {id: Body, type: rich text, value: "<a href='~/link.aspx?_id=press_kit'>press</a>"}
`))
		require.NoError(t, err)
		n, err := b.GetReferrerCount(ctx, &types.Item{ItemID: "press_kit"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("ids outside the link charset are rejected", func(t *testing.T) {
		_, err := b.ImportYAML(ctx, strings.NewReader("items:\n  - id: news.html\n    name: Legacy\n"))
		assert.ErrorIs(t, err, types.ErrInvalidID)
	})

	t.Run("empty document imports nothing", func(t *testing.T) {
		n, err := b.ImportYAML(ctx, strings.NewReader(""))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	mustCreate(t, b, &types.Item{ItemID: "src", ParentID: types.RootItemID, Name: "Src", Fields: []types.Field{
		{FieldID: "Main", Type: types.FieldTypeDroplink, Value: "t"},
	}})
	require.NoError(t, b.Reindex(ctx))
	n, err := b.GetReferrerCount(ctx, &types.Item{ItemID: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
