package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONL(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields no records", func(t *testing.T) {
		recs, err := readJSONL(filepath.Join(dir, "nope.jsonl"))
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("skips blank and malformed lines", func(t *testing.T) {
		path := filepath.Join(dir, "mixed.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\nnot json\n{\"b\":2}\n"), 0o644))
		recs, err := readJSONL(path)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.JSONEq(t, `{"b":2}`, string(recs[1]))
	})
}

func TestWriteJSONLAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "links.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	recs := []linkJSON{
		{LinkID: "l1", SourceItemID: "s", SourceFieldID: "f", TargetID: "t", CreatedAt: "2026-01-01T00:00:00Z"},
	}
	require.NoError(t, writeJSONL(path, recs))

	got, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"link_id":"l1","source_item_id":"s","source_field_id":"f","target_id":"t","created_at":"2026-01-01T00:00:00Z"}`, string(got[0]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
