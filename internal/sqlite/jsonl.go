package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. A missing file yields no records; malformed lines are
// skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically replaces path with one JSON value per line using the
// temp-file, fsync, rename pattern.
func writeJSONL[T any](path string, records []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		// Encode terminates each value with a newline.
		if err := enc.Encode(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// persistLocked rewrites items.jsonl and links.jsonl from SQLite.
// The caller must hold b.mu.
func (b *Backend) persistLocked() error {
	items, err := b.dumpItems()
	if err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(b.config.DataDir, itemsFileName), items); err != nil {
		return fmt.Errorf("persisting %s: %w", itemsFileName, err)
	}
	links, err := b.dumpLinks()
	if err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(b.config.DataDir, linksFileName), links); err != nil {
		return fmt.Errorf("persisting %s: %w", linksFileName, err)
	}
	return nil
}

func (b *Backend) dumpItems() ([]itemJSON, error) {
	rows, err := b.db.Query(`SELECT item_id, COALESCE(parent_id, ''), name, path, icon, sort_order, protected, created_at, updated_at
FROM items ORDER BY path, item_id`)
	if err != nil {
		return nil, fmt.Errorf("dumping items: %w", err)
	}
	var out []itemJSON
	index := make(map[string]int)
	for rows.Next() {
		var rec itemJSON
		var protected int
		if err := rows.Scan(&rec.ItemID, &rec.ParentID, &rec.Name, &rec.Path, &rec.Icon, &rec.SortOrder, &protected, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		rec.Protected = protected != 0
		index[rec.ItemID] = len(out)
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	frows, err := b.db.Query("SELECT item_id, field_id, field_type, value FROM fields ORDER BY item_id, ordinal")
	if err != nil {
		return nil, fmt.Errorf("dumping fields: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var itemID string
		var f fieldJSON
		if err := frows.Scan(&itemID, &f.FieldID, &f.Type, &f.Value); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		if i, ok := index[itemID]; ok {
			out[i].Fields = append(out[i].Fields, f)
		}
	}
	return out, frows.Err()
}

func (b *Backend) dumpLinks() ([]linkJSON, error) {
	rows, err := b.db.Query("SELECT link_id, source_item_id, source_field_id, target_id, created_at FROM links ORDER BY created_at, link_id")
	if err != nil {
		return nil, fmt.Errorf("dumping links: %w", err)
	}
	defer rows.Close()
	var out []linkJSON
	for rows.Next() {
		var rec linkJSON
		if err := rows.Scan(&rec.LinkID, &rec.SourceItemID, &rec.SourceFieldID, &rec.TargetID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
