package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// loadResult reports which JSONL files held records.
type loadResult struct {
	items bool
	links bool
}

// loadAllJSONL reads items.jsonl and links.jsonl into SQLite in a single
// transaction. Malformed lines and records that violate constraints are
// skipped; unknown JSON fields are ignored.
func (b *Backend) loadAllJSONL() (loadResult, error) {
	var res loadResult

	itemRecs, err := readJSONL(filepath.Join(b.config.DataDir, itemsFileName))
	if err != nil {
		return res, err
	}
	linkRecs, err := readJSONL(filepath.Join(b.config.DataDir, linksFileName))
	if err != nil {
		return res, err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return res, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, raw := range itemRecs {
		var rec itemJSON
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ItemID == "" {
			continue
		}
		if err := insertItemJSON(tx, rec); err != nil {
			continue
		}
		res.items = true
	}

	for _, raw := range linkRecs {
		var rec linkJSON
		if err := json.Unmarshal(raw, &rec); err != nil || rec.LinkID == "" {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO links (link_id, source_item_id, source_field_id, target_id, created_at) VALUES (?, ?, ?, ?, ?)",
			rec.LinkID, rec.SourceItemID, rec.SourceFieldID, rec.TargetID, rec.CreatedAt,
		); err != nil {
			continue
		}
		res.links = true
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing load transaction: %w", err)
	}
	return res, nil
}

// insertItemJSON writes an item row and its field rows.
func insertItemJSON(tx *sql.Tx, rec itemJSON) error {
	var parent any
	if rec.ParentID != "" {
		parent = rec.ParentID
	}
	protected := 0
	if rec.Protected {
		protected = 1
	}
	if _, err := tx.Exec(
		`INSERT INTO items (item_id, parent_id, name, path, icon, sort_order, protected, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, parent, rec.Name, rec.Path, rec.Icon, rec.SortOrder, protected, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return err
	}
	for i, f := range rec.Fields {
		if _, err := tx.Exec(
			"INSERT INTO fields (item_id, field_id, field_type, value, ordinal) VALUES (?, ?, ?, ?, ?)",
			rec.ItemID, f.FieldID, f.Type, f.Value, i,
		); err != nil {
			return err
		}
	}
	return nil
}
