package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema DDL for all tables.
const (
	createItems = `CREATE TABLE items (
    item_id TEXT PRIMARY KEY COLLATE NOCASE,
    parent_id TEXT COLLATE NOCASE,
    name TEXT NOT NULL,
    path TEXT NOT NULL,
    icon TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL DEFAULT 0,
    protected INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createFields = `CREATE TABLE fields (
    item_id TEXT NOT NULL COLLATE NOCASE,
    field_id TEXT NOT NULL,
    field_type TEXT NOT NULL,
    value TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (item_id, field_id),
    FOREIGN KEY (item_id) REFERENCES items(item_id) ON DELETE CASCADE
);`

	createLinks = `CREATE TABLE links (
    link_id TEXT PRIMARY KEY,
    source_item_id TEXT NOT NULL COLLATE NOCASE,
    source_field_id TEXT NOT NULL,
    target_id TEXT NOT NULL COLLATE NOCASE,
    created_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxItemsParent = `CREATE INDEX idx_items_parent ON items(parent_id);`
	idxLinksTarget = `CREATE INDEX idx_links_target ON links(target_id);`
	idxLinksSource = `CREATE INDEX idx_links_source ON links(source_item_id);`
	idxLinksUnique = `CREATE UNIQUE INDEX idx_links_unique ON links(source_item_id, source_field_id, target_id);`
	idxFieldsItem  = `CREATE INDEX idx_fields_item ON fields(item_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createItems,
	createFields,
	createLinks,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxItemsParent,
	idxLinksTarget,
	idxLinksSource,
	idxLinksUnique,
	idxFieldsItem,
}

func createSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}
