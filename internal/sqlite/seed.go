package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Root item defaults.
const (
	rootName = "content"
	rootPath = "/content"
	rootIcon = "Applications/16x16/folder.png"
)

// seedRoot creates the content root if the items table is empty (first run)
// and persists it. Seeding is idempotent.
func (b *Backend) seedRoot() error {
	var count int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return fmt.Errorf("counting items: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := formatTime(time.Now())
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	root := itemJSON{
		ItemID:    types.RootItemID,
		Name:      rootName,
		Path:      rootPath,
		Icon:      rootIcon,
		Protected: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := insertItemJSON(tx, root); err != nil {
		return fmt.Errorf("inserting root: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	return b.persistLocked()
}
