package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

const linkColumns = "link_id, source_item_id, source_field_id, target_id, created_at"

// GetReferrers returns every link whose target is the item, oldest first.
func (b *Backend) GetReferrers(ctx context.Context, item *types.Item) ([]*types.Link, error) {
	if item == nil || item.ItemID == "" {
		return nil, types.ErrInvalidID
	}
	return b.queryLinks(ctx, "target_id = ?", item.ItemID)
}

// GetReferrerCount returns the number of links whose target is the item.
func (b *Backend) GetReferrerCount(ctx context.Context, item *types.Item) (int, error) {
	if item == nil || item.ItemID == "" {
		return 0, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrDetached
	}
	var n int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links WHERE target_id = ?", item.ItemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting referrers of %s: %w", item.ItemID, err)
	}
	return n, nil
}

// GetReferences returns the outgoing links of the item.
func (b *Backend) GetReferences(ctx context.Context, item *types.Item) ([]*types.Link, error) {
	if item == nil || item.ItemID == "" {
		return nil, types.ErrInvalidID
	}
	return b.queryLinks(ctx, "source_item_id = ?", item.ItemID)
}

// Reindex rebuilds the whole link index from field values.
func (b *Backend) Reindex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}
	if err := b.reindexAllLocked(ctx); err != nil {
		return err
	}
	return b.persistLocked()
}

func (b *Backend) reindexAllLocked(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items")
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}
	var items []*types.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating items: %w", err)
	}
	for _, item := range items {
		if err := loadFields(ctx, b.db, item); err != nil {
			return err
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reindex transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM links"); err != nil {
		return fmt.Errorf("clearing links: %w", err)
	}
	for _, item := range items {
		if err := b.indexItemLinks(ctx, tx, item); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reindex: %w", err)
	}
	return nil
}

// indexItemLinks replaces the outgoing links of item with those derived from
// its current field values. Duplicate references from one field collapse to
// a single link.
func (b *Backend) indexItemLinks(ctx context.Context, tx *sql.Tx, item *types.Item) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE source_item_id = ?", item.ItemID); err != nil {
		return fmt.Errorf("clearing links of %s: %w", item.ItemID, err)
	}
	if b.registry == nil {
		return nil
	}
	now := formatTime(time.Now())
	for i := range item.Fields {
		f := &item.Fields[i]
		h, ok := b.registry.Resolve(f)
		if !ok {
			continue
		}
		seen := make(map[string]bool)
		for _, target := range h.References(f) {
			key := strings.ToLower(target)
			if target == "" || seen[key] {
				continue
			}
			seen[key] = true
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO links ("+linkColumns+") VALUES (?, ?, ?, ?, ?)",
				newUUID(), item.ItemID, f.FieldID, target, now,
			); err != nil {
				return fmt.Errorf("indexing link %s/%s -> %s: %w", item.ItemID, f.FieldID, target, err)
			}
		}
	}
	return nil
}

func (b *Backend) queryLinks(ctx context.Context, where string, args ...any) ([]*types.Link, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM links WHERE "+where+" ORDER BY created_at, link_id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	links := []*types.Link{}
	for rows.Next() {
		var l types.Link
		var createdAt string
		if err := rows.Scan(&l.LinkID, &l.SourceItemID, &l.SourceFieldID, &l.TargetID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing link created_at: %w", err)
		}
		links = append(links, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating links: %w", err)
	}
	return links, nil
}
