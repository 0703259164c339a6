package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

var _ types.Editor = (*editor)(nil)

// editor is an open edit on one item. Field changes are held in memory and
// written, together with the item's re-derived links, by Commit.
type editor struct {
	backend *Backend
	ctx     context.Context
	item    *types.Item
	actor   string
	closed  bool
}

// BeginEdit opens an edit transaction on the item.
// Returns ErrNotFound if the item does not exist and ErrAccessDenied if it is
// protected and opts.Unrestricted is false.
func (b *Backend) BeginEdit(ctx context.Context, id string, opts types.EditOptions) (types.Editor, error) {
	item, err := b.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Protected && !opts.Unrestricted {
		return nil, fmt.Errorf("editing %s: %w", item.Path, types.ErrAccessDenied)
	}
	return &editor{backend: b, ctx: ctx, item: item, actor: opts.Actor}, nil
}

func (e *editor) Item() *types.Item {
	return e.item
}

// Commit writes every field of the edited item, bumps updated_at, replaces
// the item's outgoing links with the ones derived from the new values, and
// persists the JSONL files.
func (e *editor) Commit() error {
	if e.closed {
		return types.ErrEditClosed
	}
	e.closed = true

	b := e.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	tx, err := b.db.BeginTx(e.ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning edit transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(e.ctx, "UPDATE items SET updated_at = ? WHERE item_id = ?",
		formatTime(time.Now()), e.item.ItemID)
	if err != nil {
		return fmt.Errorf("updating item %s: %w", e.item.ItemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("committing edit of %s: %w", e.item.ItemID, types.ErrNotFound)
	}

	if _, err := tx.ExecContext(e.ctx, "DELETE FROM fields WHERE item_id = ?", e.item.ItemID); err != nil {
		return fmt.Errorf("clearing fields of %s: %w", e.item.ItemID, err)
	}
	for i, f := range e.item.Fields {
		if _, err := tx.ExecContext(e.ctx,
			"INSERT INTO fields (item_id, field_id, field_type, value, ordinal) VALUES (?, ?, ?, ?, ?)",
			e.item.ItemID, f.FieldID, f.Type, f.Value, i,
		); err != nil {
			return fmt.Errorf("writing field %s: %w", f.FieldID, err)
		}
	}
	if err := b.indexItemLinks(e.ctx, tx, e.item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edit of %s: %w", e.item.ItemID, err)
	}
	return b.persistLocked()
}

func (e *editor) Rollback() error {
	e.closed = true
	return nil
}
