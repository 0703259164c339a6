package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

const itemColumns = "item_id, COALESCE(parent_id, ''), name, path, icon, sort_order, protected, created_at, updated_at"

// subtreeQuery selects the ID of an item and every descendant.
const subtreeQuery = `WITH RECURSIVE sub(id) AS (
    SELECT item_id FROM items WHERE item_id = ?
    UNION ALL
    SELECT i.item_id FROM items i JOIN sub ON i.parent_id = sub.id
) SELECT id FROM sub`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetItem returns the item with the given ID and its field values.
// Returns ErrInvalidID if id is empty, ErrNotFound if no item exists.
func (b *Backend) GetItem(ctx context.Context, id string) (*types.Item, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.getItemLocked(ctx, b.db, id)
}

// Children returns the direct children of the item ordered by sort order and
// name. An item without children, or an unknown ID, yields an empty slice.
func (b *Backend) Children(ctx context.Context, id string) ([]*types.Item, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE parent_id = ? ORDER BY sort_order, name, item_id", id)
	if err != nil {
		return nil, fmt.Errorf("querying children of %s: %w", id, err)
	}
	var children []*types.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		children = append(children, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}

	// Fields are loaded after rows is closed: the pool holds one connection.
	for _, c := range children {
		if err := loadFields(ctx, b.db, c); err != nil {
			return nil, err
		}
	}
	if children == nil {
		children = []*types.Item{}
	}
	return children, nil
}

// CreateItem inserts a new item under item.ParentID and indexes the links in
// its fields. When item.ItemID is empty a UUID v7 is generated; an explicit
// ID must satisfy types.ValidID. Returns the ID used.
func (b *Backend) CreateItem(ctx context.Context, item *types.Item) (string, error) {
	if item == nil {
		return "", types.ErrInvalidData
	}
	if strings.TrimSpace(item.Name) == "" || strings.Contains(item.Name, "/") {
		return "", types.ErrInvalidName
	}
	if item.ParentID == "" || (item.ItemID != "" && !types.ValidID(item.ItemID)) {
		return "", types.ErrInvalidID
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return "", types.ErrDetached
	}

	parent, err := b.getItemLocked(ctx, b.db, item.ParentID)
	if err != nil {
		return "", fmt.Errorf("resolving parent %s: %w", item.ParentID, err)
	}

	if item.ItemID == "" {
		item.ItemID = newUUID()
	}
	now := time.Now().UTC()
	item.ParentID = parent.ItemID
	item.Path = parent.Path + "/" + item.Name
	item.CreatedAt = now
	item.UpdatedAt = now

	rec := itemJSON{
		ItemID:    item.ItemID,
		ParentID:  item.ParentID,
		Name:      item.Name,
		Path:      item.Path,
		Icon:      item.Icon,
		SortOrder: item.SortOrder,
		Protected: item.Protected,
		CreatedAt: formatTime(now),
		UpdatedAt: formatTime(now),
	}
	for _, f := range item.Fields {
		rec.Fields = append(rec.Fields, fieldJSON{FieldID: f.FieldID, Type: f.Type, Value: f.Value})
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertItemJSON(tx, rec); err != nil {
		return "", fmt.Errorf("inserting item %s: %w", item.ItemID, err)
	}
	if err := b.indexItemLinks(ctx, tx, item); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing item: %w", err)
	}
	if err := b.persistLocked(); err != nil {
		return "", err
	}
	return item.ItemID, nil
}

// MoveItem re-parents an item, rewriting the paths of its subtree.
// Returns ErrCycle if newParentID is the item itself or one of its
// descendants.
func (b *Backend) MoveItem(ctx context.Context, id, newParentID string) error {
	if id == "" || newParentID == "" {
		return types.ErrInvalidID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	item, err := b.getItemLocked(ctx, b.db, id)
	if err != nil {
		return err
	}
	if item.ParentID == "" {
		return fmt.Errorf("moving the content root: %w", types.ErrAccessDenied)
	}
	parent, err := b.getItemLocked(ctx, b.db, newParentID)
	if err != nil {
		return fmt.Errorf("resolving parent %s: %w", newParentID, err)
	}

	// Walk up from the new parent; meeting the item means a cycle.
	for cur := parent; ; {
		if strings.EqualFold(cur.ItemID, item.ItemID) {
			return types.ErrCycle
		}
		if cur.ParentID == "" {
			break
		}
		if cur, err = b.getItemLocked(ctx, b.db, cur.ParentID); err != nil {
			return fmt.Errorf("walking ancestors: %w", err)
		}
	}

	oldPath := item.Path
	newPath := parent.Path + "/" + item.Name

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE items SET parent_id = ?, updated_at = ? WHERE item_id = ?",
		parent.ItemID, formatTime(time.Now()), item.ItemID,
	); err != nil {
		return fmt.Errorf("updating parent: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE items SET path = ? || substr(path, ?) WHERE path = ? OR path LIKE ? ESCAPE '\\'",
		newPath, utf8.RuneCountInString(oldPath)+1, oldPath, escapeLike(oldPath)+"/%",
	); err != nil {
		return fmt.Errorf("rewriting paths: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing move: %w", err)
	}
	return b.persistLocked()
}

// DeleteItem removes an item, its descendants, their field values and their
// outgoing links. Links pointing into the deleted subtree are kept and become
// broken. Protected items require opts.Unrestricted.
func (b *Backend) DeleteItem(ctx context.Context, id string, opts types.EditOptions) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	item, err := b.getItemLocked(ctx, b.db, id)
	if err != nil {
		return err
	}
	if item.Protected && !opts.Unrestricted {
		return fmt.Errorf("deleting %s: %w", item.Path, types.ErrAccessDenied)
	}

	ids, err := b.subtreeIDs(ctx, item.ItemID)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first so parent rows are never orphaned mid-transaction.
	for i := len(ids) - 1; i >= 0; i-- {
		for _, stmt := range []string{
			"DELETE FROM links WHERE source_item_id = ?",
			"DELETE FROM fields WHERE item_id = ?",
			"DELETE FROM items WHERE item_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, ids[i]); err != nil {
				return fmt.Errorf("deleting %s: %w", ids[i], err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return b.persistLocked()
}

// subtreeIDs returns the item and its descendants, parents before children.
func (b *Backend) subtreeIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, subtreeQuery, id)
	if err != nil {
		return nil, fmt.Errorf("querying subtree of %s: %w", id, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning subtree: %w", err)
		}
		ids = append(ids, s)
	}
	return ids, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (b *Backend) getItemLocked(ctx context.Context, q querier, id string) (*types.Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE item_id = ?", strings.Trim(id, "{}"))
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadFields(ctx, q, item); err != nil {
		return nil, err
	}
	return item, nil
}

func scanItem(row rowScanner) (*types.Item, error) {
	var it types.Item
	var protected int
	var createdAt, updatedAt string
	if err := row.Scan(&it.ItemID, &it.ParentID, &it.Name, &it.Path, &it.Icon, &it.SortOrder, &protected, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	it.Protected = protected != 0
	var err error
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing item created_at: %w", err)
	}
	if it.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing item updated_at: %w", err)
	}
	return &it, nil
}

func loadFields(ctx context.Context, q querier, item *types.Item) error {
	rows, err := q.QueryContext(ctx,
		"SELECT field_id, field_type, value FROM fields WHERE item_id = ? ORDER BY ordinal", item.ItemID)
	if err != nil {
		return fmt.Errorf("loading fields of %s: %w", item.ItemID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var f types.Field
		if err := rows.Scan(&f.FieldID, &f.Type, &f.Value); err != nil {
			return fmt.Errorf("scanning field: %w", err)
		}
		item.Fields = append(item.Fields, f)
	}
	return rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
