package types

import (
	"context"
	"errors"
)

// ContentStore is the content repository: item lookup, tree walking, and
// scoped edits.
type ContentStore interface {
	// GetItem returns the item with the given ID.
	// Returns ErrNotFound if no item exists with that ID.
	GetItem(ctx context.Context, id string) (*Item, error)

	// Children returns the direct children of the item. Sibling order is
	// whatever the store yields and callers must not depend on it.
	Children(ctx context.Context, id string) ([]*Item, error)

	// BeginEdit opens an edit transaction on the item. The caller must
	// Commit or Rollback the returned Editor.
	// Returns ErrNotFound if the item does not exist and ErrAccessDenied if
	// the item is protected and opts.Unrestricted is false.
	BeginEdit(ctx context.Context, id string, opts EditOptions) (Editor, error)
}

// EditOptions carries the caller identity for an edit transaction.
type EditOptions struct {
	// Actor names the user on whose behalf the edit runs.
	Actor string

	// Unrestricted bypasses item protection.
	Unrestricted bool
}

// Editor is an open edit transaction on a single item.
type Editor interface {
	// Item returns the editable copy of the item. Changes to its fields are
	// persisted by Commit.
	Item() *Item

	// Commit persists field changes and re-indexes the item's outgoing links.
	Commit() error

	// Rollback discards the edit. Rollback after Commit is a no-op.
	Rollback() error
}

// LinkIndex answers "who refers to this item".
type LinkIndex interface {
	// GetReferrers returns every link whose target is the item.
	GetReferrers(ctx context.Context, item *Item) ([]*Link, error)

	// GetReferrerCount returns the number of links whose target is the item.
	GetReferrerCount(ctx context.Context, item *Item) (int, error)
}

// AuditSink records security-relevant actions.
type AuditSink interface {
	Record(actor, format string, args ...any)
}

// Repository is a content store that also indexes links.
type Repository interface {
	ContentStore
	LinkIndex
}

// Store errors.
var (
	ErrDetached        = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
	ErrNotFound        = errors.New("item not found")
	ErrInvalidID       = errors.New("invalid item ID")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidData     = errors.New("invalid item data")
	ErrAccessDenied    = errors.New("access denied")
	ErrCycle           = errors.New("parent assignment would create a cycle")
	ErrEditClosed      = errors.New("edit transaction is closed")
)

// Remediation errors.
var (
	ErrInvalidMode    = errors.New("invalid remediation mode")
	ErrNoTargets      = errors.New("target list must not be empty")
	ErrNoReplacement  = errors.New("relink requires a replacement item")
	ErrNoFieldHandler = errors.New("field has no link handler")
)
