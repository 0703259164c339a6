package types

import "time"

// Link represents a directed reference from a field on a source item to a
// target item. Links are derived from field values and kept by the link index.
type Link struct {
	// LinkID is a UUID v7, generated when the link is indexed.
	LinkID string

	// SourceItemID is the item whose field holds the reference.
	SourceItemID string

	// SourceFieldID is the field on the source item. Empty for links the
	// index cannot attribute to a field.
	SourceFieldID string

	// TargetID is the referenced item.
	TargetID string

	// CreatedAt is the timestamp the link was indexed.
	CreatedAt time.Time
}

// IsCloneLink reports whether the link connects a clone to its origin.
func (l *Link) IsCloneLink() bool {
	return IsCloneSourceField(l.SourceFieldID)
}
