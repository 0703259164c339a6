package types

import (
	"strings"
	"time"
)

// RootItemID is the fixed ID of the content root seeded on first attach.
const RootItemID = "11111111-1111-1111-1111-111111111111"

// Item is a node in the content tree.
type Item struct {
	ItemID    string    // UUID v7 unless imported with an explicit ID.
	ParentID  string    // Empty for the root.
	Name      string    // Display name (required, non-empty).
	Path      string    // Content path, e.g. /content/home/news.
	Icon      string    // Icon reference shown next to the item.
	SortOrder int       // Ordering hint among siblings.
	Protected bool      // Editing requires EditOptions.Unrestricted.
	Fields    []Field   // Field values in definition order.
	CreatedAt time.Time // Timestamp of creation.
	UpdatedAt time.Time // Timestamp of last committed edit.
}

// Field is a single typed value on an item.
type Field struct {
	FieldID string // Field identifier, e.g. "Related" or "__Source".
	Type    string // One of the FieldType constants.
	Value   string // Raw stored value.
}

// Field returns the field with the given ID, or nil if the item has none.
// The returned pointer aliases the item's slice so edits are visible on the item.
func (i *Item) Field(id string) *Field {
	for k := range i.Fields {
		if i.Fields[k].FieldID == id {
			return &i.Fields[k]
		}
	}
	return nil
}

// DisplayName returns the name shown in dialogs, falling back to the ID.
func (i *Item) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ItemID
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	c.Fields = append([]Field(nil), i.Fields...)
	return &c
}

// ListSeparator delimits item IDs in a target list.
const ListSeparator = "|"

// ParseList splits a delimited target list into item IDs, dropping blanks.
// Order is preserved and duplicates are kept.
func ParseList(raw string) []string {
	var ids []string
	for part := range strings.SplitSeq(raw, ListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ids = append(ids, part)
	}
	return ids
}

// FormatList joins item IDs into a delimited target list.
func FormatList(ids []string) string {
	return strings.Join(ids, ListSeparator)
}

// ValidID reports whether id may name an item: one or more ASCII letters,
// digits, '-' or '_'. Rich-text links and target lists can only carry IDs
// from this set.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
