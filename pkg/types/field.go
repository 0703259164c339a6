package types

// Field type constants. The type selects the FieldHandler used to read and
// rewrite references stored in the value.
const (
	FieldTypeText        = "text"         // plain text, no references
	FieldTypeDroplink    = "droplink"     // single item ID
	FieldTypeDroptree    = "droptree"     // single item ID picked from a tree
	FieldTypeMultilist   = "multilist"    // ListSeparator-delimited item IDs
	FieldTypeTreelist    = "treelist"     // ListSeparator-delimited item IDs
	FieldTypeRichText    = "rich text"    // HTML with ~/link.aspx?_id= anchors
	FieldTypeCloneSource = "clone source" // single item ID of a clone's origin
)

// Standard clone-source field IDs. A clone refers to its origin through one
// of these fields.
const (
	FieldSource     = "__Source"
	FieldSourceItem = "__Source Item"
)

// IsCloneSourceField reports whether fieldID is one of the clone-source fields.
func IsCloneSourceField(fieldID string) bool {
	return fieldID == FieldSource || fieldID == FieldSourceItem
}

// FieldHandler reads and rewrites the references held by one kind of field.
// Handlers mutate the Field in place; persisting the change is the caller's job.
type FieldHandler interface {
	// References returns the item IDs referenced by the field value, in order.
	References(f *Field) []string

	// RemoveLink drops every reference to link.TargetID from the field value.
	RemoveLink(f *Field, link *Link) error

	// Relink repoints references to link.TargetID at newTarget.
	Relink(f *Field, link *Link, newTarget *Item) error
}

// FieldRegistry resolves the handler for a field from its type.
type FieldRegistry interface {
	// Resolve returns the handler for f, or false when the field type
	// carries no references.
	Resolve(f *Field) (FieldHandler, bool)
}
