package sqlite

// JSON record structures that mirror the JSONL file format.

// itemJSON represents an item and its field values in items.jsonl.
type itemJSON struct {
	ItemID    string      `json:"item_id"`
	ParentID  string      `json:"parent_id,omitempty"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Icon      string      `json:"icon,omitempty"`
	SortOrder int         `json:"sort_order"`
	Protected bool        `json:"protected,omitempty"`
	Fields    []fieldJSON `json:"fields,omitempty"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

// fieldJSON represents one field value nested in an itemJSON.
type fieldJSON struct {
	FieldID string `json:"field_id"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

// linkJSON represents an indexed link in links.jsonl.
type linkJSON struct {
	LinkID        string `json:"link_id"`
	SourceItemID  string `json:"source_item_id"`
	SourceFieldID string `json:"source_field_id"`
	TargetID      string `json:"target_id"`
	CreatedAt     string `json:"created_at"`
}
