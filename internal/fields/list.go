package fields

import (
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// ListHandler handles multilist and treelist fields, whose value is a
// delimited list of item IDs.
type ListHandler struct{}

// References returns the listed IDs in order.
func (ListHandler) References(f *types.Field) []string {
	var ids []string
	for _, id := range types.ParseList(f.Value) {
		if id = trimID(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// RemoveLink drops every occurrence of link.TargetID from the list.
func (h ListHandler) RemoveLink(f *types.Field, link *types.Link) error {
	if link.TargetID == "" {
		return types.ErrInvalidID
	}
	var kept []string
	for _, id := range h.References(f) {
		if !sameID(id, link.TargetID) {
			kept = append(kept, id)
		}
	}
	f.Value = types.FormatList(kept)
	return nil
}

// Relink replaces occurrences of link.TargetID with newTarget. A list that
// already contains newTarget keeps a single entry for it.
func (h ListHandler) Relink(f *types.Field, link *types.Link, newTarget *types.Item) error {
	if link.TargetID == "" || newTarget == nil || newTarget.ItemID == "" {
		return types.ErrInvalidID
	}
	var out []string
	seen := false
	for _, id := range h.References(f) {
		if sameID(id, link.TargetID) {
			id = newTarget.ItemID
		}
		if sameID(id, newTarget.ItemID) {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, id)
	}
	f.Value = types.FormatList(out)
	return nil
}
