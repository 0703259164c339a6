package fields

import (
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// ReferenceHandler handles fields whose whole value is a single item ID
// (droplink, droptree, clone source).
type ReferenceHandler struct{}

// References returns the referenced ID, if any.
func (ReferenceHandler) References(f *types.Field) []string {
	id := trimID(f.Value)
	if id == "" {
		return nil
	}
	return []string{id}
}

// RemoveLink clears the value when it points at link.TargetID.
func (ReferenceHandler) RemoveLink(f *types.Field, link *types.Link) error {
	if link.TargetID == "" {
		return types.ErrInvalidID
	}
	if sameID(f.Value, link.TargetID) {
		f.Value = ""
	}
	return nil
}

// Relink replaces the value when it points at link.TargetID.
func (ReferenceHandler) Relink(f *types.Field, link *types.Link, newTarget *types.Item) error {
	if link.TargetID == "" || newTarget == nil || newTarget.ItemID == "" {
		return types.ErrInvalidID
	}
	if sameID(f.Value, link.TargetID) {
		f.Value = newTarget.ItemID
	}
	return nil
}
