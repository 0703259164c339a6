// Package fields implements the per-type link handlers that read and rewrite
// item references stored in field values.
package fields

import (
	"strings"
	"sync"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

var _ types.FieldRegistry = (*Registry)(nil)

// Registry maps field types to handlers. The zero value is empty; use
// NewRegistry for one preloaded with the standard handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]types.FieldHandler
}

// NewRegistry returns a registry with handlers for every standard field type
// that can hold a reference.
func NewRegistry() *Registry {
	r := &Registry{}
	ref := ReferenceHandler{}
	list := ListHandler{}
	html := RichTextHandler{}

	r.Register(types.FieldTypeDroplink, ref)
	r.Register(types.FieldTypeDroptree, ref)
	r.Register(types.FieldTypeCloneSource, ref)
	r.Register(types.FieldTypeMultilist, list)
	r.Register(types.FieldTypeTreelist, list)
	r.Register(types.FieldTypeRichText, html)
	return r
}

// Register binds handler to fieldType, replacing any previous binding.
// Field types are matched case-insensitively.
func (r *Registry) Register(fieldType string, handler types.FieldHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string]types.FieldHandler)
	}
	r.handlers[normalizeType(fieldType)] = handler
}

// Resolve returns the handler for f. Fields of unknown type, and text fields,
// have no handler.
func (r *Registry) Resolve(f *types.Field) (types.FieldHandler, bool) {
	if f == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[normalizeType(f.Type)]
	return h, ok
}

// References returns the item IDs referenced by f, or nil when f has no handler.
func (r *Registry) References(f *types.Field) []string {
	h, ok := r.Resolve(f)
	if !ok {
		return nil
	}
	return h.References(f)
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// sameID compares item IDs the way the store does: case-insensitively and
// ignoring surrounding braces.
func sameID(a, b string) bool {
	return strings.EqualFold(trimID(a), trimID(b))
}

func trimID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "{}")
}
