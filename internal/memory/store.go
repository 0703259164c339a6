// Package memory implements an in-process content repository and link index.
// It derives links from field values the same way the SQLite backend does and
// is used for tests and throwaway sessions.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

var _ types.Repository = (*Store)(nil)

// Store holds items and links in maps guarded by a single RWMutex.
type Store struct {
	mu       sync.RWMutex
	registry types.FieldRegistry
	items    map[string]*types.Item
	links    map[string][]*types.Link // outgoing links keyed by source item
}

// New returns a Store containing only the content root.
func New(registry types.FieldRegistry) *Store {
	s := &Store{
		registry: registry,
		items:    make(map[string]*types.Item),
		links:    make(map[string][]*types.Link),
	}
	now := time.Now().UTC()
	s.items[key(types.RootItemID)] = &types.Item{
		ItemID:    types.RootItemID,
		Name:      "content",
		Path:      "/content",
		Protected: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s
}

func key(id string) string {
	return strings.ToLower(strings.Trim(id, "{}"))
}

// Add inserts item under item.ParentID and indexes its links. A missing
// ItemID is generated. Returns the ID used.
func (s *Store) Add(item *types.Item) (string, error) {
	if item == nil {
		return "", types.ErrInvalidData
	}
	if strings.TrimSpace(item.Name) == "" {
		return "", types.ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.items[key(item.ParentID)]
	if !ok {
		return "", types.ErrNotFound
	}
	if item.ItemID == "" {
		item.ItemID = uuid.Must(uuid.NewV7()).String()
	}
	if !types.ValidID(item.ItemID) {
		return "", types.ErrInvalidID
	}
	if _, dup := s.items[key(item.ItemID)]; dup {
		return "", types.ErrInvalidID
	}
	c := item.Clone()
	c.ParentID = parent.ItemID
	c.Path = parent.Path + "/" + c.Name
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.items[key(c.ItemID)] = c
	s.indexLocked(c)
	return c.ItemID, nil
}

// GetItem returns a copy of the item.
func (s *Store) GetItem(_ context.Context, id string) (*types.Item, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key(id)]
	if !ok {
		return nil, types.ErrNotFound
	}
	return item.Clone(), nil
}

// Children returns copies of the item's children ordered by sort order and name.
func (s *Store) Children(_ context.Context, id string) ([]*types.Item, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*types.Item{}
	k := key(id)
	for _, item := range s.items {
		if item.ParentID != "" && key(item.ParentID) == k {
			out = append(out, item.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *types.Item) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name), cmp.Compare(a.ItemID, b.ItemID))
	})
	return out, nil
}

// BeginEdit opens an edit on a copy of the item.
func (s *Store) BeginEdit(ctx context.Context, id string, opts types.EditOptions) (types.Editor, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Protected && !opts.Unrestricted {
		return nil, types.ErrAccessDenied
	}
	return &editor{store: s, item: item}, nil
}

// Delete removes the item and its descendants together with their outgoing
// links. Incoming links stay.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	root, ok := s.items[key(id)]
	if !ok {
		return types.ErrNotFound
	}
	var drop func(k string)
	drop = func(k string) {
		for ck, item := range s.items {
			if item.ParentID != "" && key(item.ParentID) == k {
				drop(ck)
			}
		}
		delete(s.items, k)
		delete(s.links, k)
	}
	drop(key(root.ItemID))
	return nil
}

// GetReferrers returns the links pointing at item ordered by creation.
func (s *Store) GetReferrers(_ context.Context, item *types.Item) ([]*types.Link, error) {
	if item == nil || item.ItemID == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referrersLocked(key(item.ItemID)), nil
}

// GetReferrerCount returns the number of links pointing at item.
func (s *Store) GetReferrerCount(ctx context.Context, item *types.Item) (int, error) {
	refs, err := s.GetReferrers(ctx, item)
	return len(refs), err
}

// Links returns a copy of every indexed link.
func (s *Store) Links() []*types.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Link
	for _, ls := range s.links {
		for _, l := range ls {
			c := *l
			out = append(out, &c)
		}
	}
	sortLinks(out)
	return out
}

func (s *Store) referrersLocked(target string) []*types.Link {
	out := []*types.Link{}
	for _, ls := range s.links {
		for _, l := range ls {
			if key(l.TargetID) == target {
				c := *l
				out = append(out, &c)
			}
		}
	}
	sortLinks(out)
	return out
}

func sortLinks(ls []*types.Link) {
	slices.SortFunc(ls, func(a, b *types.Link) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.LinkID, b.LinkID))
	})
}

// indexLocked replaces the outgoing links of item. The caller must hold s.mu.
func (s *Store) indexLocked(item *types.Item) {
	k := key(item.ItemID)
	delete(s.links, k)
	if s.registry == nil {
		return
	}
	now := time.Now().UTC()
	for i := range item.Fields {
		f := &item.Fields[i]
		h, ok := s.registry.Resolve(f)
		if !ok {
			continue
		}
		seen := make(map[string]bool)
		for _, target := range h.References(f) {
			tk := key(target)
			if tk == "" || seen[tk] {
				continue
			}
			seen[tk] = true
			s.links[k] = append(s.links[k], &types.Link{
				LinkID:        uuid.Must(uuid.NewV7()).String(),
				SourceItemID:  item.ItemID,
				SourceFieldID: f.FieldID,
				TargetID:      target,
				CreatedAt:     now,
			})
		}
	}
}

type editor struct {
	store  *Store
	item   *types.Item
	closed bool
}

func (e *editor) Item() *types.Item { return e.item }

func (e *editor) Commit() error {
	if e.closed {
		return types.ErrEditClosed
	}
	e.closed = true
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(e.item.ItemID)
	if _, ok := s.items[k]; !ok {
		return types.ErrNotFound
	}
	c := e.item.Clone()
	c.UpdatedAt = time.Now().UTC()
	s.items[k] = c
	s.indexLocked(c)
	return nil
}

func (e *editor) Rollback() error {
	e.closed = true
	return nil
}
