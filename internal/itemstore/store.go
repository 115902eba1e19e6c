// Package itemstore keeps the collection of actively scheduled items.
//
// The whole collection lives as one JSON array under a single key of a
// kv.Surface. Every mutation reads the current snapshot, replaces or filters
// the affected entry, and writes the full snapshot back while holding the
// store's lock, so no reader of this Store observes a half-applied change.
package itemstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/starford/incremental/internal/apperr"
	"github.com/starford/incremental/internal/kv"
	"github.com/starford/incremental/internal/models"
)

// DefaultKey is the surface key the collection is stored under.
const DefaultKey = "incremental.items"

// Store owns read-modify-write access to the persisted item collection.
type Store struct {
	mu      sync.Mutex
	surface kv.Surface
	key     string
}

// New creates a Store over surface. An empty key selects DefaultKey.
func New(surface kv.Surface, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{surface: surface, key: key}
}

// Load returns every stored item. An absent collection is empty, not an error.
func (s *Store) Load(ctx context.Context) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the item with id, if stored.
func (s *Store) Get(ctx context.Context, id string) (models.Item, bool, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return models.Item{}, false, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return models.Item{}, false, nil
}

// Upsert replaces the item sharing item.ID, or appends it when absent.
func (s *Store) Upsert(ctx context.Context, item models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	items = slices.DeleteFunc(items, func(it models.Item) bool { return it.ID == item.ID })
	items = append(items, item.Clone())
	return s.save(ctx, items)
}

// Remove drops the item with id. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	n := len(items)
	items = slices.DeleteFunc(items, func(it models.Item) bool { return it.ID == id })
	if len(items) == n {
		return nil
	}
	return s.save(ctx, items)
}

func (s *Store) load(ctx context.Context) ([]models.Item, error) {
	raw, ok, err := s.surface.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("itemstore: load: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	if !ok || len(raw) == 0 {
		return []models.Item{}, nil
	}
	var items []models.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("itemstore: decode: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	for i := range items {
		items[i] = items[i].Clone()
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []models.Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("itemstore: encode: %w", err)
	}
	if err := s.surface.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("itemstore: save: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	return nil
}
