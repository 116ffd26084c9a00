package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	medialib "github.com/shoraid/go-medialib"
)

// MediaStore is a medialib.MediaStore backed by a map.
type MediaStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*medialib.Media
	now    func() time.Time
}

// StoreOption customizes a MediaStore.
type StoreOption func(*MediaStore)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MediaStore) { s.now = now }
}

func NewMediaStore(opts ...StoreOption) *MediaStore {
	s := &MediaStore{
		rows: map[int64]*medialib.Media{},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MediaStore) Create(ctx context.Context, m *medialib.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	m.ID = s.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
	m.CustomProperties = m.CustomProperties.Clone()

	s.rows[m.ID] = m.Clone()
	return nil
}

func (s *MediaStore) FindByID(ctx context.Context, id int64) (*medialib.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}
	return m.Clone(), nil
}

func matches(m *medialib.Media, f medialib.MediaFilter) bool {
	switch {
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, m.ID):
		return false
	case f.ModelType != "" && m.Model.Type != f.ModelType:
		return false
	case f.ModelID != nil && m.Model.ID != *f.ModelID:
		return false
	case f.Collection != "" && m.CollectionName != f.Collection:
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status):
		return false
	case !f.CreatedBefore.IsZero() && !m.CreatedAt.Before(f.CreatedBefore):
		return false
	}
	return true
}

func (s *MediaStore) FindMany(ctx context.Context, f medialib.MediaFilter) ([]*medialib.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*medialib.Media
	for _, m := range s.rows {
		if matches(m, f) {
			out = append(out, m.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *medialib.Media) int {
		if f.OrderBy == medialib.OrderByPosition {
			if c := cmp.Compare(a.CollectionName, b.CollectionName); c != 0 {
				return c
			}
			if c := cmp.Compare(a.OrderColumn, b.OrderColumn); c != 0 {
				return c
			}
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MediaStore) Update(ctx context.Context, id int64, patch medialib.MediaPatch) (*medialib.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}

	patch.Apply(m)
	m.UpdatedAt = s.now()
	return m.Clone(), nil
}

func (s *MediaStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}
	delete(s.rows, id)
	return nil
}

func (s *MediaStore) MaxOrder(ctx context.Context, ref medialib.ModelRef, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxOrder := 0
	for _, m := range s.rows {
		if m.Model == ref && m.CollectionName == collection && m.OrderColumn > maxOrder {
			maxOrder = m.OrderColumn
		}
	}
	return maxOrder, nil
}
