package medialib

import (
	"context"
	"time"
)

// MediaOrder selects how FindMany sorts its result.
type MediaOrder int

const (
	// OrderByPosition sorts by collection, order_column, created_at, id.
	OrderByPosition MediaOrder = iota
	// OrderByOldest sorts by created_at, id.
	OrderByOldest
)

// MediaFilter narrows FindMany. Zero fields do not filter.
type MediaFilter struct {
	IDs           []int64
	ModelType     ModelType
	ModelID       *int64
	Collection    string
	Statuses      []Status
	CreatedBefore time.Time
	OrderBy       MediaOrder
	Limit         int
}

// MediaPatch is a partial update. Nil fields are left untouched.
//
// CustomValues replaces the caller-owned metadata while keeping the generated
// conversion flags. GeneratedConversions is merged flag by flag into the stored ones.
type MediaPatch struct {
	Name                 *string
	CollectionName       *string
	ModelID              *int64
	OrderColumn          *int
	Status               *Status
	ConversionAttempts   *int
	CustomValues         map[string]any
	GeneratedConversions map[string]bool
}

// MediaStore is the persistence port of the pipeline.
// Implementations return ErrMediaNotFound for unknown ids.
type MediaStore interface {
	// Create persists m and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, m *Media) error

	FindByID(ctx context.Context, id int64) (*Media, error)

	FindMany(ctx context.Context, filter MediaFilter) ([]*Media, error)

	// Update applies patch and returns the updated record.
	Update(ctx context.Context, id int64, patch MediaPatch) (*Media, error)

	Delete(ctx context.Context, id int64) error

	// MaxOrder returns the highest order_column in the group, or 0 when it is empty.
	MaxOrder(ctx context.Context, ref ModelRef, collection string) (int, error)
}

// Apply mutates m according to p. Stores without server-side JSON merging use it.
func (p MediaPatch) Apply(m *Media) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.CollectionName != nil {
		m.CollectionName = *p.CollectionName
	}
	if p.ModelID != nil {
		m.Model.ID = *p.ModelID
	}
	if p.OrderColumn != nil {
		m.OrderColumn = *p.OrderColumn
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ConversionAttempts != nil {
		m.ConversionAttempts = *p.ConversionAttempts
	}
	if p.CustomValues != nil {
		m.CustomProperties = m.CustomProperties.WithValues(p.CustomValues)
	}
	if p.GeneratedConversions != nil {
		m.CustomProperties = m.CustomProperties.WithConversions(p.GeneratedConversions)
	}
}

func ptr[T any](v T) *T {
	return &v
}
