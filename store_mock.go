package medialib

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockMediaStore is a testify.Mock implementation of MediaStore.
type MockMediaStore struct {
	mock.Mock
}

var _ MediaStore = (*MockMediaStore)(nil)

func (m *MockMediaStore) Create(ctx context.Context, media *Media) error {
	args := m.Called(ctx, media)
	return args.Error(0)
}

func (m *MockMediaStore) FindByID(ctx context.Context, id int64) (*Media, error) {
	args := m.Called(ctx, id)
	if media, ok := args.Get(0).(*Media); ok {
		return media, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMediaStore) FindMany(ctx context.Context, filter MediaFilter) ([]*Media, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]*Media); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMediaStore) Update(ctx context.Context, id int64, patch MediaPatch) (*Media, error) {
	args := m.Called(ctx, id, patch)
	if media, ok := args.Get(0).(*Media); ok {
		return media, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMediaStore) MaxOrder(ctx context.Context, ref ModelRef, collection string) (int, error) {
	args := m.Called(ctx, ref, collection)
	return args.Int(0), args.Error(1)
}
