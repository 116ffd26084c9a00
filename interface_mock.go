package medialib

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStorageDriver is a testify.Mock implementation of StorageDriver.
type MockStorageDriver struct {
	mock.Mock
}

var _ StorageDriver = (*MockStorageDriver)(nil)

func (m *MockStorageDriver) Copy(ctx context.Context, srcKey, dstKey string) error {
	args := m.Called(ctx, srcKey, dstKey)
	return args.Error(0)
}

func (m *MockStorageDriver) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorageDriver) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorageDriver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorageDriver) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageDriver) GetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorageDriver) Head(ctx context.Context, key string) (ObjectInfo, error) {
	args := m.Called(ctx, key)
	info, _ := args.Get(0).(ObjectInfo)
	return info, args.Error(1)
}

func (m *MockStorageDriver) Put(ctx context.Context, key string, file io.Reader, contentType string) error {
	args := m.Called(ctx, key, file, contentType)
	return args.Error(0)
}

func (m *MockStorageDriver) SignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageDriver) Visibility() Visibility {
	args := m.Called()
	return args.Get(0).(Visibility)
}
