package medialib

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager maps disk aliases to storage drivers.
// Media records remember the alias they were written to, so a deployment can
// move new uploads to another backend without breaking old records.
type Manager struct {
	storageMap   map[string]StorageDriver // all available storages by alias
	defaultAlias string
}

// NewManager creates a Manager with a default storage alias.
// Returns an error if the alias does not exist in the provided storage map.
func NewManager(defaultStorageAlias string, storage map[string]StorageDriver) (*Manager, error) {
	if _, exists := storage[defaultStorageAlias]; !exists {
		return nil, ErrInvalidDefaultStorage
	}

	return &Manager{
		storageMap:   storage,
		defaultAlias: defaultStorageAlias,
	}, nil
}

// DefaultAlias is the alias new records are written to.
func (m *Manager) DefaultAlias() string {
	return m.defaultAlias
}

// Disk returns the driver registered under alias.
func (m *Manager) Disk(alias string) (StorageDriver, error) {
	d, ok := m.storageMap[alias]
	if !ok || d == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDisk, alias)
	}
	return d, nil
}

// DeleteMany removes multiple objects concurrently from the disk.
// Every deletion runs to completion; the first error encountered is returned.
func (m *Manager) DeleteMany(ctx context.Context, alias string, keys ...string) error {
	disk, err := m.Disk(alias)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return disk.Delete(ctx, key)
		})
	}

	return g.Wait()
}

// URL returns a direct URL on public disks and a signed one on private disks.
func (m *Manager) URL(ctx context.Context, alias, key string, expiry time.Duration) (string, error) {
	disk, err := m.Disk(alias)
	if err != nil {
		return "", err
	}

	if disk.Visibility() == VisibilityPublic {
		return disk.GetURL(ctx, key)
	}
	return disk.GetSignedURL(ctx, key, expiry)
}

// ObjectRef addresses one object on one disk.
type ObjectRef struct {
	Disk string
	Key  string
}

// URLs resolves many objects concurrently, keeping the input order.
func (m *Manager) URLs(ctx context.Context, objects []ObjectRef, expiry time.Duration) ([]string, error) {
	urls := make([]string, len(objects))
	g, ctx := errgroup.WithContext(ctx)

	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			url, err := m.URL(ctx, obj.Disk, obj.Key, expiry)
			if err != nil {
				return err
			}

			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return urls, nil
}
