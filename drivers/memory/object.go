// Package memory provides in-process implementations of the medialib storage
// and persistence ports, for development setups and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	medialib "github.com/shoraid/go-medialib"
)

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// ObjectStorage keeps objects in a map guarded by a mutex.
type ObjectStorage struct {
	mu         sync.RWMutex
	objects    map[string]object
	baseURL    string
	visibility medialib.Visibility
	now        func() time.Time
}

// NewObjectStorage returns an empty store whose URLs are rooted at baseURL.
func NewObjectStorage(baseURL string, visibility medialib.Visibility) *ObjectStorage {
	return &ObjectStorage{
		objects:    map[string]object{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		visibility: visibility,
		now:        time.Now,
	}
}

// Keys lists the stored keys. Order is unspecified.
func (s *ObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

func (s *ObjectStorage) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, srcKey)
	}
	obj.data = bytes.Clone(obj.data)
	obj.lastModified = s.now()
	s.objects[dstKey] = obj
	return nil
}

func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *ObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok, nil
}

func (s *ObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *ObjectStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("expires", fmt.Sprint(s.now().Add(expiry).Unix()))
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (s *ObjectStorage) GetURL(ctx context.Context, key string) (string, error) {
	return s.baseURL + "/" + key, nil
}

func (s *ObjectStorage) Head(ctx context.Context, key string) (medialib.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return medialib.ObjectInfo{}, fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, key)
	}
	return medialib.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
	}, nil
}

func (s *ObjectStorage) Put(ctx context.Context, key string, file io.Reader, contentType string) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("%w: %w", medialib.ErrInternal, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{data: data, contentType: contentType, lastModified: s.now()}
	return nil
}

func (s *ObjectStorage) SignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("method", "PUT")
	q.Set("content-type", contentType)
	q.Set("expires", fmt.Sprint(s.now().Add(expiry).Unix()))
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (s *ObjectStorage) Visibility() medialib.Visibility {
	return s.visibility
}
