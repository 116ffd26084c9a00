package medialib

import (
	"context"
	"io"
	"time"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private" // Objects are private, need signed URL to access
	VisibilityPublic  Visibility = "public"  // Objects are publicly accessible via direct URL
)

// ObjectInfo is what a HEAD request reports about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// StorageDriver defines the basic contract for any storage backend (S3, R2, MinIO, in-memory, etc.).
// Implementations must map a missing object to ErrObjectNotFound and any other
// backend failure to ErrInternal.
type StorageDriver interface {
	// Copy duplicates the object at srcKey to dstKey, applying the driver's ACL.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes the object identified by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether an object with the given key exists in storage.
	Exists(ctx context.Context, key string) (exists bool, err error)

	// Get opens the object for reading. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// GetSignedURL generates a temporary, time-limited download URL.
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (url string, err error)

	// GetURL returns a direct (optionally CDN-fronted) URL for the object.
	GetURL(ctx context.Context, key string) (url string, err error)

	// Head reports the size and content type of the object.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Put uploads the content of file to key with the given content type.
	Put(ctx context.Context, key string, file io.Reader, contentType string) error

	// SignUpload mints a PUT URL bound to key and contentType that expires after expiry.
	SignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (url string, err error)

	// Visibility reports whether objects written by this driver are public or private.
	Visibility() Visibility
}
