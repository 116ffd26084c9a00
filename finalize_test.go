package medialib_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	medialib "github.com/shoraid/go-medialib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CompleteUpload(t *testing.T) {
	ctx := context.Background()
	listing := medialib.ModelRef{Type: medialib.ModelListings, ID: 9}
	payload := bytes.Repeat([]byte("x"), 2048)

	t.Run("should persist and relocate an associated image", func(t *testing.T) {
		env := newTestEnv(t)
		tempKey := "gallery/temp/listings-9-1740830400-img.jpg"
		env.putTemp(t, tempKey, payload, "image/jpeg")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:          tempKey,
			Name:             "IMG 1.jpg",
			MimeType:         "image/jpeg",
			Size:             2048,
			Model:            listing,
			ModelSlug:        "Sunny Loft",
			Collection:       "gallery",
			CustomProperties: map[string]any{"alt": "front"},
		})

		require.NoError(t, err, "expected upload to complete")
		assert.Equal(t, "sunny-loft-9.jpg", got.FileName)
		assert.Equal(t, medialib.StatusWaitingOptimization, got.Status)
		assert.Equal(t, 1, got.OrderColumn)
		assert.Equal(t, "gallery", got.CollectionName)
		assert.Equal(t, "s3", got.Disk)
		assert.Equal(t, "https://cdn.test/1/sunny-loft-9.jpg", got.URL)
		assert.Equal(t, map[string]any{"alt": "front"}, got.CustomProperties.Values)
		assert.Empty(t, got.CustomProperties.GeneratedConversions)

		assert.Equal(t, string(payload), env.object(t, "1/sunny-loft-9.jpg"), "expected original at permanent key")
		assert.False(t, env.exists(t, tempKey), "expected temp object to be removed")
		assert.Equal(t, medialib.StatusWaitingOptimization, env.find(t, got.ID).Status)
	})

	t.Run("should append to the end of the collection", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t, medialib.Media{Model: listing, CollectionName: "gallery", OrderColumn: 4}, []byte("a"))
		env.putTemp(t, "gallery/temp/next.png", payload, "image/png")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:    "gallery/temp/next.png",
			Name:       "next.png",
			MimeType:   "image/png",
			Size:       2048,
			Model:      listing,
			Collection: "gallery",
		})

		require.NoError(t, err)
		assert.Equal(t, 5, got.OrderColumn)
		assert.Equal(t, "listings-9-next.png", got.FileName)
	})

	t.Run("should keep unassociated uploads pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.putTemp(t, "temp/temp/rand-img.jpg", payload, "image/jpeg")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:  "temp/temp/rand-img.jpg",
			Name:     "img.jpg",
			MimeType: "image/jpeg",
			Size:     2048,
		})

		require.NoError(t, err)
		assert.Equal(t, medialib.StatusPending, got.Status)
		assert.Equal(t, medialib.DefaultCollection, got.CollectionName)
		assert.Equal(t, "rand.jpg", got.FileName)
	})

	t.Run("should mark non-convertible uploads done", func(t *testing.T) {
		env := newTestEnv(t)
		env.putTemp(t, "documents/temp/brochure.pdf", payload, "application/pdf")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:    "documents/temp/brochure.pdf",
			Name:       "brochure.pdf",
			MimeType:   "application/pdf",
			Size:       2048,
			Model:      listing,
			Collection: "documents",
		})

		require.NoError(t, err)
		assert.Equal(t, medialib.StatusDone, got.Status)
	})

	t.Run("should honour an explicit status", func(t *testing.T) {
		env := newTestEnv(t)
		env.putTemp(t, "temp/temp/a.jpg", payload, "image/jpeg")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:  "temp/temp/a.jpg",
			Name:     "a.jpg",
			MimeType: "image/jpeg",
			Size:     2048,
			Status:   medialib.StatusDone,
		})

		require.NoError(t, err)
		assert.Equal(t, medialib.StatusDone, got.Status)
	})

	t.Run("should sign URLs on private disks", func(t *testing.T) {
		env := newTestEnv(t, withVisibility(medialib.VisibilityPrivate))
		env.putTemp(t, "temp/temp/a.jpg", payload, "image/jpeg")

		got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
			TempKey:  "temp/temp/a.jpg",
			Name:     "a.jpg",
			MimeType: "image/jpeg",
			Size:     2048,
		})

		require.NoError(t, err)
		assert.Contains(t, got.URL, "https://cdn.test/1/rand.jpg?expires=")
	})
}

func TestService_CompleteUpload_Rejections(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte("x"), 2048)

	tests := []struct {
		name        string
		stored      string
		contentType string
		req         medialib.CompleteUploadRequest
		expectedErr error
	}{
		{
			name:        "should reject size mismatch",
			stored:      "temp/temp/a.jpg",
			contentType: "image/jpeg",
			req:         medialib.CompleteUploadRequest{TempKey: "temp/temp/a.jpg", Name: "a.jpg", MimeType: "image/jpeg", Size: 4096},
			expectedErr: medialib.ErrIntegrityMismatch,
		},
		{
			name:        "should reject content type mismatch",
			stored:      "temp/temp/a.jpg",
			contentType: "image/png",
			req:         medialib.CompleteUploadRequest{TempKey: "temp/temp/a.jpg", Name: "a.jpg", MimeType: "image/jpeg", Size: 2048},
			expectedErr: medialib.ErrIntegrityMismatch,
		},
		{
			name:        "should report a missing upload",
			req:         medialib.CompleteUploadRequest{TempKey: "temp/temp/gone.jpg", Name: "a.jpg", MimeType: "image/jpeg", Size: 2048},
			expectedErr: medialib.ErrUploadNotFound,
		},
		{
			name:        "should reject keys outside the temp area",
			stored:      "1/a.jpg",
			contentType: "image/jpeg",
			req:         medialib.CompleteUploadRequest{TempKey: "1/a.jpg", Name: "a.jpg", MimeType: "image/jpeg", Size: 2048},
			expectedErr: medialib.ErrInvalidKey,
		},
		{
			name:        "should reject unknown status",
			stored:      "temp/temp/a.jpg",
			contentType: "image/jpeg",
			req:         medialib.CompleteUploadRequest{TempKey: "temp/temp/a.jpg", Name: "a.jpg", MimeType: "image/jpeg", Size: 2048, Status: "ARCHIVED"},
			expectedErr: medialib.ErrInvalidStatus,
		},
		{
			name:        "should reject policy violations",
			stored:      "logos/temp/a.gif",
			contentType: "image/gif",
			req:         medialib.CompleteUploadRequest{TempKey: "logos/temp/a.gif", Name: "a.gif", MimeType: "image/gif", Size: 2048, Collection: "logos"},
			expectedErr: medialib.ErrUnsupportedMediaType,
		},
		{
			name:        "should reject a missing name",
			stored:      "temp/temp/a.jpg",
			contentType: "image/jpeg",
			req:         medialib.CompleteUploadRequest{TempKey: "temp/temp/a.jpg", MimeType: "image/jpeg", Size: 2048},
			expectedErr: medialib.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.stored != "" {
				env.putTemp(t, tt.stored, payload, tt.contentType)
			}

			got, err := env.svc.CompleteUpload(ctx, tt.req)

			assert.ErrorIs(t, err, tt.expectedErr, "expected completion error")
			assert.Nil(t, got)

			records, err := env.store.FindMany(ctx, medialib.MediaFilter{})
			require.NoError(t, err)
			assert.Empty(t, records, "expected no record on rejection")
			if tt.stored != "" {
				assert.True(t, env.exists(t, tt.stored), "expected uploaded object to be left alone")
			}
		})
	}
}

func TestService_CompleteUpload_RelocationFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withDisk(func(d medialib.StorageDriver) medialib.StorageDriver {
		return &faultyDisk{StorageDriver: d, copyErr: medialib.ErrInternal}
	}))
	env.putTemp(t, "temp/temp/a.jpg", []byte("abc"), "image/jpeg")

	got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
		TempKey:  "temp/temp/a.jpg",
		Name:     "a.jpg",
		MimeType: "image/jpeg",
		Size:     3,
	})

	assert.ErrorIs(t, err, medialib.ErrRelocationFailed)
	assert.ErrorIs(t, err, medialib.ErrInternal, "expected cause to be kept")
	assert.Nil(t, got)

	records, err := env.store.FindMany(ctx, medialib.MediaFilter{})
	require.NoError(t, err)
	assert.Empty(t, records, "expected record to be removed after failed relocation")
	assert.True(t, env.exists(t, "temp/temp/a.jpg"), "expected temp object to be kept for a retry")
}

func TestService_CompleteUpload_URLFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withDisk(func(d medialib.StorageDriver) medialib.StorageDriver {
		return &faultyDisk{StorageDriver: d, urlErr: medialib.ErrInternal}
	}))
	env.putTemp(t, "temp/temp/a.jpg", []byte("abc"), "image/jpeg")

	got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
		TempKey:  "temp/temp/a.jpg",
		Name:     "a.jpg",
		MimeType: "image/jpeg",
		Size:     3,
	})

	require.NoError(t, err, "expected committed upload to succeed without a url")
	require.NotNil(t, got)
	assert.Empty(t, got.URL)
	env.find(t, got.ID)
	assert.Equal(t, "abc", env.object(t, got.OriginalKey()))
	assert.False(t, env.exists(t, "temp/temp/a.jpg"), "expected temp object to be removed")
}

func TestService_CompleteUpload_AfterClose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withConfig(func(c *medialib.Config) { c.OptimizeOnFinalize = true }))
	env.putTemp(t, "gallery/temp/a.jpg", []byte("abc"), "image/jpeg")
	require.NoError(t, env.svc.Close(ctx))

	got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
		TempKey:    "gallery/temp/a.jpg",
		Name:       "a.jpg",
		MimeType:   "image/jpeg",
		Size:       3,
		Model:      medialib.ModelRef{Type: medialib.ModelListings, ID: 9},
		ModelSlug:  "loft",
		Collection: "gallery",
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Close(ctx))
	assert.Equal(t, medialib.StatusWaitingOptimization, env.find(t, got.ID).Status, "expected record to be left for the optimization sweep")
	assert.Zero(t, env.conv.calls, "expected no background conversion after close")
}

func TestService_CompleteUpload_OptimizeOnFinalize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withConfig(func(c *medialib.Config) { c.OptimizeOnFinalize = true }))
	env.putTemp(t, "gallery/temp/a.jpg", []byte("abc"), "image/jpeg")

	got, err := env.svc.CompleteUpload(ctx, medialib.CompleteUploadRequest{
		TempKey:    "gallery/temp/a.jpg",
		Name:       "a.jpg",
		MimeType:   "image/jpeg",
		Size:       3,
		Model:      medialib.ModelRef{Type: medialib.ModelListings, ID: 9},
		ModelSlug:  "loft",
		Collection: "gallery",
	})
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, env.svc.Close(closeCtx), "expected background conversions to finish")

	m := env.find(t, got.ID)
	assert.Equal(t, medialib.StatusDone, m.Status)
	for _, c := range medialib.DefaultConversions() {
		assert.True(t, m.CustomProperties.HasConversion(c.Name), "expected %s to be generated", c.Name)
	}
	assert.Equal(t, "thumb:300:abc", env.object(t, "1/conversions/loft-9-thumb.jpg"))
}
