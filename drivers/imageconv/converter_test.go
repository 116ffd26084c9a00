package imageconv

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	medialib "github.com/shoraid/go-medialib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path), "expected fixture image to be written")
	return path
}

func TestConverter_Supports(t *testing.T) {
	c := New()

	assert.True(t, c.Supports("image/jpeg"))
	assert.True(t, c.Supports("image/png; charset=binary"))
	assert.False(t, c.Supports("image/svg+xml"))
	assert.False(t, c.Supports("application/pdf"))
}

func TestConverter_Convert(t *testing.T) {
	tests := []struct {
		name           string
		file           string
		mimeType       string
		width          int
		expectedWidth  int
		expectedHeight int
	}{
		{
			name:           "should downscale png keeping aspect ratio",
			file:           "wide.png",
			mimeType:       "image/png",
			width:          100,
			expectedWidth:  100,
			expectedHeight: 50,
		},
		{
			name:           "should downscale jpeg",
			file:           "wide.jpg",
			mimeType:       "image/jpeg",
			width:          200,
			expectedWidth:  200,
			expectedHeight: 100,
		},
		{
			name:           "should not upscale small images",
			file:           "wide.png",
			mimeType:       "image/png",
			width:          1920,
			expectedWidth:  400,
			expectedHeight: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeImage(t, tt.file, 400, 200)
			var out bytes.Buffer

			contentType, err := New().Convert(context.Background(), src, tt.mimeType,
				medialib.Conversion{Name: medialib.ConversionThumb, Width: tt.width}, &out)

			require.NoError(t, err)
			assert.Equal(t, tt.mimeType, contentType)

			img, err := imaging.Decode(&out)
			require.NoError(t, err, "expected derivative to decode")
			assert.Equal(t, tt.expectedWidth, img.Bounds().Dx())
			assert.Equal(t, tt.expectedHeight, img.Bounds().Dy())
		})
	}
}

func TestConverter_Convert_Errors(t *testing.T) {
	c := New(WithJPEGQuality(70))

	t.Run("should reject unsupported type", func(t *testing.T) {
		_, err := c.Convert(context.Background(), "unused", "application/pdf", medialib.Conversion{Name: "thumb", Width: 300}, &bytes.Buffer{})
		assert.ErrorIs(t, err, medialib.ErrUnsupportedMediaType)
	})

	t.Run("should reject zero width", func(t *testing.T) {
		_, err := c.Convert(context.Background(), "unused", "image/png", medialib.Conversion{Name: "thumb"}, &bytes.Buffer{})
		assert.ErrorIs(t, err, medialib.ErrInvalidConfig)
	})

	t.Run("should fail on corrupt input", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.jpg")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

		_, err := c.Convert(context.Background(), path, "image/jpeg", medialib.Conversion{Name: "thumb", Width: 300}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("should stop when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Convert(ctx, "unused", "image/png", medialib.Conversion{Name: "thumb", Width: 300}, &bytes.Buffer{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
