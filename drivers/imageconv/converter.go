// Package imageconv renders medialib conversions with disintegration/imaging.
package imageconv

import (
	"context"
	"fmt"
	"io"
	"mime"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	medialib "github.com/shoraid/go-medialib"
)

const defaultJPEGQuality = 85

var formats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
	"image/tiff": imaging.TIFF,
}

// Converter resizes raster images to the conversion width, keeping the aspect
// ratio and the original format. Images narrower than the target are re-encoded
// without upscaling.
type Converter struct {
	quality int
	filter  imaging.ResampleFilter
}

type Option func(*Converter)

// WithJPEGQuality sets the JPEG quality (1-100) of derivatives.
func WithJPEGQuality(q int) Option {
	return func(c *Converter) {
		if q >= 1 && q <= 100 {
			c.quality = q
		}
	}
}

// WithFilter overrides the resampling filter; the default is Lanczos.
func WithFilter(f imaging.ResampleFilter) Option {
	return func(c *Converter) { c.filter = f }
}

func New(opts ...Option) *Converter {
	c := &Converter{quality: defaultJPEGQuality, filter: imaging.Lanczos}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func mediaType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return s
	}
	return mt
}

func (c *Converter) Supports(mimeType string) bool {
	_, ok := formats[mediaType(mimeType)]
	return ok
}

func (c *Converter) Convert(ctx context.Context, srcPath, mimeType string, conv medialib.Conversion, dst io.Writer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mt := mediaType(mimeType)
	format, ok := formats[mt]
	if !ok {
		return "", fmt.Errorf("%w: %q", medialib.ErrUnsupportedMediaType, mimeType)
	}
	if conv.Width <= 0 {
		return "", fmt.Errorf("%w: conversion %s has width %d", medialib.ErrInvalidConfig, conv.Name, conv.Width)
	}

	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", srcPath, err)
	}

	if img.Bounds().Dx() > conv.Width {
		img = imaging.Resize(img, conv.Width, 0, c.filter)
	}

	if err := imaging.Encode(dst, img, format, imaging.JPEGQuality(c.quality)); err != nil {
		return "", fmt.Errorf("encode %s: %w", conv.Name, err)
	}

	log.Debug().
		Str("conversion", conv.Name).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("image converted")

	return mt, nil
}
