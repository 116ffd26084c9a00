package medialib

import (
	"errors"
	"fmt"
)

var (
	ErrInternal              = errors.New("media: internal storage error")
	ErrInvalidConfig         = errors.New("media: invalid configuration")
	ErrInvalidDefaultStorage = errors.New("media: invalid default storage")
	ErrInvalidDisk           = errors.New("media: unknown disk")
	ErrNotFound              = errors.New("media: not found")
	ErrValidation            = errors.New("media: validation failed")
	ErrIntegrityMismatch     = errors.New("media: uploaded object does not match declared metadata")
	ErrRelocationFailed      = errors.New("media: failed to move upload to its permanent key")
)

// Validation errors. All of them match ErrValidation with errors.Is.
var (
	ErrInvalidInput         = fmt.Errorf("%w: invalid input", ErrValidation)
	ErrInvalidKey           = fmt.Errorf("%w: invalid key name", ErrValidation)
	ErrInvalidModelType     = fmt.Errorf("%w: invalid model type", ErrValidation)
	ErrInvalidCollection    = fmt.Errorf("%w: invalid collection", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidOrder         = fmt.Errorf("%w: invalid order", ErrValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file too large", ErrValidation)
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrValidation)
)

// Lookup errors. All of them match ErrNotFound with errors.Is.
var (
	ErrObjectNotFound     = fmt.Errorf("%w: object", ErrNotFound)
	ErrMediaNotFound      = fmt.Errorf("%w: media record", ErrNotFound)
	ErrUploadNotFound     = fmt.Errorf("%w: uploaded object", ErrNotFound)
	ErrConversionNotFound = fmt.Errorf("%w: conversion", ErrNotFound)
)
