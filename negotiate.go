package medialib

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UploadRequest declares a file the client wants to upload.
type UploadRequest struct {
	FileName         string
	MimeType         string
	Size             int64
	Model            ModelRef
	ModelSlug        string
	Collection       string
	CustomProperties map[string]any
}

// UploadTicket is a short-lived credential for a direct upload to storage.
type UploadTicket struct {
	UploadID  string            `json:"uploadId"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Key       string            `json:"key"`
	FileName  string            `json:"fileName"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

func validateDeclaration(name, mimeType string, size int64) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	case strings.TrimSpace(mimeType) == "":
		return fmt.Errorf("%w: mime type is required", ErrInvalidInput)
	case size <= 0:
		return fmt.Errorf("%w: size must be positive", ErrInvalidInput)
	}
	return nil
}

// NegotiateUpload validates the declaration against the upload policies and
// returns a PUT URL for a temporary key. Nothing is persisted.
func (s *Service) NegotiateUpload(ctx context.Context, req UploadRequest) (*UploadTicket, error) {
	if err := validateDeclaration(req.FileName, req.MimeType, req.Size); err != nil {
		return nil, err
	}
	if err := s.policies.Check(req.Model.Type, req.Collection, req.MimeType, req.Size); err != nil {
		return nil, err
	}

	disk, err := s.disks.Disk(s.cfg.Disk)
	if err != nil {
		return nil, err
	}

	now := s.now()
	uploadID := s.newID()
	fileName := TempFileName(req.Model, req.FileName, req.MimeType, now, uploadID)
	key := TempKey(req.Collection, fileName)

	url, err := disk.SignUpload(ctx, key, req.MimeType, s.cfg.UploadURLExpiry)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to sign upload")
		return nil, err
	}

	headers := map[string]string{"Content-Type": req.MimeType}
	if disk.Visibility() == VisibilityPublic {
		headers["x-amz-acl"] = "public-read"
	}

	s.logger.Debug().
		Str("key", key).
		Str("model", req.Model.String()).
		Int64("size", req.Size).
		Msg("upload negotiated")

	return &UploadTicket{
		UploadID:  uploadID,
		URL:       url,
		Method:    http.MethodPut,
		Key:       key,
		FileName:  fileName,
		Headers:   headers,
		ExpiresAt: now.Add(s.cfg.UploadURLExpiry),
	}, nil
}
