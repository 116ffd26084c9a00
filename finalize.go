package medialib

import (
	"context"
	"errors"
	"fmt"
)

// CompleteUploadRequest turns a negotiated upload into a media record.
type CompleteUploadRequest struct {
	TempKey          string
	Name             string
	MimeType         string
	Size             int64
	Model            ModelRef
	ModelSlug        string
	Collection       string
	CustomProperties map[string]any
	// Status overrides the computed initial status when set.
	Status Status
}

// initialStatus picks the first status a finalized record gets:
// override, PENDING when unassociated, WAITING_OPTIMIZATION when convertible, else DONE.
func (s *Service) initialStatus(req CompleteUploadRequest) Status {
	switch {
	case req.Status != "":
		return req.Status
	case !req.Model.Associated():
		return StatusPending
	case s.convertible(req.MimeType):
		return StatusWaitingOptimization
	default:
		return StatusDone
	}
}

func (s *Service) verifyUpload(ctx context.Context, disk StorageDriver, req CompleteUploadRequest) error {
	info, err := disk.Head(ctx, req.TempKey)
	if errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", ErrUploadNotFound, req.TempKey)
	}
	if err != nil {
		return err
	}

	if info.Size != req.Size {
		return fmt.Errorf("%w: declared %d bytes, stored %d", ErrIntegrityMismatch, req.Size, info.Size)
	}
	if info.ContentType != "" && normalizeMediaType(info.ContentType) != normalizeMediaType(req.MimeType) {
		return fmt.Errorf("%w: declared %q, stored %q", ErrIntegrityMismatch, req.MimeType, info.ContentType)
	}
	return nil
}

// CompleteUpload verifies the object at the temporary key, persists a media
// record and relocates the object to its permanent key. If the relocation fails
// the record is removed again and ErrRelocationFailed is returned.
func (s *Service) CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*ResolvedMedia, error) {
	if err := validateDeclaration(req.Name, req.MimeType, req.Size); err != nil {
		return nil, err
	}
	if !IsTempKey(req.TempKey) {
		return nil, fmt.Errorf("%w: %q is not a temporary upload key", ErrInvalidKey, req.TempKey)
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if err := s.policies.Check(req.Model.Type, req.Collection, req.MimeType, req.Size); err != nil {
		return nil, err
	}

	disk, err := s.disks.Disk(s.cfg.Disk)
	if err != nil {
		return nil, err
	}
	if err := s.verifyUpload(ctx, disk, req); err != nil {
		return nil, err
	}

	collection := req.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	order, err := s.store.MaxOrder(ctx, req.Model, collection)
	if err != nil {
		return nil, fmt.Errorf("next order: %w", err)
	}

	m := &Media{
		Model:            req.Model,
		CollectionName:   collection,
		Name:             req.Name,
		FileName:         PermanentFileName(req.Model, req.ModelSlug, req.Name, req.MimeType, s.newID()),
		MimeType:         req.MimeType,
		Size:             req.Size,
		Disk:             s.cfg.Disk,
		CustomProperties: NewCustomProperties(req.CustomProperties),
		OrderColumn:      order + 1,
		Status:           s.initialStatus(req),
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}

	logger := s.logger.With().Int64("media_id", m.ID).Str("temp_key", req.TempKey).Logger()

	if err := disk.Copy(ctx, req.TempKey, m.OriginalKey()); err != nil {
		logger.Error().Err(err).Str("key", m.OriginalKey()).Msg("failed to relocate upload")
		if derr := s.store.Delete(ctx, m.ID); derr != nil {
			logger.Error().Err(derr).Msg("failed to remove media record after relocation failure")
		}
		return nil, fmt.Errorf("%w: %w", ErrRelocationFailed, err)
	}

	if err := disk.Delete(ctx, req.TempKey); err != nil {
		logger.Warn().Err(err).Msg("failed to delete temporary upload")
	}

	// The record and object are committed at this point; a URL failure only
	// leaves the response without a link.
	url, err := s.disks.URL(ctx, m.Disk, m.OriginalKey(), s.cfg.SignedURLExpiry)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve url for completed upload")
		url = ""
	}

	logger.Info().
		Str("file_name", m.FileName).
		Str("status", string(m.Status)).
		Msg("upload completed")

	if s.cfg.OptimizeOnFinalize && m.Status == StatusWaitingOptimization {
		s.dispatchConversions(ctx, m.ID)
	}

	return &ResolvedMedia{Media: m, URL: url}, nil
}

// dispatchConversions runs the generator in the background, detached from
// the request's cancellation. Close waits for it. Once Close has begun the
// record stays WAITING_OPTIMIZATION for the optimization sweep.
func (s *Service) dispatchConversions(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Info().Int64("media_id", id).Msg("service closing, conversion left to the optimization sweep")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, err := s.GenerateConversions(ctx, id); err != nil {
			s.logger.Error().Err(err).Int64("media_id", id).Msg("background conversion failed")
		}
	}()
}
