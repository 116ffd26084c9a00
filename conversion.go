package medialib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

// Converter renders derivatives of a stored original.
type Converter interface {
	// Supports reports whether originals of mimeType can be converted.
	Supports(mimeType string) bool

	// Convert renders conv from the file at srcPath into dst and returns
	// the content type of the written derivative.
	Convert(ctx context.Context, srcPath, mimeType string, conv Conversion, dst io.Writer) (contentType string, err error)
}

// ConversionReport describes one generator run.
type ConversionReport struct {
	MediaID         int64           `json:"mediaId"`
	Results         map[string]bool `json:"results"`
	Status          Status          `json:"status"`
	OriginalMissing bool            `json:"originalMissing"`
}

// Succeeded counts the conversions that were produced in this run.
func (r *ConversionReport) Succeeded() int {
	n := 0
	for _, ok := range r.Results {
		if ok {
			n++
		}
	}
	return n
}

// GenerateConversions renders every configured conversion of the record.
//
// It is safe to call repeatedly. A missing record is a no-op (nil report).
// A missing original marks every conversion false and leaves the status alone.
// Each conversion is attempted independently; when at least one succeeds the
// record moves to DONE, otherwise it stays put until MaxConversionAttempts
// consecutive empty runs move a WAITING_OPTIMIZATION record to ERROR.
func (s *Service) GenerateConversions(ctx context.Context, id int64) (*ConversionReport, error) {
	m, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrMediaNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Int64("media_id", m.ID).Str("key", m.OriginalKey()).Logger()

	disk, err := s.disks.Disk(m.Disk)
	if err != nil {
		return nil, err
	}

	report := &ConversionReport{MediaID: m.ID, Results: map[string]bool{}, Status: m.Status}

	if _, err := disk.Head(ctx, m.OriginalKey()); err != nil {
		if !errors.Is(err, ErrObjectNotFound) {
			return nil, err
		}

		logger.Warn().Msg("original missing, conversions marked as not generated")
		for _, name := range s.conversionNames() {
			report.Results[name] = false
		}
		report.OriginalMissing = true

		if _, err := s.store.Update(ctx, m.ID, MediaPatch{GeneratedConversions: report.Results}); err != nil {
			return nil, fmt.Errorf("record conversions: %w", err)
		}
		return report, nil
	}

	scratch, err := s.download(ctx, disk, m)
	if err != nil {
		logger.Error().Err(err).Msg("failed to download original")
		return nil, err
	}
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", scratch).Msg("failed to remove scratch file")
		}
	}()

	for _, conv := range s.cfg.Conversions {
		err := s.convertOne(ctx, disk, m, scratch, conv)
		if err != nil {
			logger.Warn().Err(err).Str("conversion", conv.Name).Msg("conversion failed")
		}
		report.Results[conv.Name] = err == nil
	}

	patch := s.conversionPatch(m, report.Results)
	updated, err := s.store.Update(ctx, m.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("record conversions: %w", err)
	}
	report.Status = updated.Status

	logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("total", len(report.Results)).
		Str("status", string(updated.Status)).
		Msg("conversions generated")

	return report, nil
}

// conversionPatch merges the run's results into the record. A conversion that
// failed now but succeeded before keeps its flag, since its derivative is still stored.
func (s *Service) conversionPatch(m *Media, results map[string]bool) MediaPatch {
	flags := make(map[string]bool, len(results))
	succeeded := false
	for name, ok := range results {
		flags[name] = ok || m.CustomProperties.HasConversion(name)
		succeeded = succeeded || ok
	}

	patch := MediaPatch{GeneratedConversions: flags}

	if succeeded {
		patch.ConversionAttempts = ptr(0)
		if m.Status == StatusWaitingOptimization || m.Status == StatusError {
			patch.Status = ptr(StatusDone)
		}
		return patch
	}

	attempts := m.ConversionAttempts + 1
	patch.ConversionAttempts = ptr(attempts)
	if m.Status == StatusWaitingOptimization && s.cfg.MaxConversionAttempts > 0 && attempts >= s.cfg.MaxConversionAttempts {
		patch.Status = ptr(StatusError)
	}
	return patch
}

func (s *Service) download(ctx context.Context, disk StorageDriver, m *Media) (string, error) {
	rc, err := disk.Get(ctx, m.OriginalKey())
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp(s.cfg.ScratchDir, "medialib-*"+path.Ext(m.FileName))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download original: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close scratch file: %w", err)
	}

	return f.Name(), nil
}

// convertOne renders and uploads a single derivative. Panics in the converter
// are turned into errors so the remaining conversions still run.
func (s *Service) convertOne(ctx context.Context, disk StorageDriver, m *Media, scratch string, conv Conversion) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("conversion %s panicked: %v", conv.Name, p)
		}
	}()

	if s.converter == nil {
		return fmt.Errorf("%w: no converter configured", ErrUnsupportedMediaType)
	}

	var buf bytes.Buffer
	contentType, err := s.converter.Convert(ctx, scratch, m.MimeType, conv, &buf)
	if err != nil {
		return err
	}

	return disk.Put(ctx, m.ConversionKey(conv.Name), &buf, contentType)
}
