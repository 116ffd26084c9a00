package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	medialib "github.com/shoraid/go-medialib"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"should map invalid input to 400", fmt.Errorf("%w: size", medialib.ErrInvalidInput), http.StatusBadRequest},
		{"should map invalid model type to 400", medialib.ErrInvalidModelType, http.StatusBadRequest},
		{"should map file too large to 413", fmt.Errorf("%w: 10 > 5", medialib.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{"should map unsupported media type to 415", medialib.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"should map missing record to 404", fmt.Errorf("%w: 3", medialib.ErrMediaNotFound), http.StatusNotFound},
		{"should map missing upload to 404", medialib.ErrUploadNotFound, http.StatusNotFound},
		{"should map integrity mismatch to 409", medialib.ErrIntegrityMismatch, http.StatusConflict},
		{"should map relocation failure to 502", fmt.Errorf("%w: %w", medialib.ErrRelocationFailed, medialib.ErrInternal), http.StatusBadGateway},
		{"should map storage failure to 502", medialib.ErrInternal, http.StatusBadGateway},
		{"should map unknown errors to 500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

func TestRespondServiceError(t *testing.T) {
	t.Run("should expose client errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/media/1", nil)

		respondServiceError(rec, req, fmt.Errorf("%w: 1", medialib.ErrMediaNotFound), "failed to get media")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"media: not found: media record: 1"}`, rec.Body.String())
	})

	t.Run("should hide server errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/media/1", nil)

		respondServiceError(rec, req, errors.New("dial tcp: connection refused"), "failed to get media")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"failed to get media"}`, rec.Body.String())
	})
}
