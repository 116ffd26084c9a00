// Package httpapi exposes the media pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	medialib "github.com/shoraid/go-medialib"
)

// MediaService is the part of *medialib.Service the handlers use.
type MediaService interface {
	NegotiateUpload(ctx context.Context, req medialib.UploadRequest) (*medialib.UploadTicket, error)
	CompleteUpload(ctx context.Context, req medialib.CompleteUploadRequest) (*medialib.ResolvedMedia, error)
	Get(ctx context.Context, id int64, conversion string) (*medialib.ResolvedMedia, error)
	AvailableConversions(ctx context.Context, id int64) ([]string, error)
	ConversionURL(ctx context.Context, id int64, name string) (string, error)
	GenerateConversions(ctx context.Context, id int64) (*medialib.ConversionReport, error)
	UpdateMedia(ctx context.Context, id int64, u medialib.MediaUpdate) (*medialib.Media, error)
	UpdateMetadata(ctx context.Context, id int64, u medialib.MetadataUpdate) (*medialib.Media, error)
	MoveToCollection(ctx context.Context, id int64, collection string) (*medialib.Media, error)
	Validate(ctx context.Context, id int64) (*medialib.Media, error)
	Delete(ctx context.Context, id int64) error
	ListForModel(ctx context.Context, ref medialib.ModelRef, collection, conversion string) ([]*medialib.ResolvedMedia, error)
	Reorder(ctx context.Context, ref medialib.ModelRef, collection string, ids []int64) error
	ValidateForModel(ctx context.Context, ref medialib.ModelRef) (int, error)
	ReassignPending(ctx context.Context, modelType medialib.ModelType, fromID, toID int64) (int, error)
}

var _ MediaService = (*medialib.Service)(nil)

// Handler serves the media routes.
type Handler struct {
	svc MediaService
}

func NewHandler(svc MediaService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers all media routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/media", func(r chi.Router) {
		r.Post("/uploads", h.NegotiateUpload)
		r.Post("/uploads/complete", h.CompleteUpload)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Patch("/metadata", h.UpdateMetadata)
			r.Post("/move", h.Move)
			r.Post("/validate", h.Validate)
			r.Get("/conversions", h.ListConversions)
			r.Post("/conversions", h.GenerateConversions)
			r.Get("/conversions/{name}", h.ConversionURL)
		})
	})

	r.Route("/models/{modelType}/{modelID}", func(r chi.Router) {
		r.Get("/media", h.ListForModel)
		r.Put("/collections/{collection}/order", h.Reorder)
		r.Post("/validate", h.ValidateForModel)
		r.Post("/reassign", h.ReassignPending)
	})
}

type uploadRequest struct {
	FileName         string         `json:"fileName"`
	MimeType         string         `json:"mimeType"`
	Size             int64          `json:"size"`
	ModelType        string         `json:"modelType"`
	ModelID          int64          `json:"modelId"`
	ModelSlug        string         `json:"modelSlug"`
	Collection       string         `json:"collection"`
	CustomProperties map[string]any `json:"customProperties"`
}

type completeRequest struct {
	Key              string         `json:"key"`
	Name             string         `json:"name"`
	MimeType         string         `json:"mimeType"`
	Size             int64          `json:"size"`
	ModelType        string         `json:"modelType"`
	ModelID          int64          `json:"modelId"`
	ModelSlug        string         `json:"modelSlug"`
	Collection       string         `json:"collection"`
	CustomProperties map[string]any `json:"customProperties"`
	Status           string         `json:"status"`
}

type metadataRequest struct {
	Name             *string        `json:"name"`
	CustomProperties map[string]any `json:"customProperties"`
	OrderColumn      *int           `json:"orderColumn"`
}

func (m metadataRequest) update() medialib.MetadataUpdate {
	return medialib.MetadataUpdate{
		Name:             m.Name,
		CustomProperties: m.CustomProperties,
		OrderColumn:      m.OrderColumn,
	}
}

type updateRequest struct {
	metadataRequest
	Collection *string `json:"collection"`
}

type moveRequest struct {
	Collection string `json:"collection"`
}

type orderRequest struct {
	IDs []int64 `json:"ids"`
}

type reassignRequest struct {
	ToID int64 `json:"toId"`
}

// decode reads a JSON body into v and answers 400 when it cannot.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("invalid request body")
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses the named URL parameter as a positive id and answers 400 when it is not.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// modelRef reads the owner from the path. Draft owners may carry any non-zero id.
func modelRef(w http.ResponseWriter, r *http.Request) (medialib.ModelRef, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "modelID"), 10, 64)
	if err != nil || id == 0 {
		respondError(w, r, http.StatusBadRequest, "invalid modelID")
		return medialib.ModelRef{}, false
	}
	return medialib.ModelRef{Type: medialib.ModelType(chi.URLParam(r, "modelType")), ID: id}, true
}

// NegotiateUpload handles POST /media/uploads
func (h *Handler) NegotiateUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decode(w, r, &req) {
		return
	}

	ticket, err := h.svc.NegotiateUpload(r.Context(), medialib.UploadRequest{
		FileName:         req.FileName,
		MimeType:         req.MimeType,
		Size:             req.Size,
		Model:            medialib.ModelRef{Type: medialib.ModelType(req.ModelType), ID: req.ModelID},
		ModelSlug:        req.ModelSlug,
		Collection:       req.Collection,
		CustomProperties: req.CustomProperties,
	})
	if err != nil {
		respondServiceError(w, r, err, "failed to negotiate upload")
		return
	}

	respondJSON(w, r, http.StatusOK, ticket)
}

// CompleteUpload handles POST /media/uploads/complete
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}

	media, err := h.svc.CompleteUpload(r.Context(), medialib.CompleteUploadRequest{
		TempKey:          req.Key,
		Name:             req.Name,
		MimeType:         req.MimeType,
		Size:             req.Size,
		Model:            medialib.ModelRef{Type: medialib.ModelType(req.ModelType), ID: req.ModelID},
		ModelSlug:        req.ModelSlug,
		Collection:       req.Collection,
		CustomProperties: req.CustomProperties,
		Status:           medialib.Status(req.Status),
	})
	if err != nil {
		respondServiceError(w, r, err, "failed to complete upload")
		return
	}

	respondJSON(w, r, http.StatusCreated, media)
}

// Get handles GET /media/{id}?conversion=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	media, err := h.svc.Get(r.Context(), id, r.URL.Query().Get("conversion"))
	if err != nil {
		respondServiceError(w, r, err, "failed to get media")
		return
	}

	respondJSON(w, r, http.StatusOK, media)
}

// Update handles PATCH /media/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}

	media, err := h.svc.UpdateMedia(r.Context(), id, medialib.MediaUpdate{
		MetadataUpdate: req.update(),
		Collection:     req.Collection,
	})
	if err != nil {
		respondServiceError(w, r, err, "failed to update media")
		return
	}

	respondJSON(w, r, http.StatusOK, media)
}

// UpdateMetadata handles PATCH /media/{id}/metadata
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req metadataRequest
	if !decode(w, r, &req) {
		return
	}

	media, err := h.svc.UpdateMetadata(r.Context(), id, req.update())
	if err != nil {
		respondServiceError(w, r, err, "failed to update media metadata")
		return
	}

	respondJSON(w, r, http.StatusOK, media)
}

// Delete handles DELETE /media/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err, "failed to delete media")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Move handles POST /media/{id}/move
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}

	media, err := h.svc.MoveToCollection(r.Context(), id, req.Collection)
	if err != nil {
		respondServiceError(w, r, err, "failed to move media")
		return
	}

	respondJSON(w, r, http.StatusOK, media)
}

// Validate handles POST /media/{id}/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	media, err := h.svc.Validate(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "failed to validate media")
		return
	}

	respondJSON(w, r, http.StatusOK, media)
}

// ListConversions handles GET /media/{id}/conversions
func (h *Handler) ListConversions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	names, err := h.svc.AvailableConversions(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "failed to list conversions")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string][]string{"conversions": names})
}

// ConversionURL handles GET /media/{id}/conversions/{name}
func (h *Handler) ConversionURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	url, err := h.svc.ConversionURL(r.Context(), id, chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, err, "failed to resolve conversion URL")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]string{"url": url})
}

// GenerateConversions handles POST /media/{id}/conversions
func (h *Handler) GenerateConversions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.svc.GenerateConversions(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "failed to generate conversions")
		return
	}
	if report == nil {
		respondError(w, r, http.StatusNotFound, medialib.ErrMediaNotFound.Error())
		return
	}

	respondJSON(w, r, http.StatusOK, report)
}

// ListForModel handles GET /models/{modelType}/{modelID}/media?collection=&conversion=
func (h *Handler) ListForModel(w http.ResponseWriter, r *http.Request) {
	ref, ok := modelRef(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	items, err := h.svc.ListForModel(r.Context(), ref, q.Get("collection"), q.Get("conversion"))
	if err != nil {
		respondServiceError(w, r, err, "failed to list media")
		return
	}
	if items == nil {
		items = []*medialib.ResolvedMedia{}
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"media": items})
}

// Reorder handles PUT /models/{modelType}/{modelID}/collections/{collection}/order
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	ref, ok := modelRef(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.svc.Reorder(r.Context(), ref, chi.URLParam(r, "collection"), req.IDs); err != nil {
		respondServiceError(w, r, err, "failed to reorder media")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ValidateForModel handles POST /models/{modelType}/{modelID}/validate
func (h *Handler) ValidateForModel(w http.ResponseWriter, r *http.Request) {
	ref, ok := modelRef(w, r)
	if !ok {
		return
	}

	n, err := h.svc.ValidateForModel(r.Context(), ref)
	if err != nil {
		respondServiceError(w, r, err, "failed to validate model media")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]int{"validated": n})
}

// ReassignPending handles POST /models/{modelType}/{modelID}/reassign
func (h *Handler) ReassignPending(w http.ResponseWriter, r *http.Request) {
	ref, ok := modelRef(w, r)
	if !ok {
		return
	}
	var req reassignRequest
	if !decode(w, r, &req) {
		return
	}

	n, err := h.svc.ReassignPending(r.Context(), ref.Type, ref.ID, req.ToID)
	if err != nil {
		respondServiceError(w, r, err, "failed to reassign pending media")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]int{"reassigned": n})
}
