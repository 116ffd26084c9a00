package medialib

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// servedKey picks the object a record is served from: the preferred conversion
// when it was generated, else the first generated fallback, else the original.
func (s *Service) servedKey(m *Media, preferred string) string {
	if preferred != "" && m.CustomProperties.HasConversion(preferred) {
		return m.ConversionKey(preferred)
	}
	for _, name := range fallbackConversions {
		if m.CustomProperties.HasConversion(name) {
			return m.ConversionKey(name)
		}
	}
	return m.OriginalKey()
}

// ResolveURL returns the URL a record should be served from. Public disks get
// a direct URL; private disks get a freshly signed one.
func (s *Service) ResolveURL(ctx context.Context, m *Media, preferred string) (string, error) {
	return s.disks.URL(ctx, m.Disk, s.servedKey(m, preferred), s.cfg.SignedURLExpiry)
}

func (s *Service) resolve(ctx context.Context, m *Media, preferred string) (*ResolvedMedia, error) {
	url, err := s.ResolveURL(ctx, m, preferred)
	if err != nil {
		return nil, err
	}
	return &ResolvedMedia{Media: m, URL: url}, nil
}

// Get returns one record with its served URL.
func (s *Service) Get(ctx context.Context, id int64, conversion string) (*ResolvedMedia, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, m, conversion)
}

// ListForModel returns the media of a model, optionally restricted to one
// collection, ordered by collection, order_column and creation time.
// conversion selects the preferred derivative for every URL.
func (s *Service) ListForModel(ctx context.Context, ref ModelRef, collection, conversion string) ([]*ResolvedMedia, error) {
	if _, err := s.policies.ParseModelType(string(ref.Type)); err != nil {
		return nil, err
	}

	items, err := s.store.FindMany(ctx, MediaFilter{
		ModelType:  ref.Type,
		ModelID:    &ref.ID,
		Collection: collection,
		OrderBy:    OrderByPosition,
	})
	if err != nil {
		return nil, err
	}

	objects := make([]ObjectRef, len(items))
	for i, m := range items {
		objects[i] = ObjectRef{Disk: m.Disk, Key: s.servedKey(m, conversion)}
	}

	urls, err := s.disks.URLs(ctx, objects, s.cfg.SignedURLExpiry)
	if err != nil {
		return nil, err
	}

	out := make([]*ResolvedMedia, len(items))
	for i, m := range items {
		out[i] = &ResolvedMedia{Media: m, URL: urls[i]}
	}
	return out, nil
}

// ConversionURL returns the URL of a generated conversion.
func (s *Service) ConversionURL(ctx context.Context, id int64, name string) (string, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !m.CustomProperties.HasConversion(name) {
		return "", fmt.Errorf("%w: %q for media %d", ErrConversionNotFound, name, id)
	}
	return s.disks.URL(ctx, m.Disk, m.ConversionKey(name), s.cfg.SignedURLExpiry)
}

// AvailableConversions lists the generated conversions of a record, sorted by name.
func (s *Service) AvailableConversions(ctx context.Context, id int64) ([]string, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(m.CustomProperties.GeneratedConversions))
	for name, ok := range m.CustomProperties.GeneratedConversions {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Reorder assigns order_column 1..n following ids. ids must list every member
// of the (model, collection) group exactly once. Concurrent reorders of the
// same group are not isolated: the last writer wins.
func (s *Service) Reorder(ctx context.Context, ref ModelRef, collection string, ids []int64) error {
	if err := s.policies.CheckCollection(collection); err != nil {
		return err
	}

	group, err := s.store.FindMany(ctx, MediaFilter{
		ModelType:  ref.Type,
		ModelID:    &ref.ID,
		Collection: collection,
	})
	if err != nil {
		return err
	}

	members := make(map[int64]bool, len(group))
	for _, m := range group {
		members[m.ID] = true
	}
	if len(ids) != len(group) {
		return fmt.Errorf("%w: %d of %d media in %s/%s listed", ErrInvalidOrder, len(ids), len(group), ref, collection)
	}
	for i, id := range ids {
		if !members[id] {
			return fmt.Errorf("%w: media %d is not in %s/%s", ErrInvalidOrder, id, ref, collection)
		}
		if slices.Contains(ids[:i], id) {
			return fmt.Errorf("%w: media %d listed twice", ErrInvalidOrder, id)
		}
	}

	for i, id := range ids {
		if _, err := s.store.Update(ctx, id, MediaPatch{OrderColumn: ptr(i + 1)}); err != nil {
			return err
		}
	}
	return nil
}

// MoveToCollection moves a record to the end of another collection of the same model.
func (s *Service) MoveToCollection(ctx context.Context, id int64, collection string) (*Media, error) {
	if err := s.policies.CheckCollection(collection); err != nil {
		return nil, err
	}

	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.CollectionName == collection {
		return m, nil
	}

	order, err := s.store.MaxOrder(ctx, m.Model, collection)
	if err != nil {
		return nil, err
	}

	return s.store.Update(ctx, id, MediaPatch{
		CollectionName: &collection,
		OrderColumn:    ptr(order + 1),
	})
}

// ReassignPending re-parents the PENDING media of a draft model to its real id
// and marks them DONE. Moved records are appended after the target's existing
// media of the same collection. It returns how many records were moved.
func (s *Service) ReassignPending(ctx context.Context, modelType ModelType, fromID, toID int64) (int, error) {
	if _, err := s.policies.ParseModelType(string(modelType)); err != nil {
		return 0, err
	}
	if toID == 0 {
		return 0, fmt.Errorf("%w: target model id is required", ErrInvalidInput)
	}

	pending, err := s.store.FindMany(ctx, MediaFilter{
		ModelType: modelType,
		ModelID:   &fromID,
		Statuses:  []Status{StatusPending},
		OrderBy:   OrderByPosition,
	})
	if err != nil {
		return 0, err
	}

	target := ModelRef{Type: modelType, ID: toID}
	next := map[string]int{}
	for i, m := range pending {
		order, ok := next[m.CollectionName]
		if !ok {
			if order, err = s.store.MaxOrder(ctx, target, m.CollectionName); err != nil {
				return i, err
			}
		}
		order++
		next[m.CollectionName] = order

		if _, err := s.store.Update(ctx, m.ID, MediaPatch{
			ModelID:     &toID,
			OrderColumn: &order,
			Status:      ptr(StatusDone),
		}); err != nil {
			return i, err
		}
	}

	s.logger.Info().
		Str("model_type", string(modelType)).
		Int64("from", fromID).
		Int64("to", toID).
		Int("count", len(pending)).
		Msg("pending media reassigned")

	return len(pending), nil
}

// MetadataUpdate changes the editable, non-lifecycle fields of a record.
type MetadataUpdate struct {
	Name             *string
	CustomProperties map[string]any
	OrderColumn      *int
}

func (u MetadataUpdate) patch() MediaPatch {
	return MediaPatch{
		Name:         u.Name,
		CustomValues: u.CustomProperties,
		OrderColumn:  u.OrderColumn,
	}
}

// UpdateMetadata applies u. Lifecycle fields and file identity are never touched.
func (s *Service) UpdateMetadata(ctx context.Context, id int64, u MetadataUpdate) (*Media, error) {
	if u.Name != nil && *u.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	return s.store.Update(ctx, id, u.patch())
}

// MediaUpdate is a metadata update that may also move the record to another collection.
type MediaUpdate struct {
	MetadataUpdate
	Collection *string
}

// UpdateMedia moves the record when the collection changes, then applies the metadata.
func (s *Service) UpdateMedia(ctx context.Context, id int64, u MediaUpdate) (*Media, error) {
	if u.Collection != nil {
		if _, err := s.MoveToCollection(ctx, id, *u.Collection); err != nil {
			return nil, err
		}
	}
	return s.UpdateMetadata(ctx, id, u.MetadataUpdate)
}

// Delete removes the original, every conversion and then the record.
// The record is kept when the objects cannot be removed, so the call can be retried.
func (s *Service) Delete(ctx context.Context, id int64) error {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	names := s.conversionNames()
	for name := range m.CustomProperties.GeneratedConversions {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	keys := []string{m.OriginalKey()}
	for _, name := range names {
		keys = append(keys, m.ConversionKey(name))
	}

	if err := s.disks.DeleteMany(ctx, m.Disk, keys...); err != nil {
		s.logger.Error().Err(err).Int64("media_id", id).Msg("failed to delete media objects")
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("media_id", id).Str("status", string(m.Status)).Msg("media deleted")
	return nil
}

// Validate marks a PENDING record as DONE. Other states are returned unchanged.
func (s *Service) Validate(ctx context.Context, id int64) (*Media, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusPending {
		return m, nil
	}
	return s.store.Update(ctx, id, MediaPatch{Status: ptr(StatusDone)})
}

// ValidateForModel marks every PENDING record of a model as DONE and returns how many changed.
func (s *Service) ValidateForModel(ctx context.Context, ref ModelRef) (int, error) {
	if _, err := s.policies.ParseModelType(string(ref.Type)); err != nil {
		return 0, err
	}

	pending, err := s.store.FindMany(ctx, MediaFilter{
		ModelType: ref.Type,
		ModelID:   &ref.ID,
		Statuses:  []Status{StatusPending},
	})
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		if _, err := s.store.Update(ctx, m.ID, MediaPatch{Status: ptr(StatusDone)}); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}
