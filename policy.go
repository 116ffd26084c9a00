package medialib

import (
	"fmt"
	"mime"
	"slices"
	"strings"
)

const (
	MiB int64 = 1 << 20

	DefaultCollection = "default"
)

// Policy limits what may be uploaded into a (model type, collection) pair.
type Policy struct {
	MaxSize   int64
	MimeTypes []string
}

// Allows reports whether mimeType is permitted by p.
func (p Policy) Allows(mimeType string) bool {
	return slices.Contains(p.MimeTypes, normalizeMediaType(mimeType))
}

// PolicyKey selects a policy override. An empty ModelType matches every model type.
type PolicyKey struct {
	ModelType  ModelType
	Collection string
}

// PolicySet holds the deployment allow-lists and the upload policies.
type PolicySet struct {
	ModelTypes  []ModelType
	Collections []string
	Default     Policy
	Overrides   map[PolicyKey]Policy
}

var (
	rasterImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	logoTypes        = []string{"image/jpeg", "image/png", "image/webp", "image/svg+xml"}
)

// DefaultPolicies returns the stock allow-lists: a generic 100 MiB policy over
// images, video and PDF, tightened for logos and avatars.
func DefaultPolicies() *PolicySet {
	generic := append(slices.Clone(rasterImageTypes),
		"image/svg+xml", "image/bmp", "image/tiff",
		"video/mp4", "video/quicktime", "video/webm",
		"application/pdf",
	)

	return &PolicySet{
		ModelTypes:  []ModelType{ModelListings, ModelUsers, ModelOrganizations, ModelPosts},
		Collections: []string{DefaultCollection, "images", "gallery", "logos", "avatars", "documents", "videos"},
		Default:     Policy{MaxSize: 100 * MiB, MimeTypes: generic},
		Overrides: map[PolicyKey]Policy{
			{Collection: "logos"}:   {MaxSize: 5 * MiB, MimeTypes: logoTypes},
			{Collection: "avatars"}: {MaxSize: 10 * MiB, MimeTypes: rasterImageTypes},
		},
	}
}

// ParseModelType validates s against the allow-list.
func (ps *PolicySet) ParseModelType(s string) (ModelType, error) {
	mt := ModelType(s)
	if !slices.Contains(ps.ModelTypes, mt) {
		return "", fmt.Errorf("%w: %q", ErrInvalidModelType, s)
	}
	return mt, nil
}

// CheckCollection validates a collection name against the allow-list.
func (ps *PolicySet) CheckCollection(collection string) error {
	if !slices.Contains(ps.Collections, collection) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return nil
}

// Resolve returns the policy for the pair: exact override, then collection
// wildcard, then the default.
func (ps *PolicySet) Resolve(modelType ModelType, collection string) Policy {
	if p, ok := ps.Overrides[PolicyKey{ModelType: modelType, Collection: collection}]; ok {
		return p
	}
	if p, ok := ps.Overrides[PolicyKey{Collection: collection}]; ok {
		return p
	}
	return ps.Default
}

// Check validates an upload declaration. modelType and collection may be empty.
func (ps *PolicySet) Check(modelType ModelType, collection, mimeType string, size int64) error {
	if modelType != "" {
		if _, err := ps.ParseModelType(string(modelType)); err != nil {
			return err
		}
	}
	if collection != "" {
		if err := ps.CheckCollection(collection); err != nil {
			return err
		}
	}

	p := ps.Resolve(modelType, collection)
	if size > p.MaxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, p.MaxSize)
	}
	if !p.Allows(mimeType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mimeType)
	}
	return nil
}

// normalizeMediaType strips parameters and lower-cases a content type.
func normalizeMediaType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(s))
}
