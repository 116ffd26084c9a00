package medialib

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Status is the lifecycle state of a media record.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusWaitingOptimization Status = "WAITING_OPTIMIZATION"
	StatusDone                Status = "DONE"
	StatusError               Status = "ERROR"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaitingOptimization, StatusDone, StatusError:
		return true
	}
	return false
}

// ParseStatus converts s into a Status or returns ErrInvalidStatus.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// ModelType names the kind of entity that owns a media record.
type ModelType string

const (
	ModelListings      ModelType = "listings"
	ModelUsers         ModelType = "users"
	ModelOrganizations ModelType = "organizations"
	ModelPosts         ModelType = "posts"
)

// ModelRef is the polymorphic owner of a media record.
// A zero ID means the record is not associated with any entity yet.
type ModelRef struct {
	Type ModelType `json:"model_type"`
	ID   int64     `json:"model_id"`
}

// Associated reports whether both the owner kind and its id are known.
func (r ModelRef) Associated() bool {
	return r.Type != "" && r.ID != 0
}

func (r ModelRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

const generatedConversionsKey = "generated_conversions"

// CustomProperties keeps the pipeline-owned conversion flags apart from
// caller metadata. Both share one JSON object on the wire.
type CustomProperties struct {
	GeneratedConversions map[string]bool
	Values               map[string]any
}

// NewCustomProperties returns properties holding a copy of values.
// The reserved generated_conversions key is dropped from values.
func NewCustomProperties(values map[string]any) CustomProperties {
	return CustomProperties{
		GeneratedConversions: map[string]bool{},
		Values:               cleanValues(values),
	}
}

func cleanValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if k == generatedConversionsKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the maps (values themselves are shared).
func (p CustomProperties) Clone() CustomProperties {
	c := CustomProperties{
		GeneratedConversions: maps.Clone(p.GeneratedConversions),
		Values:               maps.Clone(p.Values),
	}
	if c.GeneratedConversions == nil {
		c.GeneratedConversions = map[string]bool{}
	}
	if c.Values == nil {
		c.Values = map[string]any{}
	}
	return c
}

// HasConversion reports whether the named conversion was generated successfully.
func (p CustomProperties) HasConversion(name string) bool {
	return p.GeneratedConversions[name]
}

// WithConversions returns a copy where every flag in results overwrites the existing one.
func (p CustomProperties) WithConversions(results map[string]bool) CustomProperties {
	c := p.Clone()
	for name, ok := range results {
		c.GeneratedConversions[name] = ok
	}
	return c
}

// WithValues returns a copy whose caller metadata is replaced by values.
func (p CustomProperties) WithValues(values map[string]any) CustomProperties {
	c := p.Clone()
	c.Values = cleanValues(values)
	return c
}

func (p CustomProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		if k == generatedConversionsKey {
			continue
		}
		out[k] = v
	}

	gc := p.GeneratedConversions
	if gc == nil {
		gc = map[string]bool{}
	}
	out[generatedConversionsKey] = gc

	return json.Marshal(out)
}

func (p *CustomProperties) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.GeneratedConversions = map[string]bool{}
	p.Values = map[string]any{}

	for k, v := range raw {
		if k == generatedConversionsKey {
			if err := json.Unmarshal(v, &p.GeneratedConversions); err != nil {
				return fmt.Errorf("decode %s: %w", generatedConversionsKey, err)
			}
			if p.GeneratedConversions == nil {
				p.GeneratedConversions = map[string]bool{}
			}
			continue
		}

		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		p.Values[k] = val
	}

	return nil
}

// Media is the durable record of one uploaded file.
type Media struct {
	ID                 int64            `json:"id"`
	Model              ModelRef         `json:"model"`
	CollectionName     string           `json:"collection_name"`
	Name               string           `json:"name"`
	FileName           string           `json:"file_name"`
	MimeType           string           `json:"mime_type"`
	Size               int64            `json:"size"`
	Disk               string           `json:"disk"`
	CustomProperties   CustomProperties `json:"custom_properties"`
	OrderColumn        int              `json:"order_column"`
	Status             Status           `json:"status"`
	ConversionAttempts int              `json:"conversion_attempts"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Clone returns a copy that does not share maps with m.
func (m *Media) Clone() *Media {
	c := *m
	c.CustomProperties = m.CustomProperties.Clone()
	return &c
}

// OriginalKey is the permanent object key of the uploaded file.
func (m *Media) OriginalKey() string {
	return OriginalKey(m.ID, m.FileName)
}

// ConversionKey is the object key of the named derivative.
func (m *Media) ConversionKey(conversion string) string {
	return ConversionKey(m.ID, m.FileName, conversion)
}

// ResolvedMedia is a record together with the URL it should be served from.
// The URL is computed on every read and never persisted.
type ResolvedMedia struct {
	*Media
	URL string `json:"url"`
}
