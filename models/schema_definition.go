package models

import (
	"time"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models/enum"
)

type FieldDefinition struct {
	Key      string         `json:"key" validate:"required"`
	Label    string         `json:"label"`
	Type     enum.FieldType `json:"type" validate:"required"`
	Required bool           `json:"required"`
	Options  []string       `json:"options,omitempty"`
}

// SchemaDefinition 代表實體擴充欄位的版本化定義
// SchemaDefinition is a versioned field set for one entity type. A version is
// editable while draft and frozen forever once published.
type SchemaDefinition struct {
	ID          uint64            `json:"id"`
	EntityType  enum.EntityType   `json:"entity_type"`
	Version     int               `json:"version"`
	Status      enum.SchemaStatus `json:"status"`
	Fields      []FieldDefinition `json:"fields"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewDraftSchema starts a draft at version, optionally seeded with fields.
func NewDraftSchema(entityType enum.EntityType, version int, fields []FieldDefinition) *SchemaDefinition {
	return &SchemaDefinition{
		EntityType: entityType,
		Version:    version,
		Status:     enum.SchemaStatusDraft,
		Fields:     cloneFields(fields),
	}
}

func (s *SchemaDefinition) IsDraft() bool {
	return s.Status == enum.SchemaStatusDraft
}

// ReplaceFields swaps the field list of a draft.
func (s *SchemaDefinition) ReplaceFields(fields []FieldDefinition) error {
	if !s.IsDraft() {
		return apperr.InvalidState("schema %d (%s v%d) is %s and cannot be edited", s.ID, s.EntityType, s.Version, s.Status)
	}
	s.Fields = cloneFields(fields)
	return nil
}

// Publish freezes the draft as the active version.
func (s *SchemaDefinition) Publish(now time.Time) error {
	if !s.IsDraft() {
		return apperr.InvalidState("schema %d (%s v%d) is %s and cannot be published", s.ID, s.EntityType, s.Version, s.Status)
	}
	s.Status = enum.SchemaStatusActive
	s.PublishedAt = &now
	return nil
}

// Retire moves an active version to historical.
func (s *SchemaDefinition) Retire() error {
	if s.Status != enum.SchemaStatusActive {
		return apperr.InvalidState("schema %d (%s v%d) is %s and cannot be retired", s.ID, s.EntityType, s.Version, s.Status)
	}
	s.Status = enum.SchemaStatusHistorical
	return nil
}

func (s *SchemaDefinition) Field(key string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

func cloneFields(fields []FieldDefinition) []FieldDefinition {
	out := make([]FieldDefinition, len(fields))
	for i, f := range fields {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		out[i] = f
	}
	return out
}
