package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models/enum"
)

func TestSchemaDefinition_Lifecycle(t *testing.T) {
	fields := []FieldDefinition{{Key: "industry", Label: "Industry", Type: enum.FieldTypeSelect, Options: []string{"retail"}}}
	s := NewDraftSchema(enum.EntityTypeLead, 2, fields)

	fields[0].Options[0] = "mutated"
	assert.Equal(t, "retail", s.Fields[0].Options[0])

	require.NoError(t, s.ReplaceFields([]FieldDefinition{{Key: "size", Type: enum.FieldTypeNumber}}))
	_, ok := s.Field("size")
	assert.True(t, ok)

	now := time.Now()
	require.NoError(t, s.Publish(now))
	assert.Equal(t, enum.SchemaStatusActive, s.Status)
	assert.Equal(t, &now, s.PublishedAt)

	assert.ErrorIs(t, s.ReplaceFields(nil), apperr.ErrInvalidState)
	assert.ErrorIs(t, s.Publish(now), apperr.ErrInvalidState)

	require.NoError(t, s.Retire())
	assert.Equal(t, enum.SchemaStatusHistorical, s.Status)
	assert.ErrorIs(t, s.Retire(), apperr.ErrInvalidState)
}
