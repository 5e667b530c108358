package customer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/malleable"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/schema"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	logger := zap.NewNop()
	svc := NewService(store.Customers(), malleable.NewBinder(store.Schemas(), nil, logger), store, logger)
	schemas := schema.NewService(store.Schemas(), store.Outbox(), nil, store, logger)

	customer, err := svc.Create(ctx, CreateCommand{Name: "Initech", Email: "ops@initech.example"})
	require.NoError(t, err)
	assert.Nil(t, customer.SchemaVersion)

	t.Run("patch keeps omitted fields", func(t *testing.T) {
		updated, err := svc.Update(ctx, UpdateCommand{ID: customer.ID, Email: "billing@initech.example"})
		require.NoError(t, err)
		assert.Equal(t, "Initech", updated.Name)
		assert.Equal(t, "billing@initech.example", updated.Email)
	})

	t.Run("unversioned customer adopts the active schema", func(t *testing.T) {
		draft, err := schemas.CreateDraft(ctx, enum.EntityTypeCustomer, false)
		require.NoError(t, err)
		_, err = schemas.UpdateDraftFields(ctx, draft.ID, []models.FieldDefinition{
			{Key: "segment", Type: enum.FieldTypeSelect, Options: []string{"smb", "enterprise"}, Required: true},
		})
		require.NoError(t, err)
		_, err = schemas.Publish(ctx, draft.ID)
		require.NoError(t, err)

		bad := models.NewMalleableData(models.MalleableEntry{Key: "segment", Value: models.TextValue("government")})
		_, err = svc.Update(ctx, UpdateCommand{ID: customer.ID, MalleableData: &bad})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		good := models.NewMalleableData(models.MalleableEntry{Key: "segment", Value: models.TextValue("enterprise")})
		updated, err := svc.Update(ctx, UpdateCommand{ID: customer.ID, MalleableData: &good})
		require.NoError(t, err)
		require.NotNil(t, updated.SchemaVersion)
		assert.Equal(t, 1, *updated.SchemaVersion)
	})

	t.Run("list and delete", func(t *testing.T) {
		customers, err := svc.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, customers, 1)

		require.NoError(t, svc.Delete(ctx, customer.ID))
		_, err = svc.GetByID(ctx, customer.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, customer.ID), apperr.ErrNotFound)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateCommand{Name: "x", Email: "nope"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}
