package schema

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type memoryCache struct {
	mu      sync.Mutex
	active  map[enum.EntityType]*models.SchemaDefinition
	version map[string]*models.SchemaDefinition
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		active:  map[enum.EntityType]*models.SchemaDefinition{},
		version: map[string]*models.SchemaDefinition{},
	}
}

func (c *memoryCache) GetActive(_ context.Context, entityType enum.EntityType) (*models.SchemaDefinition, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.active[entityType]
	return s, ok, nil
}

func (c *memoryCache) SetActive(_ context.Context, schema *models.SchemaDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.active[schema.EntityType]; ok && current.Version > schema.Version {
		return nil
	}
	c.active[schema.EntityType] = schema
	return nil
}

func (c *memoryCache) GetVersion(_ context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.version[fmt.Sprintf("%s:%d", entityType, version)]
	return s, ok, nil
}

func (c *memoryCache) SetVersion(_ context.Context, schema *models.SchemaDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version[fmt.Sprintf("%s:%d", schema.EntityType, schema.Version)] = schema
	return nil
}

func newTestService(t *testing.T) (Service, *memstore.Store, *memoryCache) {
	t.Helper()
	store := memstore.New()
	cache := newMemoryCache()
	svc := NewService(store.Schemas(), store.Outbox(), cache, store, zaptest.NewLogger(t))
	return svc, store, cache
}

var leadFields = []models.FieldDefinition{
	{Key: "industry", Label: "Industry", Type: enum.FieldTypeText, Required: true},
	{Key: "tier", Label: "Tier", Type: enum.FieldTypeSelect, Options: []string{"gold", "silver"}},
}

func publishVersion(t *testing.T, svc Service, entityType enum.EntityType, fields []models.FieldDefinition) *models.SchemaDefinition {
	t.Helper()
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx, entityType, false)
	require.NoError(t, err)
	_, err = svc.UpdateDraftFields(ctx, draft.ID, fields)
	require.NoError(t, err)
	published, err := svc.Publish(ctx, draft.ID)
	require.NoError(t, err)
	return published
}

func TestService_CreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("first draft is version 1", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft, err := svc.CreateDraft(ctx, enum.EntityTypeLead, false)
		require.NoError(t, err)
		assert.Equal(t, 1, draft.Version)
		assert.Equal(t, enum.SchemaStatusDraft, draft.Status)
		assert.Empty(t, draft.Fields)
	})

	t.Run("only one draft per entity type", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, enum.EntityTypeLead, false)
		require.NoError(t, err)

		_, err = svc.CreateDraft(ctx, enum.EntityTypeLead, false)
		assert.ErrorIs(t, err, apperr.ErrConflict)

		_, err = svc.CreateDraft(ctx, enum.EntityTypeQuote, false)
		assert.NoError(t, err)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, enum.EntityType("invoice"), false)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("clone from active copies the fields", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		draft, err := svc.CreateDraft(ctx, enum.EntityTypeLead, true)
		require.NoError(t, err)
		assert.Equal(t, 2, draft.Version)
		assert.Equal(t, leadFields, draft.Fields)
	})
}

func TestService_UpdateDraftFields(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid definitions", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft, err := svc.CreateDraft(ctx, enum.EntityTypeLead, false)
		require.NoError(t, err)

		_, err = svc.UpdateDraftFields(ctx, draft.ID, []models.FieldDefinition{
			{Key: "Tier", Type: enum.FieldTypeSelect},
			{Key: "tier", Type: enum.FieldTypeText},
			{Key: "tier", Type: enum.FieldTypeText},
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Len(t, apperr.Violations(err), 3)

		stored, err := svc.GetByID(ctx, draft.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Fields)
	})

	t.Run("published keys keep their type", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		draft, err := svc.CreateDraft(ctx, enum.EntityTypeLead, true)
		require.NoError(t, err)

		_, err = svc.UpdateDraftFields(ctx, draft.ID, []models.FieldDefinition{
			{Key: "industry", Label: "Sector", Type: enum.FieldTypeNumber},
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, []string{`field "industry": type is locked to text`}, apperr.Violations(err))

		updated, err := svc.UpdateDraftFields(ctx, draft.ID, []models.FieldDefinition{
			{Key: "industry", Label: "Sector", Type: enum.FieldTypeText},
		})
		require.NoError(t, err)
		assert.Equal(t, "Sector", updated.Fields[0].Label)
	})

	t.Run("keys dropped by a later version stay locked", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		publishVersion(t, svc, enum.EntityTypeLead, leadFields)
		publishVersion(t, svc, enum.EntityTypeLead, []models.FieldDefinition{
			{Key: "tier", Label: "Tier", Type: enum.FieldTypeSelect, Options: []string{"gold"}},
		})

		draft, err := svc.CreateDraft(ctx, enum.EntityTypeLead, true)
		require.NoError(t, err)

		_, err = svc.UpdateDraftFields(ctx, draft.ID, []models.FieldDefinition{
			{Key: "industry", Label: "Headcount", Type: enum.FieldTypeNumber},
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, []string{`field "industry": type is locked to text`}, apperr.Violations(err))
	})

	t.Run("published versions are frozen", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		active := publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		_, err := svc.UpdateDraftFields(ctx, active.ID, nil)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("missing draft", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.UpdateDraftFields(ctx, 42, nil)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestService_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("retires the previous active version", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		v1 := publishVersion(t, svc, enum.EntityTypeLead, leadFields)
		require.Equal(t, enum.SchemaStatusActive, v1.Status)
		require.NotNil(t, v1.PublishedAt)

		v2 := publishVersion(t, svc, enum.EntityTypeLead, append(leadFields, models.FieldDefinition{
			Key: "website", Type: enum.FieldTypeURL,
		}))
		assert.Equal(t, 2, v2.Version)

		history, err := svc.ListByEntityType(ctx, enum.EntityTypeLead)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, enum.SchemaStatusHistorical, history[0].Status)
		assert.Equal(t, enum.SchemaStatusActive, history[1].Status)

		active, err := svc.FindActiveByEntityType(ctx, enum.EntityTypeLead)
		require.NoError(t, err)
		assert.Equal(t, v2.ID, active.ID)

		old, err := svc.FindByEntityTypeAndVersion(ctx, enum.EntityTypeLead, 1)
		require.NoError(t, err)
		assert.Equal(t, leadFields, old.Fields)
	})

	t.Run("enqueues schema.published in the same transaction", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		v1 := publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		var events []*models.Event
		require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			var err error
			events, err = store.Outbox().ListByAggregate(ctx, tx, "schema_definition", v1.ID)
			return err
		}))
		require.Len(t, events, 1)
		assert.Equal(t, enum.EventTypeSchemaPublished, events[0].Type)
		assert.Nil(t, events[0].DeliveredAt)
	})

	t.Run("cannot publish twice", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		v1 := publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		_, err := svc.Publish(ctx, v1.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("refreshes the cache", func(t *testing.T) {
		svc, _, cache := newTestService(t)
		v1 := publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		_, err := svc.FindActiveByEntityType(ctx, enum.EntityTypeLead)
		require.NoError(t, err)
		_, cached, _ := cache.GetActive(ctx, enum.EntityTypeLead)
		require.True(t, cached)

		v2 := publishVersion(t, svc, enum.EntityTypeLead, leadFields)

		active, cached, _ := cache.GetActive(ctx, enum.EntityTypeLead)
		require.True(t, cached)
		assert.Equal(t, v2.Version, active.Version)

		retired, found, _ := cache.GetVersion(ctx, enum.EntityTypeLead, v1.Version)
		require.True(t, found)
		assert.Equal(t, enum.SchemaStatusHistorical, retired.Status)

		_, found, _ = cache.GetVersion(ctx, enum.EntityTypeLead, v2.Version)
		assert.True(t, found)
	})
}

func TestService_DiscardDraft(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	draft, err := svc.CreateDraft(ctx, enum.EntityTypeCustomer, false)
	require.NoError(t, err)
	require.NoError(t, svc.DiscardDraft(ctx, draft.ID))

	_, err = svc.GetByID(ctx, draft.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	active := publishVersion(t, svc, enum.EntityTypeCustomer, nil)
	assert.Equal(t, 1, active.Version)
	assert.ErrorIs(t, svc.DiscardDraft(ctx, active.ID), apperr.ErrInvalidState)
}

func TestService_FindActiveByEntityType_NoneYet(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.FindActiveByEntityType(context.Background(), enum.EntityTypeTicket)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// publishingRepository publishes the draft behind the caller's back on the
// n-th read of it and hands back the copy read before the publish, the way a
// transaction racing a concurrent Publish would see the row.
type publishingRepository struct {
	Repository
	draftID uint64
	n       int
	reads   int
}

func (r *publishingRepository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.SchemaDefinition, error) {
	schema, err := r.Repository.GetByID(ctx, tx, id)
	if err != nil || id != r.draftID {
		return schema, err
	}
	r.reads++
	if r.reads != r.n {
		return schema, nil
	}

	stale := *schema
	now := time.Now().UTC()
	schema.Status = enum.SchemaStatusActive
	schema.PublishedAt = &now
	if err = r.Repository.Update(ctx, tx, schema, enum.SchemaStatusDraft); err != nil {
		return nil, err
	}
	return &stale, nil
}

func TestService_DraftWritesLoseToConcurrentPublish(t *testing.T) {
	ctx := context.Background()

	writes := map[string]func(svc Service, id uint64) error{
		"update fields": func(svc Service, id uint64) error {
			_, err := svc.UpdateDraftFields(ctx, id, []models.FieldDefinition{{Key: "budget", Type: enum.FieldTypeNumber}})
			return err
		},
		"discard": func(svc Service, id uint64) error {
			return svc.DiscardDraft(ctx, id)
		},
		"publish": func(svc Service, id uint64) error {
			_, err := svc.Publish(ctx, id)
			return err
		},
	}

	for name, write := range writes {
		for _, n := range []int{1, 2} {
			t.Run(fmt.Sprintf("%s, published before read %d", name, n), func(t *testing.T) {
				store := memstore.New()
				seed := NewService(store.Schemas(), store.Outbox(), nil, store, zaptest.NewLogger(t))
				draft, err := seed.CreateDraft(ctx, enum.EntityTypeLead, false)
				require.NoError(t, err)
				_, err = seed.UpdateDraftFields(ctx, draft.ID, leadFields)
				require.NoError(t, err)

				repo := &publishingRepository{Repository: store.Schemas(), draftID: draft.ID, n: n}
				svc := NewService(repo, store.Outbox(), nil, store, zaptest.NewLogger(t))
				assert.ErrorIs(t, write(svc, draft.ID), apperr.ErrInvalidState)

				// The racing publish ran inside the rolled back transaction, so
				// the row is untouched.
				stored, err := seed.GetByID(ctx, draft.ID)
				require.NoError(t, err)
				assert.Equal(t, enum.SchemaStatusDraft, stored.Status)
				assert.Equal(t, leadFields, stored.Fields)
			})
		}
	}
}
