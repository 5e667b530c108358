package schema_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/ignite"
	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/driver/drivertest"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/schema"
)

func newPostgresRepository(t *testing.T) (schema.Repository, driver.PostgresPool, *driver.TransactionManager) {
	t.Helper()
	pool := drivertest.Postgres(t)
	repo, err := schema.NewRepository(pool, zaptest.NewLogger(t), ignite.NewManager())
	require.NoError(t, err)
	return repo, pool, driver.NewTransactionManager(pool)
}

func TestRepository_OneDraftPerEntityType(t *testing.T) {
	repo, _, tm := newPostgresRepository(t)
	ctx := context.Background()

	require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Create(ctx, tx, models.NewDraftSchema(enum.EntityTypeLead, 1, nil))
	}))

	err := tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Create(ctx, tx, models.NewDraftSchema(enum.EntityTypeLead, 2, nil))
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRepository_StatusGuards(t *testing.T) {
	repo, _, tm := newPostgresRepository(t)
	ctx := context.Background()

	draft := models.NewDraftSchema(enum.EntityTypeQuote, 1, nil)
	require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Create(ctx, tx, draft)
	}))

	stale := *draft
	published := *draft
	require.NoError(t, published.Publish(time.Now().UTC()))
	require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Update(ctx, tx, &published, enum.SchemaStatusDraft)
	}))

	stale.Fields = []models.FieldDefinition{{Key: "po_number", Type: enum.FieldTypeText}}
	err := tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Update(ctx, tx, &stale, enum.SchemaStatusDraft)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	err = tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.DeleteDraft(ctx, tx, draft.ID)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	err = tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.DeleteDraft(ctx, tx, 987654)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		got, err := repo.GetByID(ctx, tx, draft.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, enum.SchemaStatusActive, got.Status)
		assert.Empty(t, got.Fields)
		return nil
	}))
}

func TestService_ConcurrentPublishOfOneDraft(t *testing.T) {
	repo, pool, tm := newPostgresRepository(t)
	logger := zaptest.NewLogger(t)
	svc := schema.NewService(repo, outbox.NewRepository(pool, logger), nil, tm, logger)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, enum.EntityTypeCustomer, false)
	require.NoError(t, err)

	const publishers = 4
	errs := make([]error, publishers)
	var wg sync.WaitGroup
	for i := range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Publish(ctx, draft.ID)
		}()
	}
	wg.Wait()

	var published int
	for _, err := range errs {
		switch {
		case err == nil:
			published++
		case !errors.Is(err, apperr.ErrInvalidState):
			t.Errorf("unexpected publish error: %v", err)
		}
	}
	assert.Equal(t, 1, published)

	history, err := svc.ListByEntityType(ctx, enum.EntityTypeCustomer)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enum.SchemaStatusActive, history[0].Status)
}
