package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/apperr"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/customer"
	"goflare.io/quoting/lead"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
	"goflare.io/quoting/quote"
	"goflare.io/quoting/schema"
)

var (
	_ schema.Repository      = (*memstore.SchemaRepository)(nil)
	_ catalog.Repository     = (*memstore.CatalogRepository)(nil)
	_ quote.Repository       = (*memstore.QuoteRepository)(nil)
	_ adjustment.Repository  = (*memstore.AdjustmentRepository)(nil)
	_ adjustment.QuoteReader = (*memstore.QuoteRepository)(nil)
	_ lead.Repository        = (*memstore.LeadRepository)(nil)
	_ customer.Repository    = (*memstore.CustomerRepository)(nil)
	_ outbox.Repository      = (*memstore.OutboxRepository)(nil)
)

func createQuote(t *testing.T, store *memstore.Store) *models.Quote {
	t.Helper()
	q := models.NewQuote(1, stripe.CurrencyUSD)
	require.NoError(t, store.ExecuteTransaction(context.Background(), func(tx pgx.Tx) error {
		return store.Quotes().Create(context.Background(), tx, q)
	}))
	return q
}

func TestStore_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	boom := errors.New("boom")

	err := store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := store.Catalog().Create(ctx, tx, &models.CatalogItem{Name: "lost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var items []*models.CatalogItem
	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		items, err = store.Catalog().List(ctx, tx, 0, 0, false)
		return err
	}))
	assert.Empty(t, items)
}

func TestStore_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	q := createQuote(t, store)

	assert.Panics(t, func() {
		_ = store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			_, _ = store.Quotes().Delete(ctx, tx, q.ID, q.CreatedAt)
			panic("halfway")
		})
	})

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		got, err := store.Quotes().GetByID(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, enum.QuoteStateDraft, got.State)
		return nil
	}))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memstore.New().ExecuteTransaction(ctx, func(pgx.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestQuoteRepository_Revision(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	q := createQuote(t, store)
	require.Equal(t, 1, q.Revision)

	var first, second *models.Quote
	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		if first, err = store.Quotes().GetByID(ctx, tx, q.ID); err != nil {
			return err
		}
		second, err = store.Quotes().GetByID(ctx, tx, q.ID)
		return err
	}))

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return store.Quotes().Update(ctx, tx, first)
	}))
	assert.Equal(t, 2, first.Revision)

	err := store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return store.Quotes().Update(ctx, tx, second)
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestQuoteRepository_CopiesOnRead(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	q := createQuote(t, store)

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		got, err := store.Quotes().GetByID(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		got.Lines = append(got.Lines, models.QuoteLine{ID: "sneaky"})
		got.State = enum.QuoteStateAccepted

		again, err := store.Quotes().GetByID(ctx, tx, q.ID)
		if err != nil {
			return err
		}
		assert.Empty(t, again.Lines)
		assert.Equal(t, enum.QuoteStateDraft, again.State)
		return nil
	}))
}

func TestSchemaRepository_OneDraftPerEntityType(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	err := store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := store.Schemas().Create(ctx, tx, models.NewDraftSchema(enum.EntityTypeLead, 1, nil)); err != nil {
			return err
		}
		return store.Schemas().Create(ctx, tx, models.NewDraftSchema(enum.EntityTypeLead, 2, nil))
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSchemaRepository_StatusGuards(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := store.Schemas()

	draft := models.NewDraftSchema(enum.EntityTypeLead, 1, nil)
	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.Create(ctx, tx, draft)
	}))

	err := store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		active := *draft
		active.Status = enum.SchemaStatusActive
		if err := repo.Update(ctx, tx, &active, enum.SchemaStatusDraft); err != nil {
			return err
		}

		stale := *draft
		if err := repo.Update(ctx, tx, &stale, enum.SchemaStatusDraft); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("update of a published row: got %v", err)
		}
		if err := repo.DeleteDraft(ctx, tx, draft.ID); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("delete of a published row: got %v", err)
		}
		return nil
	})
	require.NoError(t, err)

	err = store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return repo.DeleteDraft(ctx, tx, 999)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		got, err := repo.GetByID(ctx, tx, draft.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, enum.SchemaStatusActive, got.Status)
		return nil
	}))
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ob := store.Outbox()

	first, err := models.NewEvent(enum.EventTypeQuoteSent, "quote", 1, map[string]int{"n": 1})
	require.NoError(t, err)
	second, err := models.NewEvent(enum.EventTypeQuoteAccepted, "quote", 1, map[string]int{"n": 2})
	require.NoError(t, err)

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := ob.Enqueue(ctx, tx, first); err != nil {
			return err
		}
		return ob.Enqueue(ctx, tx, second)
	}))

	err = store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return ob.Enqueue(ctx, tx, first)
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		pending, err := ob.FetchPending(ctx, tx, 1)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, first.ID, pending[0].ID)

		require.NoError(t, ob.MarkFailed(ctx, tx, first.ID.String(), "nats: timeout"))
		require.NoError(t, ob.MarkDelivered(ctx, tx, second.ID.String(), second.CreatedAt))

		pending, err = ob.FetchPending(ctx, tx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].Attempts)
		assert.Equal(t, "nats: timeout", pending[0].LastError)
		return nil
	}))
}
