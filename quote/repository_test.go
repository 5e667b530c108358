package quote_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap/zaptest"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/driver/drivertest"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/quote"
)

func TestRepository_Postgres(t *testing.T) {
	pool := drivertest.Postgres(t)
	repo := quote.NewRepository(pool, zaptest.NewLogger(t))
	tm := driver.NewTransactionManager(pool)
	ctx := context.Background()

	create := func(t *testing.T, customerID uint64) *models.Quote {
		t.Helper()
		q := models.NewQuote(customerID, stripe.CurrencyUSD)
		require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			return repo.Create(ctx, tx, q)
		}))
		return q
	}

	t.Run("stale revision is a conflict", func(t *testing.T) {
		q := create(t, 1)
		stale := *q

		q.State = enum.QuoteStateSent
		require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			return repo.Update(ctx, tx, q)
		}))
		assert.Equal(t, stale.Revision+1, q.Revision)

		err := tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			return repo.Update(ctx, tx, &stale)
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("missing quote", func(t *testing.T) {
		err := tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			_, err := repo.GetForUpdate(ctx, tx, 987654)
			return err
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		err = tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			return repo.Update(ctx, tx, &models.Quote{ID: 987654})
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("delete archives once", func(t *testing.T) {
		q := create(t, 2)
		kept := create(t, 2)

		var first, second bool
		require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			var err error
			if first, err = repo.Delete(ctx, tx, q.ID, time.Now().UTC()); err != nil {
				return err
			}
			second, err = repo.Delete(ctx, tx, q.ID, time.Now().UTC())
			return err
		}))
		assert.True(t, first)
		assert.False(t, second)

		var visible, all []*models.Quote
		require.NoError(t, tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
			var err error
			if visible, err = repo.ListByCustomer(ctx, tx, 2, false); err != nil {
				return err
			}
			all, err = repo.ListByCustomer(ctx, tx, 2, true)
			return err
		}))
		require.Len(t, visible, 1)
		assert.Equal(t, kept.ID, visible[0].ID)
		assert.Len(t, all, 2)
	})
}
