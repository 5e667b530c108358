package outbox

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store.Outbox(), store)

	event, err := models.NewEvent(enum.EventTypeQuoteArchived, "quote", 9, map[string]uint64{"quote_id": 9})
	require.NoError(t, err)
	require.NoError(t, store.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return store.Outbox().Enqueue(ctx, tx, event)
	}))

	pending, err := svc.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"quote_id":9}`, string(pending[0].Payload))

	require.NoError(t, svc.MarkFailed(ctx, event.ID.String(), "no responders"))
	require.NoError(t, svc.MarkDelivered(ctx, event.ID.String()))

	pending, err = svc.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	history, err := svc.ListByAggregate(ctx, "quote", 9)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Attempts)
	assert.NotNil(t, history[0].DeliveredAt)

	assert.ErrorIs(t, svc.MarkDelivered(ctx, "00000000-0000-0000-0000-000000000000"), apperr.ErrNotFound)
}
