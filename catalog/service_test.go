package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/memstore"
	"goflare.io/quoting/models"
)

func newTestService() Service {
	store := memstore.New()
	return NewService(store.Catalog(), store, zap.NewNop())
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	t.Run("validates every field", func(t *testing.T) {
		err := svc.Create(ctx, &models.CatalogItem{
			UnitSellPrice: decimal.NewFromInt(-1),
			WBSTemplate:   []models.WBSEntry{{Hours: decimal.NewFromInt(-2)}},
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, []string{
			"name is required",
			"unit_sell_price must not be negative",
			"wbs_template[0].description is required",
			"wbs_template[0].hours must not be negative",
		}, apperr.Violations(err))
	})

	t.Run("defaults the template", func(t *testing.T) {
		item := &models.CatalogItem{Name: "Firewall appliance", UnitSellPrice: decimal.NewFromInt(1800), Active: true}
		require.NoError(t, svc.Create(ctx, item))
		assert.NotZero(t, item.ID)

		got, err := svc.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "Firewall appliance", got.Name)
		assert.NotNil(t, got.WBSTemplate)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	item := &models.CatalogItem{Name: "Site survey", UnitSellPrice: decimal.NewFromInt(300), Active: true}
	require.NoError(t, svc.Create(ctx, item))
	created := item.CreatedAt

	update := &models.CatalogItem{
		ID:            item.ID,
		Name:          "Site survey (half day)",
		UnitSellPrice: decimal.NewFromInt(350),
		CreatedAt:     time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Update(ctx, update))

	got, err := svc.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site survey (half day)", got.Name)
	assert.Equal(t, created, got.CreatedAt)
	assert.False(t, got.Active)

	assert.ErrorIs(t, svc.Update(ctx, &models.CatalogItem{ID: 999, Name: "ghost"}), apperr.ErrNotFound)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for i, active := range []bool{true, false, true} {
		item := &models.CatalogItem{Name: "item", UnitSellPrice: decimal.NewFromInt(int64(i)), Active: active}
		require.NoError(t, svc.Create(ctx, item))
	}

	all, err := svc.List(ctx, 10, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := svc.List(ctx, 10, 0, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	paged, err := svc.List(ctx, 1, 1, false)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, all[1].ID, paged[0].ID)
}
