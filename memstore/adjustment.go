package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
)

type AdjustmentRepository struct {
	store *Store
}

func (r *AdjustmentRepository) Create(_ context.Context, _ pgx.Tx, adjustment *models.CostAdjustment) error {
	adjustment.ID = r.store.state.nextID()
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}
	stored := *adjustment
	r.store.state.adjustments[adjustment.ID] = &stored
	return nil
}

func (r *AdjustmentRepository) FindByQuoteID(_ context.Context, _ pgx.Tx, quoteID uint64) ([]*models.CostAdjustment, error) {
	var out []*models.CostAdjustment
	for _, a := range r.store.state.adjustments {
		if a.QuoteID == quoteID {
			cp := *a
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.CostAdjustment) int { return compareID(a.ID, b.ID) })
	return out, nil
}

func (r *AdjustmentRepository) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	if _, ok := r.store.state.adjustments[id]; !ok {
		return apperr.NotFound("cost adjustment %d does not exist", id)
	}
	delete(r.store.state.adjustments, id)
	return nil
}
