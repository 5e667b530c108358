package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type QuoteRepository struct {
	store *Store
}

// cloneQuote copies every slice header so that slice surgery on the caller's
// copy never reaches the stored record. Component values are shared; they
// are replaced, never edited.
func cloneQuote(q *models.Quote) *models.Quote {
	out := *q
	out.Lines = slices.Clone(q.Lines)
	out.Components = slices.Clone(q.Components)
	out.PaymentSchedule = slices.Clone(q.PaymentSchedule)
	out.MalleableData = q.MalleableData.Clone()
	return &out
}

func (r *QuoteRepository) Create(_ context.Context, _ pgx.Tx, quote *models.Quote) error {
	now := time.Now().UTC()
	quote.ID = r.store.state.nextID()
	quote.Revision = 1
	quote.CreatedAt = now
	quote.UpdatedAt = now
	r.store.state.quotes[quote.ID] = cloneQuote(quote)
	return nil
}

// Update saves quote if its revision still matches the stored one.
func (r *QuoteRepository) Update(_ context.Context, _ pgx.Tx, quote *models.Quote) error {
	stored, ok := r.store.state.quotes[quote.ID]
	if !ok {
		return apperr.NotFound("quote %d does not exist", quote.ID)
	}
	if stored.Revision != quote.Revision {
		return apperr.Conflict("quote %d was modified concurrently (revision %d, expected %d)", quote.ID, stored.Revision, quote.Revision)
	}
	quote.Revision++
	quote.UpdatedAt = time.Now().UTC()
	r.store.state.quotes[quote.ID] = cloneQuote(quote)
	return nil
}

func (r *QuoteRepository) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.Quote, error) {
	q, ok := r.store.state.quotes[id]
	if !ok {
		return nil, apperr.NotFound("quote %d does not exist", id)
	}
	return cloneQuote(q), nil
}

// GetForUpdate is GetByID; the store mutex already holds every row.
func (r *QuoteRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *QuoteRepository) ListByCustomer(_ context.Context, _ pgx.Tx, customerID uint64, includeArchived bool) ([]*models.Quote, error) {
	var quotes []*models.Quote
	for _, q := range r.store.state.quotes {
		if q.CustomerID != customerID {
			continue
		}
		if !includeArchived && q.State == enum.QuoteStateArchived {
			continue
		}
		quotes = append(quotes, cloneQuote(q))
	}
	slices.SortFunc(quotes, func(a, b *models.Quote) int { return compareID(a.ID, b.ID) })
	return quotes, nil
}

// Delete archives the quote. Archiving an archived quote changes nothing.
func (r *QuoteRepository) Delete(_ context.Context, _ pgx.Tx, id uint64, at time.Time) (bool, error) {
	q, ok := r.store.state.quotes[id]
	if !ok {
		return false, apperr.NotFound("quote %d does not exist", id)
	}
	if q.State == enum.QuoteStateArchived {
		return false, nil
	}
	archived := cloneQuote(q)
	archived.State = enum.QuoteStateArchived
	archived.ArchivedAt = &at
	archived.Revision++
	archived.UpdatedAt = at
	r.store.state.quotes[id] = archived
	return true, nil
}
