package memstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
)

type OutboxRepository struct {
	store *Store
}

func cloneEvent(e *models.Event) *models.Event {
	out := *e
	out.Payload = append([]byte(nil), e.Payload...)
	return &out
}

func (r *OutboxRepository) Enqueue(_ context.Context, _ pgx.Tx, event *models.Event) error {
	for _, e := range r.store.state.events {
		if e.ID == event.ID {
			return apperr.Conflict("event %s already enqueued", event.ID)
		}
	}
	r.store.state.events = append(r.store.state.events, cloneEvent(event))
	return nil
}

func (r *OutboxRepository) FetchPending(_ context.Context, _ pgx.Tx, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range r.store.state.events {
		if e.DeliveredAt != nil {
			continue
		}
		out = append(out, cloneEvent(e))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkDelivered(_ context.Context, _ pgx.Tx, id string, at time.Time) error {
	return r.update(id, func(e *models.Event) {
		e.Attempts++
		e.DeliveredAt = &at
	})
}

func (r *OutboxRepository) MarkFailed(_ context.Context, _ pgx.Tx, id string, reason string) error {
	return r.update(id, func(e *models.Event) {
		e.Attempts++
		e.LastError = reason
	})
}

func (r *OutboxRepository) update(id string, fn func(e *models.Event)) error {
	for i, e := range r.store.state.events {
		if e.ID.String() == id {
			updated := cloneEvent(e)
			fn(updated)
			r.store.state.events[i] = updated
			return nil
		}
	}
	return apperr.NotFound("event %s does not exist", id)
}

func (r *OutboxRepository) ListByAggregate(_ context.Context, _ pgx.Tx, aggregateType string, aggregateID uint64) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range r.store.state.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}
