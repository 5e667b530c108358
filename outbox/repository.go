package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

var _ Repository = (*repository)(nil)

// Repository stores domain events next to the aggregate writes that raise
// them. Enqueue must be called with the same tx as the aggregate change.
type Repository interface {
	Enqueue(ctx context.Context, tx pgx.Tx, event *models.Event) error
	// FetchPending returns up to limit undelivered events, oldest first. Rows
	// locked by another relay are skipped.
	FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]*models.Event, error)
	MarkDelivered(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id string, reason string) error
	ListByAggregate(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID uint64) ([]*models.Event, error)
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) Enqueue(ctx context.Context, tx pgx.Tx, event *models.Event) error {
	const query = `
    INSERT INTO outbox_events (id, type, aggregate_type, aggregate_id, payload, attempts, created_at)
    VALUES (@id, @type, @aggregate_type, @aggregate_id, @payload, 0, @created_at)
    `

	args := pgx.NamedArgs{
		"id":             event.ID,
		"type":           event.Type,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"payload":        []byte(event.Payload),
		"created_at":     event.CreatedAt,
	}

	if _, err := tx.Exec(ctx, query, args); err != nil {
		return apperr.FromPg(err, "failed to enqueue %s event", event.Type)
	}

	r.logger.Debug("event enqueued",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)))

	return nil
}

func (r *repository) FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]*models.Event, error) {
	const query = `
    SELECT id, type, aggregate_type, aggregate_id, payload, attempts, COALESCE(last_error, ''), created_at, delivered_at
    FROM outbox_events
    WHERE delivered_at IS NULL
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
    `
	return r.query(ctx, tx, query, limit)
}

func (r *repository) MarkDelivered(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE outbox_events SET delivered_at = $2, attempts = attempts + 1 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark event %s delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event %s does not exist", id)
	}
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, tx pgx.Tx, id string, reason string) error {
	tag, err := tx.Exec(ctx, `UPDATE outbox_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark event %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event %s does not exist", id)
	}
	return nil
}

func (r *repository) ListByAggregate(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID uint64) ([]*models.Event, error) {
	const query = `
    SELECT id, type, aggregate_type, aggregate_id, payload, attempts, COALESCE(last_error, ''), created_at, delivered_at
    FROM outbox_events
    WHERE aggregate_type = $1 AND aggregate_id = $2
    ORDER BY created_at
    `
	return r.query(ctx, tx, query, aggregateType, aggregateID)
}

func (r *repository) query(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]*models.Event, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			event     models.Event
			eventType string
			payload   []byte
		)
		if err = rows.Scan(&event.ID, &eventType, &event.AggregateType, &event.AggregateID, &payload,
			&event.Attempts, &event.LastError, &event.CreatedAt, &event.DeliveredAt); err != nil {
			r.logger.Error("error scanning event", zap.Error(err))
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Type = enum.EventType(eventType)
		event.Payload = payload
		events = append(events, &event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	return events, nil
}
