package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, adjustment *models.CostAdjustment) error
	FindByQuoteID(ctx context.Context, tx pgx.Tx, quoteID uint64) ([]*models.CostAdjustment, error)
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
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

func (r *repository) Create(ctx context.Context, tx pgx.Tx, adjustment *models.CostAdjustment) error {
	const query = `
    INSERT INTO cost_adjustments (quote_id, description, amount, reason, approved_by, created_at)
    VALUES (@quote_id, @description, @amount, @reason, @approved_by, @created_at)
    RETURNING id
    `

	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}

	args := pgx.NamedArgs{
		"quote_id":    adjustment.QuoteID,
		"description": adjustment.Description,
		"amount":      adjustment.Amount,
		"reason":      adjustment.Reason,
		"approved_by": adjustment.ApprovedBy,
		"created_at":  adjustment.CreatedAt,
	}

	if err := tx.QueryRow(ctx, query, args).Scan(&adjustment.ID); err != nil {
		return apperr.FromPg(err, "failed to add cost adjustment to quote %d", adjustment.QuoteID)
	}
	return nil
}

func (r *repository) FindByQuoteID(ctx context.Context, tx pgx.Tx, quoteID uint64) ([]*models.CostAdjustment, error) {
	const query = `
    SELECT id, quote_id, description, amount, reason, approved_by, created_at
    FROM cost_adjustments
    WHERE quote_id = $1
    ORDER BY id
    `

	rows, err := tx.Query(ctx, query, quoteID)
	if err != nil {
		r.logger.Error("error listing cost adjustments", zap.Error(err), zap.Uint64("quote_id", quoteID))
		return nil, fmt.Errorf("failed to list cost adjustments of quote %d: %w", quoteID, err)
	}
	defer rows.Close()

	adjustments := make([]*models.CostAdjustment, 0)
	for rows.Next() {
		var a models.CostAdjustment
		if err = rows.Scan(&a.ID, &a.QuoteID, &a.Description, &a.Amount, &a.Reason, &a.ApprovedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost adjustment: %w", err)
		}
		adjustments = append(adjustments, &a)
	}
	return adjustments, rows.Err()
}

func (r *repository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM cost_adjustments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cost adjustment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cost adjustment %d does not exist", id)
	}
	return nil
}
