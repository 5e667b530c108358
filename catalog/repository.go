package catalog

import (
	"context"
	"encoding/json"
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
	Create(ctx context.Context, tx pgx.Tx, item *models.CatalogItem) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.CatalogItem, error)
	Update(ctx context.Context, tx pgx.Tx, item *models.CatalogItem) error
	List(ctx context.Context, tx pgx.Tx, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error)
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

func (r *repository) Create(ctx context.Context, tx pgx.Tx, item *models.CatalogItem) error {
	const query = `
    INSERT INTO catalog_items (name, description, unit_sell_price, unit_internal_cost, wbs_template, active, created_at, updated_at)
    VALUES (@name, @description, @unit_sell_price, @unit_internal_cost, @wbs_template, @active, @now, @now)
    RETURNING id, created_at, updated_at
    `

	wbs, err := json.Marshal(item.WBSTemplate)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"name":               item.Name,
		"description":        item.Description,
		"unit_sell_price":    item.UnitSellPrice,
		"unit_internal_cost": item.UnitInternalCost,
		"wbs_template":       wbs,
		"active":             item.Active,
		"now":                time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return apperr.FromPg(err, "failed to create catalog item %q", item.Name)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.CatalogItem, error) {
	const query = `
    SELECT id, name, description, unit_sell_price, unit_internal_cost, wbs_template, active, created_at, updated_at
    FROM catalog_items WHERE id = $1
    `

	item, err := r.scan(tx.QueryRow(ctx, query, id))
	if err != nil {
		r.logger.Error("error getting catalog item", zap.Error(err), zap.Uint64("id", id))
		return nil, apperr.FromPg(err, "catalog item %d does not exist", id)
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, item *models.CatalogItem) error {
	const query = `
    UPDATE catalog_items
    SET name = @name, description = @description, unit_sell_price = @unit_sell_price,
        unit_internal_cost = @unit_internal_cost, wbs_template = @wbs_template, active = @active, updated_at = @now
    WHERE id = @id
    RETURNING updated_at
    `

	wbs, err := json.Marshal(item.WBSTemplate)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":                 item.ID,
		"name":               item.Name,
		"description":        item.Description,
		"unit_sell_price":    item.UnitSellPrice,
		"unit_internal_cost": item.UnitInternalCost,
		"wbs_template":       wbs,
		"active":             item.Active,
		"now":                time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&item.UpdatedAt); err != nil {
		return apperr.FromPg(err, "catalog item %d does not exist", item.ID)
	}
	return nil
}

func (r *repository) List(ctx context.Context, tx pgx.Tx, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error) {
	const query = `
    SELECT id, name, description, unit_sell_price, unit_internal_cost, wbs_template, active, created_at, updated_at
    FROM catalog_items
    WHERE (NOT @active_only OR active)
    ORDER BY id
    LIMIT NULLIF(@limit, 0) OFFSET @offset
    `

	rows, err := tx.Query(ctx, query, pgx.NamedArgs{
		"active_only": activeOnly,
		"limit":       int64(limit),
		"offset":      int64(offset),
	})
	if err != nil {
		r.logger.Error("error listing catalog items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.CatalogItem, 0)
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) scan(row pgx.Row) (*models.CatalogItem, error) {
	item := models.NewCatalogItem()
	var wbs []byte
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.UnitSellPrice, &item.UnitInternalCost,
		&wbs, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(wbs, &item.WBSTemplate); err != nil {
		return nil, fmt.Errorf("failed to decode wbs template of catalog item %d: %w", item.ID, err)
	}
	return item, nil
}
