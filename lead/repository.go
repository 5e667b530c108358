package lead

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
	Create(ctx context.Context, tx pgx.Tx, lead *models.Lead) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Lead, error)
	Update(ctx context.Context, tx pgx.Tx, lead *models.Lead) error
	List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Lead, error)
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

func (r *repository) Create(ctx context.Context, tx pgx.Tx, lead *models.Lead) error {
	const query = `
    INSERT INTO leads (name, email, company, source, malleable_data, malleable_schema_version, created_at, updated_at)
    VALUES (@name, @email, @company, @source, @malleable_data, @malleable_schema_version, @now, @now)
    RETURNING id, created_at, updated_at
    `

	data, err := json.Marshal(lead.MalleableData)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"name":                     lead.Name,
		"email":                    lead.Email,
		"company":                  lead.Company,
		"source":                   lead.Source,
		"malleable_data":           data,
		"malleable_schema_version": lead.SchemaVersion,
		"now":                      time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		return apperr.FromPg(err, "failed to create lead %q", lead.Name)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Lead, error) {
	const query = `
    SELECT id, name, email, company, source, malleable_data, malleable_schema_version, created_at, updated_at
    FROM leads WHERE id = $1
    `

	lead, err := scan(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperr.FromPg(err, "lead %d does not exist", id)
	}
	return lead, nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, lead *models.Lead) error {
	const query = `
    UPDATE leads
    SET name = @name, email = @email, company = @company, source = @source,
        malleable_data = @malleable_data, malleable_schema_version = @malleable_schema_version, updated_at = @now
    WHERE id = @id
    RETURNING updated_at
    `

	data, err := json.Marshal(lead.MalleableData)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":                       lead.ID,
		"name":                     lead.Name,
		"email":                    lead.Email,
		"company":                  lead.Company,
		"source":                   lead.Source,
		"malleable_data":           data,
		"malleable_schema_version": lead.SchemaVersion,
		"now":                      time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&lead.UpdatedAt); err != nil {
		return apperr.FromPg(err, "lead %d does not exist", lead.ID)
	}
	return nil
}

func (r *repository) List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Lead, error) {
	const query = `
    SELECT id, name, email, company, source, malleable_data, malleable_schema_version, created_at, updated_at
    FROM leads ORDER BY id LIMIT NULLIF($1, 0) OFFSET $2
    `

	rows, err := tx.Query(ctx, query, int64(limit), int64(offset))
	if err != nil {
		r.logger.Error("error listing leads", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		lead, err := scan(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func scan(row pgx.Row) (*models.Lead, error) {
	var (
		lead models.Lead
		data []byte
	)
	if err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Company, &lead.Source,
		&data, &lead.SchemaVersion, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &lead.MalleableData); err != nil {
		return nil, fmt.Errorf("failed to decode malleable data of lead %d: %w", lead.ID, err)
	}
	return &lead, nil
}
