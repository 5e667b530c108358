package customer

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
	Create(ctx context.Context, tx pgx.Tx, customer *models.Customer) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Customer, error)
	Update(ctx context.Context, tx pgx.Tx, customer *models.Customer) error
	Delete(ctx context.Context, tx pgx.Tx, id uint64) error
	List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Customer, error)
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

const selectColumns = `SELECT id, name, email, malleable_data, malleable_schema_version, created_at, updated_at FROM customers`

func (r *repository) Create(ctx context.Context, tx pgx.Tx, customer *models.Customer) error {
	const query = `
    INSERT INTO customers (name, email, malleable_data, malleable_schema_version, created_at, updated_at)
    VALUES (@name, @email, @malleable_data, @malleable_schema_version, @now, @now)
    RETURNING id, created_at, updated_at
    `

	data, err := json.Marshal(customer.MalleableData)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"name":                     customer.Name,
		"email":                    customer.Email,
		"malleable_data":           data,
		"malleable_schema_version": customer.SchemaVersion,
		"now":                      time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
		return apperr.FromPg(err, "failed to create customer %q", customer.Name)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Customer, error) {
	customer, err := scan(tx.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		r.logger.Error("error getting customer", zap.Error(err), zap.Uint64("customer_id", id))
		return nil, apperr.FromPg(err, "customer %d does not exist", id)
	}
	return customer, nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, customer *models.Customer) error {
	const query = `
    UPDATE customers
    SET name = @name, email = @email, malleable_data = @malleable_data,
        malleable_schema_version = @malleable_schema_version, updated_at = @now
    WHERE id = @id
    RETURNING updated_at
    `

	data, err := json.Marshal(customer.MalleableData)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":                       customer.ID,
		"name":                     customer.Name,
		"email":                    customer.Email,
		"malleable_data":           data,
		"malleable_schema_version": customer.SchemaVersion,
		"now":                      time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&customer.UpdatedAt); err != nil {
		return apperr.FromPg(err, "customer %d does not exist", customer.ID)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("customer %d does not exist", id)
	}
	return nil
}

func (r *repository) List(ctx context.Context, tx pgx.Tx, limit, offset uint64) ([]*models.Customer, error) {
	rows, err := tx.Query(ctx, selectColumns+` ORDER BY id LIMIT NULLIF($1, 0) OFFSET $2`, int64(limit), int64(offset))
	if err != nil {
		r.logger.Error("error listing customers", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	customers := make([]*models.Customer, 0)
	for rows.Next() {
		customer, err := scan(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

func scan(row pgx.Row) (*models.Customer, error) {
	customer := models.NewCustomer()
	var data []byte
	if err := row.Scan(&customer.ID, &customer.Name, &customer.Email, &data,
		&customer.SchemaVersion, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &customer.MalleableData); err != nil {
		return nil, fmt.Errorf("failed to decode malleable data of customer %d: %w", customer.ID, err)
	}
	return customer, nil
}
