package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/ignite"
	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, schema *models.SchemaDefinition) error
	// Update saves schema only while the stored row still has status from.
	// A row that moved on is ErrInvalidState.
	Update(ctx context.Context, tx pgx.Tx, schema *models.SchemaDefinition, from enum.SchemaStatus) error
	// DeleteDraft removes a draft. A published row is ErrInvalidState.
	DeleteDraft(ctx context.Context, tx pgx.Tx, id uint64) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.SchemaDefinition, error)
	FindActiveByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error)
	FindDraftByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error)
	FindByEntityTypeAndVersion(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, version int) (*models.SchemaDefinition, error)
	ListByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) ([]*models.SchemaDefinition, error)
	LatestVersion(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (int, error)
	// LockEntityType serialises draft creation and publishing for one entity
	// type until the surrounding transaction ends.
	LockEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) error
}

var _ Repository = (*repository)(nil)

const selectColumns = `SELECT id, entity_type, version, status, fields, published_at, created_at, updated_at FROM schema_definitions`

// schemaRow is a pooled scan buffer.
type schemaRow struct {
	ID          uint64
	EntityType  string
	Version     int
	Status      string
	Fields      []byte
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type repository struct {
	conn        driver.PostgresPool
	logger      *zap.Logger
	poolManager ignite.Manager
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger, poolManager ignite.Manager) (Repository, error) {
	err := poolManager.RegisterPool(reflect.TypeOf(&schemaRow{}), ignite.Config[any]{
		InitialSize: 4,
		MaxSize:     64,
		MaxIdleTime: 10 * time.Minute,
		Factory: func() (any, error) {
			return &schemaRow{}, nil
		},
		Reset: func(obj any) error {
			r := obj.(*schemaRow)
			*r = schemaRow{}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register schema row pool: %w", err)
	}

	return &repository{
		conn:        conn,
		logger:      logger,
		poolManager: poolManager,
	}, nil
}

func (r *repository) getFromPool(ctx context.Context) (*schemaRow, func(), error) {
	pool, err := r.poolManager.GetPool(reflect.TypeOf(&schemaRow{}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get pool: %w", err)
	}

	objWrapper, err := pool.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object from pool: %w", err)
	}

	row := objWrapper.Object.(*schemaRow)
	release := func() {
		pool.Put(objWrapper)
	}

	return row, release, nil
}

func (r *repository) Create(ctx context.Context, tx pgx.Tx, schema *models.SchemaDefinition) error {
	const query = `
    INSERT INTO schema_definitions (entity_type, version, status, fields, published_at, created_at, updated_at)
    VALUES (@entity_type, @version, @status, @fields, @published_at, @now, @now)
    RETURNING id, created_at, updated_at
    `

	fields, err := json.Marshal(schema.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode schema fields: %w", err)
	}

	args := pgx.NamedArgs{
		"entity_type":  schema.EntityType,
		"version":      schema.Version,
		"status":       schema.Status,
		"fields":       fields,
		"published_at": schema.PublishedAt,
		"now":          time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&schema.ID, &schema.CreatedAt, &schema.UpdatedAt); err != nil {
		return apperr.FromPg(err, "failed to create %s schema v%d", schema.EntityType, schema.Version)
	}

	return nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, schema *models.SchemaDefinition, from enum.SchemaStatus) error {
	const query = `
    UPDATE schema_definitions
    SET status = @status, fields = @fields, published_at = @published_at, updated_at = @now
    WHERE id = @id AND status = @from
    RETURNING updated_at
    `

	fields, err := json.Marshal(schema.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode schema fields: %w", err)
	}

	args := pgx.NamedArgs{
		"id":           schema.ID,
		"from":         from,
		"status":       schema.Status,
		"fields":       fields,
		"published_at": schema.PublishedAt,
		"now":          time.Now().UTC(),
	}

	err = tx.QueryRow(ctx, query, args).Scan(&schema.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.moved(ctx, tx, schema.ID, from)
	}
	if err != nil {
		return apperr.FromPg(err, "failed to update schema %d", schema.ID)
	}

	return nil
}

func (r *repository) DeleteDraft(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM schema_definitions WHERE id = $1 AND status = $2`, id, enum.SchemaStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to delete schema %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.moved(ctx, tx, id, enum.SchemaStatusDraft)
	}
	return nil
}

// moved explains why a status-guarded write matched no row.
func (r *repository) moved(ctx context.Context, tx pgx.Tx, id uint64, from enum.SchemaStatus) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM schema_definitions WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return apperr.FromPg(err, "schema %d does not exist", id)
	}
	return apperr.InvalidState("schema %d is %s, not %s", id, status, from)
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.SchemaDefinition, error) {
	return r.queryOne(ctx, tx, selectColumns+` WHERE id = $1`, []any{id}, "schema %d does not exist", id)
}

func (r *repository) FindActiveByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	return r.queryOne(ctx, tx, selectColumns+` WHERE entity_type = $1 AND status = $2`,
		[]any{entityType, enum.SchemaStatusActive}, "no active schema for %s", entityType)
}

func (r *repository) FindDraftByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	return r.queryOne(ctx, tx, selectColumns+` WHERE entity_type = $1 AND status = $2`,
		[]any{entityType, enum.SchemaStatusDraft}, "no draft schema for %s", entityType)
}

func (r *repository) FindByEntityTypeAndVersion(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, version int) (*models.SchemaDefinition, error) {
	return r.queryOne(ctx, tx, selectColumns+` WHERE entity_type = $1 AND version = $2`,
		[]any{entityType, version}, "schema %s v%d does not exist", entityType, version)
}

func (r *repository) ListByEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) ([]*models.SchemaDefinition, error) {
	rows, err := tx.Query(ctx, selectColumns+` WHERE entity_type = $1 ORDER BY version`, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s schemas: %w", entityType, err)
	}
	defer rows.Close()

	var schemas []*models.SchemaDefinition
	for rows.Next() {
		schema, err := r.scan(ctx, rows)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s schemas: %w", entityType, err)
	}

	return schemas, nil
}

func (r *repository) LatestVersion(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (int, error) {
	var version int
	err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_definitions WHERE entity_type = $1`, entityType).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest %s schema version: %w", entityType, err)
	}
	return version, nil
}

func (r *repository) LockEntityType(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('schema_definitions:' || $1))`, string(entityType)); err != nil {
		return fmt.Errorf("failed to lock %s schemas: %w", entityType, err)
	}
	return nil
}

func (r *repository) queryOne(ctx context.Context, tx pgx.Tx, query string, args []any, notFound string, notFoundArgs ...any) (*models.SchemaDefinition, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query schema: %w", err)
		}
		return nil, apperr.NotFound(notFound, notFoundArgs...)
	}

	return r.scan(ctx, rows)
}

func (r *repository) scan(ctx context.Context, rows pgx.Rows) (*models.SchemaDefinition, error) {
	row, release, err := r.getFromPool(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err = rows.Scan(&row.ID, &row.EntityType, &row.Version, &row.Status, &row.Fields,
		&row.PublishedAt, &row.CreatedAt, &row.UpdatedAt); err != nil {
		r.logger.Error("error scanning schema", zap.Error(err))
		return nil, fmt.Errorf("failed to scan schema: %w", err)
	}

	schema := &models.SchemaDefinition{
		ID:          row.ID,
		EntityType:  enum.EntityType(row.EntityType),
		Version:     row.Version,
		Status:      enum.SchemaStatus(row.Status),
		PublishedAt: row.PublishedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err = json.Unmarshal(row.Fields, &schema.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of schema %d: %w", row.ID, err)
	}

	return schema, nil
}
