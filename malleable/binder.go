// Package malleable applies versioned schema validation to the extra fields
// carried by leads, quotes, customers and the other extensible entities.
package malleable

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/schema"
)

// Binder decides which schema version a write is validated against and runs
// the validator. It works inside the caller's transaction.
type Binder interface {
	// BindOnCreate validates data against the active schema, if one exists,
	// and returns its version. With no active schema the data is accepted
	// as-is and the returned version is nil.
	BindOnCreate(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, data models.MalleableData) (*int, error)
	// BindOnUpdate validates against the version the entity already carries.
	// An entity without a version adopts the active schema when non-empty
	// data is written.
	BindOnUpdate(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, current *int, data models.MalleableData) (*int, error)
}

type binder struct {
	repo   schema.Repository
	cache  schema.Cache
	logger *zap.Logger
}

// NewBinder returns a Binder reading schemas through repo. cache may be nil.
func NewBinder(repo schema.Repository, cache schema.Cache, logger *zap.Logger) Binder {
	return &binder{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (b *binder) BindOnCreate(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, data models.MalleableData) (*int, error) {
	active, err := b.active(ctx, tx, entityType)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return b.check(active, data)
}

func (b *binder) BindOnUpdate(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, current *int, data models.MalleableData) (*int, error) {
	if current != nil {
		frozen, err := b.version(ctx, tx, entityType, *current)
		if err != nil {
			return nil, err
		}
		return b.check(frozen, data)
	}

	if data.IsEmpty() {
		return nil, nil
	}

	active, err := b.active(ctx, tx, entityType)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return b.check(active, data)
}

func (b *binder) check(def *models.SchemaDefinition, data models.MalleableData) (*int, error) {
	if err := apperr.Invalid(schema.Validate(data, def.Fields)...); err != nil {
		return nil, err
	}
	version := def.Version
	return &version, nil
}

func (b *binder) active(ctx context.Context, tx pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	if b.cache != nil {
		cached, found, err := b.cache.GetActive(ctx, entityType)
		if err != nil {
			b.logger.Warn("Failed to get active schema from cache", zap.Error(err), zap.String("entity_type", string(entityType)))
		} else if found {
			return cached, nil
		}
	}

	active, err := b.repo.FindActiveByEntityType(ctx, tx, entityType)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if err = b.cache.SetActive(ctx, active); err != nil {
			b.logger.Warn("Failed to cache active schema", zap.Error(err), zap.String("entity_type", string(entityType)))
		}
	}
	return active, nil
}

func (b *binder) version(ctx context.Context, tx pgx.Tx, entityType enum.EntityType, version int) (*models.SchemaDefinition, error) {
	if b.cache != nil {
		cached, found, err := b.cache.GetVersion(ctx, entityType, version)
		if err != nil {
			b.logger.Warn("Failed to get schema version from cache", zap.Error(err), zap.Int("version", version))
		} else if found {
			return cached, nil
		}
	}

	def, err := b.repo.FindByEntityTypeAndVersion(ctx, tx, entityType, version)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if err = b.cache.SetVersion(ctx, def); err != nil {
			b.logger.Warn("Failed to cache schema version", zap.Error(err), zap.Int("version", version))
		}
	}
	return def, nil
}
