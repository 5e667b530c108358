package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
)

type Service interface {
	CreateDraft(ctx context.Context, entityType enum.EntityType, cloneFromActive bool) (*models.SchemaDefinition, error)
	UpdateDraftFields(ctx context.Context, draftID uint64, fields []models.FieldDefinition) (*models.SchemaDefinition, error)
	Publish(ctx context.Context, draftID uint64) (*models.SchemaDefinition, error)
	DiscardDraft(ctx context.Context, draftID uint64) error
	GetByID(ctx context.Context, id uint64) (*models.SchemaDefinition, error)
	FindActiveByEntityType(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, error)
	FindByEntityTypeAndVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, error)
	ListByEntityType(ctx context.Context, entityType enum.EntityType) ([]*models.SchemaDefinition, error)
}

type service struct {
	repo               Repository
	outbox             outbox.Repository
	cache              Cache
	transactionManager driver.Transactor
	logger             *zap.Logger
	now                func() time.Time
}

// NewService builds the schema engine. cache may be nil.
func NewService(repo Repository, ob outbox.Repository, cache Cache, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		outbox:             ob,
		cache:              cache,
		transactionManager: tm,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateDraft(ctx context.Context, entityType enum.EntityType, cloneFromActive bool) (*models.SchemaDefinition, error) {
	if !entityType.IsValid() {
		return nil, apperr.Invalid(fmt.Sprintf("unknown entity type %q", entityType))
	}

	var draft *models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.repo.LockEntityType(ctx, tx, entityType); err != nil {
			return err
		}

		existing, err := s.repo.FindDraftByEntityType(ctx, tx, entityType)
		switch {
		case err == nil:
			return apperr.Conflict("a draft schema (v%d) already exists for %s", existing.Version, entityType)
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		var fields []models.FieldDefinition
		if cloneFromActive {
			active, err := s.repo.FindActiveByEntityType(ctx, tx, entityType)
			switch {
			case err == nil:
				fields = active.Fields
			case !errors.Is(err, apperr.ErrNotFound):
				return err
			}
		}

		latest, err := s.repo.LatestVersion(ctx, tx, entityType)
		if err != nil {
			return err
		}

		draft = models.NewDraftSchema(entityType, latest+1, fields)
		return s.repo.Create(ctx, tx, draft)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schema draft created",
		zap.String("entity_type", string(entityType)),
		zap.Int("version", draft.Version),
		zap.Int("fields", len(draft.Fields)))

	return draft, nil
}

func (s *service) UpdateDraftFields(ctx context.Context, draftID uint64, fields []models.FieldDefinition) (*models.SchemaDefinition, error) {
	var draft *models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		draft, err = s.lockSchema(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsDraft() {
			return apperr.InvalidState("schema %d is %s and cannot be edited", draft.ID, draft.Status)
		}

		locked, err := s.lockedFieldTypes(ctx, tx, draft)
		if err != nil {
			return err
		}
		if err = apperr.Invalid(ValidateFields(fields, locked)...); err != nil {
			return err
		}

		if err = draft.ReplaceFields(fields); err != nil {
			return err
		}
		return s.repo.Update(ctx, tx, draft, enum.SchemaStatusDraft)
	})
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// lockSchema takes the entity type lock of schema id and returns the row as
// committed by the previous lock holder.
func (s *service) lockSchema(ctx context.Context, tx pgx.Tx, id uint64) (*models.SchemaDefinition, error) {
	schema, err := s.repo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err = s.repo.LockEntityType(ctx, tx, schema.EntityType); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tx, id)
}

// lockedFieldTypes collects the type every key has had in any version of the
// entity type, the current draft included. Later versions win.
func (s *service) lockedFieldTypes(ctx context.Context, tx pgx.Tx, draft *models.SchemaDefinition) (map[string]enum.FieldType, error) {
	versions, err := s.repo.ListByEntityType(ctx, tx, draft.EntityType)
	if err != nil {
		return nil, err
	}

	locked := make(map[string]enum.FieldType)
	for _, v := range versions {
		if v.ID == draft.ID {
			continue
		}
		for _, f := range v.Fields {
			locked[f.Key] = f.Type
		}
	}
	for _, f := range draft.Fields {
		locked[f.Key] = f.Type
	}
	return locked, nil
}

// Publish makes the draft the active version and retires the previous one in
// the same transaction.
func (s *service) Publish(ctx context.Context, draftID uint64) (*models.SchemaDefinition, error) {
	var (
		published *models.SchemaDefinition
		retired   *models.SchemaDefinition
	)

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		// A concurrent publish of the same draft is seen here once it commits.
		draft, err := s.lockSchema(ctx, tx, draftID)
		if err != nil {
			return err
		}

		now := s.now()
		if err = draft.Publish(now); err != nil {
			return err
		}

		active, err := s.repo.FindActiveByEntityType(ctx, tx, draft.EntityType)
		switch {
		case err == nil:
			if err = active.Retire(); err != nil {
				return err
			}
			if err = s.repo.Update(ctx, tx, active, enum.SchemaStatusActive); err != nil {
				return fmt.Errorf("failed to retire schema %d: %w", active.ID, err)
			}
			retired = active
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		if err = s.repo.Update(ctx, tx, draft, enum.SchemaStatusDraft); err != nil {
			return fmt.Errorf("failed to publish schema %d: %w", draft.ID, err)
		}

		event, err := models.NewEvent(enum.EventTypeSchemaPublished, "schema_definition", draft.ID, draft)
		if err != nil {
			return fmt.Errorf("failed to build schema event: %w", err)
		}
		if err = s.outbox.Enqueue(ctx, tx, event); err != nil {
			return err
		}

		published = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, published, retired)

	fields := []zap.Field{
		zap.String("entity_type", string(published.EntityType)),
		zap.Int("version", published.Version),
	}
	if retired != nil {
		fields = append(fields, zap.Int("retired_version", retired.Version))
	}
	s.logger.Info("schema published", fields...)

	return published, nil
}

func (s *service) refreshCache(ctx context.Context, published, retired *models.SchemaDefinition) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetActive(ctx, published); err != nil {
		s.logger.Warn("Failed to cache active schema", zap.Error(err), zap.String("entity_type", string(published.EntityType)))
	}
	for _, schema := range []*models.SchemaDefinition{published, retired} {
		if schema == nil {
			continue
		}
		if err := s.cache.SetVersion(ctx, schema); err != nil {
			s.logger.Warn("Failed to cache schema version", zap.Error(err), zap.Uint64("id", schema.ID))
		}
	}
}

func (s *service) DiscardDraft(ctx context.Context, draftID uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		draft, err := s.lockSchema(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if !draft.IsDraft() {
			return apperr.InvalidState("schema %d is %s and cannot be discarded", draft.ID, draft.Status)
		}
		return s.repo.DeleteDraft(ctx, tx, draftID)
	})
}

func (s *service) GetByID(ctx context.Context, id uint64) (*models.SchemaDefinition, error) {
	var schema *models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		schema, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	return schema, err
}

// FindActiveByEntityType returns the active version, or an ErrNotFound error
// when the entity type has never been published.
func (s *service) FindActiveByEntityType(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	if s.cache != nil {
		cached, found, err := s.cache.GetActive(ctx, entityType)
		if err != nil {
			s.logger.Warn("Failed to get active schema from cache", zap.Error(err), zap.String("entity_type", string(entityType)))
		} else if found {
			return cached, nil
		}
	}

	var schema *models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		schema, err = s.repo.FindActiveByEntityType(ctx, tx, entityType)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err = s.cache.SetActive(ctx, schema); err != nil {
			s.logger.Warn("Failed to cache active schema", zap.Error(err), zap.String("entity_type", string(entityType)))
		}
	}

	return schema, nil
}

func (s *service) FindByEntityTypeAndVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, error) {
	if s.cache != nil {
		cached, found, err := s.cache.GetVersion(ctx, entityType, version)
		if err != nil {
			s.logger.Warn("Failed to get schema version from cache", zap.Error(err), zap.Int("version", version))
		} else if found {
			return cached, nil
		}
	}

	var schema *models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		schema, err = s.repo.FindByEntityTypeAndVersion(ctx, tx, entityType, version)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err = s.cache.SetVersion(ctx, schema); err != nil {
			s.logger.Warn("Failed to cache schema version", zap.Error(err), zap.Int("version", version))
		}
	}

	return schema, nil
}

func (s *service) ListByEntityType(ctx context.Context, entityType enum.EntityType) ([]*models.SchemaDefinition, error) {
	var schemas []*models.SchemaDefinition
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		schemas, err = s.repo.ListByEntityType(ctx, tx, entityType)
		return err
	})
	return schemas, err
}
