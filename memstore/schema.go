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

type SchemaRepository struct {
	store *Store
}

func cloneSchema(s *models.SchemaDefinition) *models.SchemaDefinition {
	out := *s
	out.Fields = make([]models.FieldDefinition, len(s.Fields))
	for i, f := range s.Fields {
		f.Options = slices.Clone(f.Options)
		out.Fields[i] = f
	}
	return &out
}

// Create enforces one draft and one active version per entity type, the
// same rule the partial unique indexes enforce in Postgres.
func (r *SchemaRepository) Create(_ context.Context, _ pgx.Tx, schema *models.SchemaDefinition) error {
	if err := r.checkUnique(schema); err != nil {
		return err
	}
	now := time.Now().UTC()
	schema.ID = r.store.state.nextID()
	schema.CreatedAt = now
	schema.UpdatedAt = now
	r.store.state.schemas[schema.ID] = cloneSchema(schema)
	return nil
}

// Update saves schema only while the stored copy still has status from.
func (r *SchemaRepository) Update(_ context.Context, _ pgx.Tx, schema *models.SchemaDefinition, from enum.SchemaStatus) error {
	stored, ok := r.store.state.schemas[schema.ID]
	if !ok {
		return apperr.NotFound("schema %d does not exist", schema.ID)
	}
	if stored.Status != from {
		return apperr.InvalidState("schema %d is %s, not %s", schema.ID, stored.Status, from)
	}
	if err := r.checkUnique(schema); err != nil {
		return err
	}
	schema.UpdatedAt = time.Now().UTC()
	r.store.state.schemas[schema.ID] = cloneSchema(schema)
	return nil
}

func (r *SchemaRepository) checkUnique(schema *models.SchemaDefinition) error {
	for _, s := range r.store.state.schemas {
		if s.ID == schema.ID || s.EntityType != schema.EntityType {
			continue
		}
		if s.Version == schema.Version {
			return apperr.Conflict("%s schema v%d already exists", schema.EntityType, schema.Version)
		}
		if schema.Status != enum.SchemaStatusHistorical && s.Status == schema.Status {
			return apperr.Conflict("%s already has a %s schema", schema.EntityType, schema.Status)
		}
	}
	return nil
}

func (r *SchemaRepository) DeleteDraft(_ context.Context, _ pgx.Tx, id uint64) error {
	stored, ok := r.store.state.schemas[id]
	if !ok {
		return apperr.NotFound("schema %d does not exist", id)
	}
	if stored.Status != enum.SchemaStatusDraft {
		return apperr.InvalidState("schema %d is %s, not %s", id, stored.Status, enum.SchemaStatusDraft)
	}
	delete(r.store.state.schemas, id)
	return nil
}

func (r *SchemaRepository) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.SchemaDefinition, error) {
	s, ok := r.store.state.schemas[id]
	if !ok {
		return nil, apperr.NotFound("schema %d does not exist", id)
	}
	return cloneSchema(s), nil
}

func (r *SchemaRepository) FindActiveByEntityType(_ context.Context, _ pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	if s := r.find(entityType, func(s *models.SchemaDefinition) bool { return s.Status == enum.SchemaStatusActive }); s != nil {
		return s, nil
	}
	return nil, apperr.NotFound("no active schema for %s", entityType)
}

func (r *SchemaRepository) FindDraftByEntityType(_ context.Context, _ pgx.Tx, entityType enum.EntityType) (*models.SchemaDefinition, error) {
	if s := r.find(entityType, func(s *models.SchemaDefinition) bool { return s.Status == enum.SchemaStatusDraft }); s != nil {
		return s, nil
	}
	return nil, apperr.NotFound("no draft schema for %s", entityType)
}

func (r *SchemaRepository) FindByEntityTypeAndVersion(_ context.Context, _ pgx.Tx, entityType enum.EntityType, version int) (*models.SchemaDefinition, error) {
	if s := r.find(entityType, func(s *models.SchemaDefinition) bool { return s.Version == version }); s != nil {
		return s, nil
	}
	return nil, apperr.NotFound("schema %s v%d does not exist", entityType, version)
}

func (r *SchemaRepository) find(entityType enum.EntityType, match func(*models.SchemaDefinition) bool) *models.SchemaDefinition {
	for _, s := range r.store.state.schemas {
		if s.EntityType == entityType && match(s) {
			return cloneSchema(s)
		}
	}
	return nil
}

func (r *SchemaRepository) ListByEntityType(_ context.Context, _ pgx.Tx, entityType enum.EntityType) ([]*models.SchemaDefinition, error) {
	var out []*models.SchemaDefinition
	for _, s := range r.store.state.schemas {
		if s.EntityType == entityType {
			out = append(out, cloneSchema(s))
		}
	}
	slices.SortFunc(out, func(a, b *models.SchemaDefinition) int { return a.Version - b.Version })
	return out, nil
}

func (r *SchemaRepository) LatestVersion(_ context.Context, _ pgx.Tx, entityType enum.EntityType) (int, error) {
	latest := 0
	for _, s := range r.store.state.schemas {
		if s.EntityType == entityType && s.Version > latest {
			latest = s.Version
		}
	}
	return latest, nil
}

// LockEntityType is a no-op; the store mutex already serialises writers.
func (r *SchemaRepository) LockEntityType(context.Context, pgx.Tx, enum.EntityType) error {
	return nil
}
