package lead

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/malleable"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

type CreateCommand struct {
	Name          string               `json:"name" validate:"required"`
	Email         string               `json:"email" validate:"omitempty,email"`
	Company       string               `json:"company"`
	Source        string               `json:"source"`
	MalleableData models.MalleableData `json:"malleable_data"`
}

// UpdateCommand replaces the lead's fields. A nil MalleableData keeps the
// stored extra fields untouched.
type UpdateCommand struct {
	ID            uint64                `json:"-"`
	Name          string                `json:"name" validate:"required"`
	Email         string                `json:"email" validate:"omitempty,email"`
	Company       string                `json:"company"`
	Source        string                `json:"source"`
	MalleableData *models.MalleableData `json:"malleable_data"`
}

type Service interface {
	Create(ctx context.Context, cmd CreateCommand) (*models.Lead, error)
	Update(ctx context.Context, cmd UpdateCommand) (*models.Lead, error)
	GetByID(ctx context.Context, id uint64) (*models.Lead, error)
	List(ctx context.Context, limit, offset uint64) ([]*models.Lead, error)
}

type service struct {
	repo               Repository
	binder             malleable.Binder
	transactionManager driver.Transactor
	logger             *zap.Logger
}

func NewService(repo Repository, binder malleable.Binder, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		binder:             binder,
		transactionManager: tm,
		logger:             logger,
	}
}

func (s *service) Create(ctx context.Context, cmd CreateCommand) (*models.Lead, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	lead := &models.Lead{
		Name:          cmd.Name,
		Email:         cmd.Email,
		Company:       cmd.Company,
		Source:        cmd.Source,
		MalleableData: cmd.MalleableData.Clone(),
	}

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		version, err := s.binder.BindOnCreate(ctx, tx, enum.EntityTypeLead, lead.MalleableData)
		if err != nil {
			return err
		}
		lead.SchemaVersion = version
		return s.repo.Create(ctx, tx, lead)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead created", zap.Uint64("lead_id", lead.ID))
	return lead, nil
}

func (s *service) Update(ctx context.Context, cmd UpdateCommand) (*models.Lead, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	var lead *models.Lead
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		lead, err = s.repo.GetByID(ctx, tx, cmd.ID)
		if err != nil {
			return err
		}

		lead.Name = cmd.Name
		lead.Email = cmd.Email
		lead.Company = cmd.Company
		lead.Source = cmd.Source

		if cmd.MalleableData != nil {
			version, err := s.binder.BindOnUpdate(ctx, tx, enum.EntityTypeLead, lead.SchemaVersion, *cmd.MalleableData)
			if err != nil {
				return err
			}
			lead.MalleableData = cmd.MalleableData.Clone()
			lead.SchemaVersion = version
		}

		return s.repo.Update(ctx, tx, lead)
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *service) GetByID(ctx context.Context, id uint64) (*models.Lead, error) {
	var lead *models.Lead
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		lead, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	return lead, err
}

func (s *service) List(ctx context.Context, limit, offset uint64) ([]*models.Lead, error) {
	var leads []*models.Lead
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		leads, err = s.repo.List(ctx, tx, limit, offset)
		return err
	})
	return leads, err
}
