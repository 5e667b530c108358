package customer

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
	MalleableData models.MalleableData `json:"malleable_data"`
}

type UpdateCommand struct {
	ID            uint64                `json:"-"`
	Name          string                `json:"name"`
	Email         string                `json:"email" validate:"omitempty,email"`
	MalleableData *models.MalleableData `json:"malleable_data"`
}

type Service interface {
	Create(ctx context.Context, cmd CreateCommand) (*models.Customer, error)
	GetByID(ctx context.Context, id uint64) (*models.Customer, error)
	Update(ctx context.Context, cmd UpdateCommand) (*models.Customer, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, limit, offset uint64) ([]*models.Customer, error)
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

func (s *service) Create(ctx context.Context, cmd CreateCommand) (*models.Customer, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	customer := models.NewCustomer()
	customer.Name = cmd.Name
	customer.Email = cmd.Email
	customer.MalleableData = cmd.MalleableData.Clone()

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		version, err := s.binder.BindOnCreate(ctx, tx, enum.EntityTypeCustomer, customer.MalleableData)
		if err != nil {
			return err
		}
		customer.SchemaVersion = version
		return s.repo.Create(ctx, tx, customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *service) GetByID(ctx context.Context, id uint64) (*models.Customer, error) {
	var customer *models.Customer
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		customer, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	return customer, err
}

// Update overwrites non-empty fields, like a PATCH.
func (s *service) Update(ctx context.Context, cmd UpdateCommand) (*models.Customer, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	var customer *models.Customer
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		customer, err = s.repo.GetByID(ctx, tx, cmd.ID)
		if err != nil {
			return err
		}

		// 更新非空字段
		if cmd.Name != "" {
			customer.Name = cmd.Name
		}
		if cmd.Email != "" {
			customer.Email = cmd.Email
		}
		if cmd.MalleableData != nil {
			version, err := s.binder.BindOnUpdate(ctx, tx, enum.EntityTypeCustomer, customer.SchemaVersion, *cmd.MalleableData)
			if err != nil {
				return err
			}
			customer.MalleableData = cmd.MalleableData.Clone()
			customer.SchemaVersion = version
		}

		return s.repo.Update(ctx, tx, customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *service) Delete(ctx context.Context, id uint64) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *service) List(ctx context.Context, limit, offset uint64) ([]*models.Customer, error) {
	var customers []*models.Customer
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		customers, err = s.repo.List(ctx, tx, limit, offset)
		return err
	})
	return customers, err
}
