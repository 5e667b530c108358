package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
)

type Service interface {
	Create(ctx context.Context, item *models.CatalogItem) error
	GetByID(ctx context.Context, id uint64) (*models.CatalogItem, error)
	Update(ctx context.Context, item *models.CatalogItem) error
	List(ctx context.Context, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error)
}

type service struct {
	repo               Repository
	transactionManager driver.Transactor
	logger             *zap.Logger
}

func NewService(repo Repository, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		transactionManager: tm,
		logger:             logger,
	}
}

func validate(item *models.CatalogItem) error {
	var violations []string
	if item.Name == "" {
		violations = append(violations, "name is required")
	}
	if item.UnitSellPrice.IsNegative() {
		violations = append(violations, "unit_sell_price must not be negative")
	}
	if item.UnitInternalCost.IsNegative() {
		violations = append(violations, "unit_internal_cost must not be negative")
	}
	for i, e := range item.WBSTemplate {
		if e.Description == "" {
			violations = append(violations, fmt.Sprintf("wbs_template[%d].description is required", i))
		}
		if e.Hours.IsNegative() {
			violations = append(violations, fmt.Sprintf("wbs_template[%d].hours must not be negative", i))
		}
	}
	return apperr.Invalid(violations...)
}

func (s *service) Create(ctx context.Context, item *models.CatalogItem) error {
	if item.WBSTemplate == nil {
		item.WBSTemplate = []models.WBSEntry{}
	}
	if err := validate(item); err != nil {
		return err
	}
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.Create(ctx, tx, item)
	})
}

func (s *service) GetByID(ctx context.Context, id uint64) (*models.CatalogItem, error) {
	var item *models.CatalogItem
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		item, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	return item, err
}

// Update replaces the item wholesale. Quotes that already snapshotted the
// item's WBS template are unaffected.
func (s *service) Update(ctx context.Context, item *models.CatalogItem) error {
	if item.WBSTemplate == nil {
		item.WBSTemplate = []models.WBSEntry{}
	}
	if err := validate(item); err != nil {
		return err
	}
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		existing, err := s.repo.GetByID(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		item.CreatedAt = existing.CreatedAt
		return s.repo.Update(ctx, tx, item)
	})
}

func (s *service) List(ctx context.Context, limit, offset uint64, activeOnly bool) ([]*models.CatalogItem, error) {
	var items []*models.CatalogItem
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		items, err = s.repo.List(ctx, tx, limit, offset, activeOnly)
		return err
	})
	return items, err
}
