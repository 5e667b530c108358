package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
)

// QuoteReader is the part of the quote repository the ledger needs.
type QuoteReader interface {
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error)
	// GetForUpdate holds the quote row lock until tx ends, so a lifecycle
	// transition cannot commit between the terminal check and the ledger write.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error)
}

type AddCommand struct {
	QuoteID     uint64          `json:"-"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ApprovedBy  string          `json:"approved_by"`
}

type RemoveCommand struct {
	QuoteID      uint64 `json:"-"`
	AdjustmentID uint64 `json:"-"`
	RemovedBy    string `json:"removed_by"`
}

// Removal is the payload of a cost_adjustment.removed event.
type Removal struct {
	Adjustment *models.CostAdjustment `json:"adjustment"`
	RemovedBy  string                 `json:"removed_by,omitempty"`
	RemovedAt  time.Time              `json:"removed_at"`
}

type Service interface {
	Add(ctx context.Context, cmd AddCommand) (*models.CostAdjustment, error)
	Remove(ctx context.Context, cmd RemoveCommand) error
	ListByQuote(ctx context.Context, quoteID uint64) ([]*models.CostAdjustment, error)
}

type service struct {
	repo               Repository
	quotes             QuoteReader
	outbox             outbox.Repository
	transactionManager driver.Transactor
	logger             *zap.Logger
}

func NewService(repo Repository, quotes QuoteReader, ob outbox.Repository, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		quotes:             quotes,
		outbox:             ob,
		transactionManager: tm,
		logger:             logger,
	}
}

// mutableQuote locks the quote and refuses ledger changes once it is terminal.
func (s *service) mutableQuote(ctx context.Context, tx pgx.Tx, quoteID uint64) (*models.Quote, error) {
	quote, err := s.quotes.GetForUpdate(ctx, tx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.IsTerminal() {
		return nil, apperr.InvalidState("quote %d is %s; cost adjustments can no longer be changed", quote.ID, quote.State)
	}
	return quote, nil
}

func (s *service) Add(ctx context.Context, cmd AddCommand) (*models.CostAdjustment, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	adjustment := &models.CostAdjustment{
		QuoteID:     cmd.QuoteID,
		Description: cmd.Description,
		Amount:      cmd.Amount,
		Reason:      cmd.Reason,
		ApprovedBy:  cmd.ApprovedBy,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.mutableQuote(ctx, tx, cmd.QuoteID); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, adjustment); err != nil {
			return err
		}

		event, err := models.NewEvent(enum.EventTypeCostAdjustmentAdded, "quote", cmd.QuoteID, adjustment)
		if err != nil {
			return fmt.Errorf("failed to build adjustment event: %w", err)
		}
		return s.outbox.Enqueue(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cost adjustment added",
		zap.Uint64("quote_id", cmd.QuoteID),
		zap.Uint64("adjustment_id", adjustment.ID),
		zap.String("amount", adjustment.Amount.String()))

	return adjustment, nil
}

// Remove deletes an adjustment after checking it belongs to the quote. An
// adjustment of another quote is reported as not found.
func (s *service) Remove(ctx context.Context, cmd RemoveCommand) error {
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.mutableQuote(ctx, tx, cmd.QuoteID); err != nil {
			return err
		}

		adjustments, err := s.repo.FindByQuoteID(ctx, tx, cmd.QuoteID)
		if err != nil {
			return err
		}

		var target *models.CostAdjustment
		for _, a := range adjustments {
			if a.ID == cmd.AdjustmentID {
				target = a
				break
			}
		}
		if target == nil {
			return apperr.NotFound("cost adjustment %d does not exist on quote %d", cmd.AdjustmentID, cmd.QuoteID)
		}

		if err = s.repo.Delete(ctx, tx, target.ID); err != nil {
			return err
		}

		event, err := models.NewEvent(enum.EventTypeCostAdjustmentRemoved, "quote", cmd.QuoteID, Removal{
			Adjustment: target,
			RemovedBy:  cmd.RemovedBy,
			RemovedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to build adjustment event: %w", err)
		}
		return s.outbox.Enqueue(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	s.logger.Info("cost adjustment removed",
		zap.Uint64("quote_id", cmd.QuoteID),
		zap.Uint64("adjustment_id", cmd.AdjustmentID),
		zap.String("removed_by", cmd.RemovedBy))

	return nil
}

func (s *service) ListByQuote(ctx context.Context, quoteID uint64) ([]*models.CostAdjustment, error) {
	var adjustments []*models.CostAdjustment
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.quotes.GetByID(ctx, tx, quoteID); err != nil {
			return err
		}
		var err error
		adjustments, err = s.repo.FindByQuoteID(ctx, tx, quoteID)
		return err
	})
	return adjustments, err
}
