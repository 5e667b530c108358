package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/quoting/adjustment"
	"goflare.io/quoting/apperr"
	"goflare.io/quoting/catalog"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/malleable"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
	"goflare.io/quoting/outbox"
)

const aggregateType = "quote"

type Service interface {
	Create(ctx context.Context, cmd CreateCommand) (*models.QuoteView, error)
	GetByID(ctx context.Context, id uint64) (*models.QuoteView, error)
	ListByCustomer(ctx context.Context, customerID uint64, includeArchived bool) ([]*models.Quote, error)
	AddLine(ctx context.Context, cmd AddLineCommand) (*models.QuoteView, error)
	RemoveLine(ctx context.Context, quoteID uint64, lineID string) (*models.QuoteView, error)
	AddComponent(ctx context.Context, cmd AddComponentCommand) (*models.QuoteView, error)
	RemoveComponent(ctx context.Context, quoteID uint64, componentID string) (*models.QuoteView, error)
	SetPaymentSchedule(ctx context.Context, cmd SetPaymentScheduleCommand) (*models.QuoteView, error)
	Send(ctx context.Context, id uint64) (*models.QuoteView, error)
	Accept(ctx context.Context, id uint64) (*models.QuoteView, error)
	Reject(ctx context.Context, id uint64) (*models.QuoteView, error)
	// Archive soft-deletes the quote from any state. Archiving twice is a no-op.
	Archive(ctx context.Context, id uint64) error
	UpdateMalleableData(ctx context.Context, id uint64, data models.MalleableData) (*models.QuoteView, error)
}

type service struct {
	repo               Repository
	adjustments        adjustment.Repository
	outbox             outbox.Repository
	binder             malleable.Binder
	components         *componentBuilder
	transactionManager driver.Transactor
	logger             *zap.Logger
	now                func() time.Time
}

func NewService(
	repo Repository,
	adjustments adjustment.Repository,
	catalogRepo catalog.Repository,
	ob outbox.Repository,
	binder malleable.Binder,
	tm driver.Transactor,
	logger *zap.Logger,
) Service {
	return &service{
		repo:               repo,
		adjustments:        adjustments,
		outbox:             ob,
		binder:             binder,
		components:         &componentBuilder{catalog: catalogRepo},
		transactionManager: tm,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) view(ctx context.Context, tx pgx.Tx, quote *models.Quote) (*models.QuoteView, error) {
	adjustments, err := s.adjustments.FindByQuoteID(ctx, tx, quote.ID)
	if err != nil {
		return nil, err
	}
	if adjustments == nil {
		adjustments = []*models.CostAdjustment{}
	}
	return &models.QuoteView{
		Quote:       quote,
		Adjustments: adjustments,
		Totals:      quote.Totals(adjustments),
	}, nil
}

func (s *service) Create(ctx context.Context, cmd CreateCommand) (*models.QuoteView, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}
	currency, err := ParseCurrency(cmd.Currency)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	var view *models.QuoteView
	err = s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		quote := models.NewQuote(cmd.CustomerID, currency)

		version, err := s.binder.BindOnCreate(ctx, tx, enum.EntityTypeQuote, cmd.MalleableData)
		if err != nil {
			return err
		}
		quote.MalleableData = cmd.MalleableData.Clone()
		quote.SchemaVersion = version

		if err = s.repo.Create(ctx, tx, quote); err != nil {
			return err
		}

		view, err = s.view(ctx, tx, quote)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote created",
		zap.Uint64("quote_id", view.ID),
		zap.Uint64("customer_id", view.CustomerID),
		zap.String("currency", string(view.Currency)))

	return view, nil
}

func (s *service) GetByID(ctx context.Context, id uint64) (*models.QuoteView, error) {
	var view *models.QuoteView
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		quote, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		view, err = s.view(ctx, tx, quote)
		return err
	})
	return view, err
}

func (s *service) ListByCustomer(ctx context.Context, customerID uint64, includeArchived bool) ([]*models.Quote, error) {
	var quotes []*models.Quote
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		quotes, err = s.repo.ListByCustomer(ctx, tx, customerID, includeArchived)
		return err
	})
	return quotes, err
}

// mutate locks the quote row, applies fn and saves it with the revision
// check. fn may return an event to enqueue in the same transaction.
func (s *service) mutate(ctx context.Context, id uint64, fn func(tx pgx.Tx, quote *models.Quote) (enum.EventType, error)) (*models.QuoteView, error) {
	var view *models.QuoteView
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		quote, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		eventType, err := fn(tx, quote)
		if err != nil {
			return err
		}

		if err = s.repo.Update(ctx, tx, quote); err != nil {
			return err
		}

		if view, err = s.view(ctx, tx, quote); err != nil {
			return err
		}

		if eventType == "" {
			return nil
		}
		event, err := models.NewEvent(eventType, aggregateType, quote.ID, view)
		if err != nil {
			return fmt.Errorf("failed to build %s event: %w", eventType, err)
		}
		return s.outbox.Enqueue(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) AddLine(ctx context.Context, cmd AddLineCommand) (*models.QuoteView, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}
	if !cmd.Quantity.IsPositive() {
		return nil, apperr.Invalid("quantity must be greater than 0")
	}

	return s.mutate(ctx, cmd.QuoteID, func(_ pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		return "", quote.AddLine(models.QuoteLine{
			ID:          uuid.NewString(),
			Description: cmd.Description,
			Quantity:    cmd.Quantity,
			UnitPrice:   cmd.UnitPrice,
			GroupType:   cmd.GroupType,
		})
	})
}

func (s *service) RemoveLine(ctx context.Context, quoteID uint64, lineID string) (*models.QuoteView, error) {
	return s.mutate(ctx, quoteID, func(_ pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		return "", quote.RemoveLine(lineID)
	})
}

func (s *service) AddComponent(ctx context.Context, cmd AddComponentCommand) (*models.QuoteView, error) {
	if err := apperr.Check(cmd); err != nil {
		return nil, err
	}

	view, err := s.mutate(ctx, cmd.QuoteID, func(tx pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		// Reject terminal quotes before resolving catalog items.
		if quote.IsTerminal() {
			return "", apperr.InvalidState("quote %d is %s and can no longer be changed", quote.ID, quote.State)
		}
		component, err := s.components.build(ctx, tx, cmd)
		if err != nil {
			return "", err
		}
		return "", quote.AddComponent(uuid.NewString(), component)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("component added",
		zap.Uint64("quote_id", view.ID),
		zap.String("type", string(cmd.Type)),
		zap.Int("version", view.Version))

	return view, nil
}

func (s *service) RemoveComponent(ctx context.Context, quoteID uint64, componentID string) (*models.QuoteView, error) {
	return s.mutate(ctx, quoteID, func(_ pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		return "", quote.RemoveComponent(componentID)
	})
}

func (s *service) SetPaymentSchedule(ctx context.Context, cmd SetPaymentScheduleCommand) (*models.QuoteView, error) {
	var violations []string
	for i, m := range cmd.Milestones {
		if m.Title == "" {
			violations = append(violations, fmt.Sprintf("milestones[%d].title is required", i))
		}
		if m.Amount.IsNegative() {
			violations = append(violations, fmt.Sprintf("milestones[%d].amount must not be negative", i))
		}
	}
	if err := apperr.Invalid(violations...); err != nil {
		return nil, err
	}

	return s.mutate(ctx, cmd.QuoteID, func(_ pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		return "", quote.SetPaymentSchedule(cmd.Milestones)
	})
}

func (s *service) Send(ctx context.Context, id uint64) (*models.QuoteView, error) {
	return s.transition(ctx, id, enum.EventTypeQuoteSent, (*models.Quote).Send)
}

func (s *service) Accept(ctx context.Context, id uint64) (*models.QuoteView, error) {
	return s.transition(ctx, id, enum.EventTypeQuoteAccepted, (*models.Quote).Accept)
}

func (s *service) Reject(ctx context.Context, id uint64) (*models.QuoteView, error) {
	return s.transition(ctx, id, enum.EventTypeQuoteRejected, (*models.Quote).Reject)
}

func (s *service) transition(ctx context.Context, id uint64, eventType enum.EventType, step func(*models.Quote, time.Time) error) (*models.QuoteView, error) {
	view, err := s.mutate(ctx, id, func(_ pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		if err := step(quote, s.now()); err != nil {
			return "", err
		}
		return eventType, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote state changed",
		zap.Uint64("quote_id", view.ID),
		zap.String("state", string(view.State)))

	return view, nil
}

func (s *service) Archive(ctx context.Context, id uint64) error {
	var archived bool
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		archived, err = s.repo.Delete(ctx, tx, id, s.now())
		if err != nil || !archived {
			return err
		}

		event, err := models.NewEvent(enum.EventTypeQuoteArchived, aggregateType, id, map[string]uint64{"quote_id": id})
		if err != nil {
			return fmt.Errorf("failed to build archive event: %w", err)
		}
		return s.outbox.Enqueue(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	if archived {
		s.logger.Info("quote archived", zap.Uint64("quote_id", id))
	}
	return nil
}

// UpdateMalleableData replaces the extra fields. Data is validated against
// the schema version the quote already carries, not the active one.
func (s *service) UpdateMalleableData(ctx context.Context, id uint64, data models.MalleableData) (*models.QuoteView, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, quote *models.Quote) (enum.EventType, error) {
		if quote.State == enum.QuoteStateArchived {
			return "", apperr.InvalidState("quote %d is archived", quote.ID)
		}
		version, err := s.binder.BindOnUpdate(ctx, tx, enum.EntityTypeQuote, quote.SchemaVersion, data)
		if err != nil {
			return "", err
		}
		quote.MalleableData = data.Clone()
		quote.SchemaVersion = version
		return "", nil
	})
}
