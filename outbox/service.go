package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
)

type Service interface {
	FetchPending(ctx context.Context, limit int) ([]*models.Event, error)
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ListByAggregate(ctx context.Context, aggregateType string, aggregateID uint64) ([]*models.Event, error)
}

type service struct {
	repo               Repository
	transactionManager driver.Transactor
}

func NewService(repo Repository, tm driver.Transactor) Service {
	return &service{
		repo:               repo,
		transactionManager: tm,
	}
}

func (s *service) FetchPending(ctx context.Context, limit int) ([]*models.Event, error) {
	var events []*models.Event
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		events, err = s.repo.FetchPending(ctx, tx, limit)
		return err
	})
	return events, err
}

func (s *service) MarkDelivered(ctx context.Context, id string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.MarkDelivered(ctx, tx, id, time.Now().UTC())
	})
}

func (s *service) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.MarkFailed(ctx, tx, id, reason)
	})
}

func (s *service) ListByAggregate(ctx context.Context, aggregateType string, aggregateID uint64) ([]*models.Event, error) {
	var events []*models.Event
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		events, err = s.repo.ListByAggregate(ctx, tx, aggregateType, aggregateID)
		return err
	})
	return events, err
}
