package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"goflare.io/quoting/apperr"
)

// Transactor runs a unit of work atomically. Every service depends on this
// port rather than on a concrete pool.
//
// Transactions run at read committed. Writers that contend on one row or one
// invariant take a lock first (SELECT ... FOR UPDATE or an advisory lock);
// every later statement then sees what the previous holder committed.
type Transactor interface {
	ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ Transactor = (*TransactionManager)(nil)

type TransactionManager struct {
	conn PostgresPool
}

func NewTransactionManager(conn PostgresPool) *TransactionManager {
	return &TransactionManager{conn: conn}
}

// ExecuteTransaction runs fn in a read-committed transaction. The transaction
// is rolled back when fn returns an error or panics.
func (tm *TransactionManager) ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := tm.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	// Deferred constraint and serialization failures surface here.
	if err = tx.Commit(ctx); err != nil {
		return apperr.FromPg(err, "failed to commit transaction")
	}

	return nil
}
