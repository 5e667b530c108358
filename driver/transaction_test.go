package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/quoting/apperr"
)

type recordingPool struct {
	PostgresPool
	tx   *recordingTx
	opts pgx.TxOptions
}

func (p *recordingPool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.opts = opts
	return p.tx, nil
}

type recordingTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (tx *recordingTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *recordingTx) Rollback(context.Context) error {
	if tx.committed {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

func TestTransactionManager_ExecuteTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits at read committed", func(t *testing.T) {
		pool := &recordingPool{tx: &recordingTx{}}
		tm := NewTransactionManager(pool)

		require.NoError(t, tm.ExecuteTransaction(ctx, func(pgx.Tx) error { return nil }))
		assert.Equal(t, pgx.ReadCommitted, pool.opts.IsoLevel)
		assert.True(t, pool.tx.committed)
		assert.False(t, pool.tx.rolledBack)
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		pool := &recordingPool{tx: &recordingTx{}}
		tm := NewTransactionManager(pool)
		boom := errors.New("boom")

		err := tm.ExecuteTransaction(ctx, func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, pool.tx.committed)
		assert.True(t, pool.tx.rolledBack)
	})

	t.Run("rolls back and repanics", func(t *testing.T) {
		pool := &recordingPool{tx: &recordingTx{}}
		tm := NewTransactionManager(pool)

		assert.Panics(t, func() {
			_ = tm.ExecuteTransaction(ctx, func(pgx.Tx) error { panic("halfway") })
		})
		assert.True(t, pool.tx.rolledBack)
	})

	for _, code := range []string{"40001", "40P01", "23505"} {
		t.Run("commit failure "+code+" is a conflict", func(t *testing.T) {
			pool := &recordingPool{tx: &recordingTx{commitErr: &pgconn.PgError{Code: code}}}
			tm := NewTransactionManager(pool)

			err := tm.ExecuteTransaction(ctx, func(pgx.Tx) error { return nil })
			assert.ErrorIs(t, err, apperr.ErrConflict)
			assert.Contains(t, err.Error(), "failed to commit transaction")
		})
	}

	t.Run("other commit failures are wrapped", func(t *testing.T) {
		reset := errors.New("connection reset")
		pool := &recordingPool{tx: &recordingTx{commitErr: reset}}
		tm := NewTransactionManager(pool)

		err := tm.ExecuteTransaction(ctx, func(pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, reset)
		assert.NotErrorIs(t, err, apperr.ErrConflict)
	})
}
