package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const maxTxAttempts = 3

var txBackoff = 50 * time.Millisecond

// InTx runs fn in one transaction. Lock conflicts (serialization failure,
// deadlock, lock-not-available) are retried with backoff up to maxTxAttempts
// before surfacing ErrConflict; every other error aborts immediately and is
// returned verbatim.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	return retryOnLockConflict(ctx, func() error {
		return s.runTx(ctx, fn)
	})
}

func retryOnLockConflict(ctx context.Context, run func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(txBackoff << (attempt - 1)):
			}
		}
		err := run()
		if err == nil {
			return nil
		}
		if !isLockConflict(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
