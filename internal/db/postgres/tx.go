package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
)

// PostgreSQL error codes the repositories care about.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeUniqueViolation      = "23505"
	CodeCheckViolation       = "23514"
)

// SQLState returns the PostgreSQL error code of err, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Retryable reports whether the transaction may succeed when run again.
func Retryable(err error) bool {
	switch SQLState(err) {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return true
	}
	return false
}

// TxRunner runs closures in a transaction and retries on
// serialization failures and deadlocks.
type TxRunner struct {
	pool    *pgxpool.Pool
	retries int
	backoff time.Duration
}

// NewTxRunner creates a runner with at most retries attempts.
func NewTxRunner(pool *pgxpool.Pool, retries int) *TxRunner {
	if retries < 1 {
		retries = 1
	}
	return &TxRunner{pool: pool, retries: retries, backoff: 20 * time.Millisecond}
}

// WithTx runs fn in a transaction. fn must be safe to call more than once.
// When every attempt hits a retryable error it returns
// common.ErrConcurrentModification.
func (r *TxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		lastErr = r.once(ctx, fn)
		if lastErr == nil || !Retryable(lastErr) {
			return lastErr
		}

		log.WithFields(log.Fields{
			"attempt": attempt,
			"code":    SQLState(lastErr),
		}).Debug("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", common.ErrConcurrentModification, lastErr)
}

func (r *TxRunner) once(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
