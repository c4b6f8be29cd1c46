package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// RetryPolicy bounds retries of transient storage failures.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when a repository is built with a zero policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.Attempts < 1 {
		return DefaultRetryPolicy
	}
	return p
}

// do runs fn until it succeeds, fails permanently, or attempts run out.
// Backoff grows linearly with the attempt number.
func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}

		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transient storage error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}
	return err
}

// isTransient reports lock contention, deadlock and serialization failures.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked
	}

	return false
}
