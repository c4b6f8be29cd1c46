package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isTransient(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isTransient(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isTransient(fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: 1213})))
	assert.False(t, isTransient(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.False(t, isTransient(errors.New("boom")))
}

func TestRetryPolicyDo(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}

	calls := 0
	err := p.do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return busy
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = p.do(context.Background(), "test", func() error {
		calls++
		return busy
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("constraint")
	err = p.do(context.Background(), "test", func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyNormalize(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy, RetryPolicy{}.normalize())
	assert.Equal(t, 5, RetryPolicy{Attempts: 5}.normalize().Attempts)
}
