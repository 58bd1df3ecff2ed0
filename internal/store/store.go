// Package store wraps db.Querier with transaction support and groups the
// multi-step write operations that must execute atomically.
//
// Single-query reads (GetLatestResultByPhone, ListResultsByPhone, etc.) are
// called directly on db.Querier in handlers.
//
// Dependency rule: store imports db and scoring only. It never imports api,
// worker, otp or export.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
)

const (
	// maxTxAttempts bounds the re-runs of a transaction aborted by a
	// serialization failure.
	maxTxAttempts = 3

	// serializationFailure is the Postgres SQLSTATE for a serializable
	// transaction that lost a conflict.
	serializationFailure = "40001"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a result or share does not exist, or
	// exists but belongs to another phone number.
	ErrNotFound = errors.New("store: not found")

	// ErrShareExpired is returned by GetShare for a snapshot past its expiry.
	ErrShareExpired = errors.New("store: share expired")
)

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions. The two operation files
// (results.go, shares.go) attach methods to this type.
type Store struct {
	// pool is the raw connection pool, used only to begin transactions.
	pool *sql.DB

	// q is the Querier used for non-transactional calls.
	q db.Querier

	now      func() time.Time
	newToken func() (string, error)
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via db.PingContext) before calling New.
func New(pool *sql.DB, q db.Querier) *Store {
	return &Store{pool: pool, q: q, now: time.Now, newToken: randomToken}
}

// txQuerier is a function that receives a transactional Querier and returns an
// error. Returning a non-nil error causes withTx to roll back automatically.
type txQuerier func(ctx context.Context, q db.Querier) error

// withTx runs fn in a serializable transaction. Both multi-step writes read
// before they write, so two concurrent first submissions for one phone can
// abort with a serialization failure; the whole transaction, fn included, is
// then re-run up to maxTxAttempts times. fn must not keep state from an
// aborted attempt.
func (s *Store) withTx(ctx context.Context, fn txQuerier) error {
	return retrySerializable(ctx, maxTxAttempts, func() error {
		return s.runTx(ctx, fn)
	})
}

// retrySerializable calls op until it returns nil, an error other than a
// serialization failure, or attempts run out. It backs off 10ms, 20ms, ...
// between attempts and stops early when ctx is done.
func retrySerializable(ctx context.Context, attempts int, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil || !isSerializationFailure(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == serializationFailure
}

// runTx begins a transaction, passes a Querier scoped to that transaction to
// fn, and commits on success or rolls back on any error (including panics).
func (s *Store) runTx(ctx context.Context, fn txQuerier) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	// db.Queries.WithTx re-uses prepared statements scoped to the transaction.
	txQ := s.q.(*db.Queries).WithTx(tx)

	if err := fn(ctx, txQ); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			// Wrap both errors so the caller sees both failure reasons.
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
// randomToken returns 16 random bytes, base64url-encoded without padding.
func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("store: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
