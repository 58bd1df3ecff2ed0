package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/sqlc-dev/pqtype"
)

// maxTokenAttempts bounds the retries on a share token collision.
const maxTokenAttempts = 3

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// CreateShareParams identifies the result to snapshot and how long the public
// link stays valid.
type CreateShareParams struct {
	ResultID uuid.UUID
	Phone    string
	TTL      time.Duration
}

// shareReport is the snapshot stored on a share. It mirrors scoring.Report
// field-for-field without decoding the columns.
type shareReport struct {
	CategoryResults json.RawMessage `json:"categoryResults"`
	GlobalResult    json.RawMessage `json:"globalResult"`
	BAIResult       json.RawMessage `json:"baiResult"`
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

// CreateShare snapshots a result the caller owns into shared_results. The
// snapshot carries the report and the profile minus the phone number, so later
// edits to the owner's profile never leak into a public link.
//
// Tokens are random; on the rare primary-key collision a new token is drawn,
// up to maxTokenAttempts times.
func (s *Store) CreateShare(ctx context.Context, p CreateShareParams) (db.SharedResult, error) {
	result, err := s.GetResult(ctx, p.Phone, p.ResultID)
	if err != nil {
		return db.SharedResult{}, err
	}

	report, err := json.Marshal(shareReport{
		CategoryResults: result.CategoryResults,
		GlobalResult:    result.GlobalResult,
		BAIResult:       result.BaiResult,
	})
	if err != nil {
		return db.SharedResult{}, fmt.Errorf("CreateShare: marshal report: %w", err)
	}

	profile, err := redactedProfile(result.Profile)
	if err != nil {
		return db.SharedResult{}, fmt.Errorf("CreateShare: %w", err)
	}

	expiresAt := s.now().Add(p.TTL)
	for attempt := 1; ; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return db.SharedResult{}, err
		}

		share, err := s.q.CreateSharedResult(ctx, db.CreateSharedResultParams{
			Token:     token,
			ResultID:  result.ID,
			Report:    report,
			Profile:   profile,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			return share, nil
		}
		if !isUniqueViolation(err) || attempt == maxTokenAttempts {
			return db.SharedResult{}, fmt.Errorf("CreateShare: insert: %w", err)
		}
	}
}

// GetShare returns the snapshot behind token. It returns ErrNotFound for an
// unknown token and ErrShareExpired once the expiry has passed; an expired
// row is kept until PurgeExpiredShares removes it.
func (s *Store) GetShare(ctx context.Context, token string) (db.SharedResult, error) {
	share, err := s.q.GetSharedResult(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return db.SharedResult{}, ErrNotFound
	}
	if err != nil {
		return db.SharedResult{}, fmt.Errorf("GetShare: %w", err)
	}
	if !s.now().Before(share.ExpiresAt) {
		return share, ErrShareExpired
	}
	return share, nil
}

// PurgeExpiredShares deletes snapshots whose expiry is older than grace.
func (s *Store) PurgeExpiredShares(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := s.q.DeleteExpiredShares(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("PurgeExpiredShares: %w", err)
	}
	return n, nil
}

func redactedProfile(raw pqtype.NullRawMessage) (pqtype.NullRawMessage, error) {
	p, err := DecodeProfile(raw)
	if err != nil || p == nil {
		return pqtype.NullRawMessage{}, err
	}
	p.Phone = ""
	b, err := json.Marshal(p)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal profile: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
