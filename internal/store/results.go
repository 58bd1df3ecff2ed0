package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
	"github.com/sqlc-dev/pqtype"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// Profile is the respondent information collected alongside a submission.
// Phone is omitted from JSON when empty so share snapshots can drop it.
type Profile struct {
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	ChildAge        string `json:"childAge"`
	ChildGender     string `json:"childGender"`
	ParentAgeGroup  string `json:"parentAgeGroup"`
	CaregiverType   string `json:"caregiverType"`
	Region          string `json:"region"`
	PrivacyAgreed   bool   `json:"privacyAgreed"`
	MarketingAgreed bool   `json:"marketingAgreed"`
}

// ProfileFromUser converts a users row into a Profile.
func ProfileFromUser(u db.User) Profile {
	return Profile{
		Name:            u.Name,
		Phone:           u.Phone,
		ChildAge:        u.ChildAge,
		ChildGender:     u.ChildGender,
		ParentAgeGroup:  u.ParentAgeGroup,
		CaregiverType:   u.CaregiverType,
		Region:          u.Region,
		PrivacyAgreed:   u.PrivacyAgreed,
		MarketingAgreed: u.MarketingAgreed,
	}
}

func (p Profile) upsertParams(phone string) db.UpsertUserParams {
	return db.UpsertUserParams{
		Phone:           phone,
		Name:            p.Name,
		ChildAge:        p.ChildAge,
		ChildGender:     p.ChildGender,
		ParentAgeGroup:  p.ParentAgeGroup,
		CaregiverType:   p.CaregiverType,
		Region:          p.Region,
		PrivacyAgreed:   p.PrivacyAgreed,
		MarketingAgreed: p.MarketingAgreed,
	}
}

// SaveResultParams is everything the result handler hands to the store once
// the answers have been scored.
type SaveResultParams struct {
	// Phone is the verified owner. It always wins over Profile.Phone.
	Phone   string
	Answers scoring.AnswerSet
	Report  scoring.Report

	// Profile is optional. When set it replaces the stored profile; when nil
	// the stored profile (if any) is snapshotted onto the result.
	Profile *Profile
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

// UpsertProfile registers or updates the profile for phone.
func (s *Store) UpsertProfile(ctx context.Context, phone string, p Profile) (db.User, error) {
	u, err := s.q.UpsertUser(ctx, p.upsertParams(phone))
	if err != nil {
		return db.User{}, fmt.Errorf("UpsertProfile: %w", err)
	}
	return u, nil
}

// SaveResult atomically:
//
//  1. Upserts the owner row (or creates a bare one on first submission so the
//     foreign key holds).
//  2. Inserts the result with its report and a snapshot of the profile.
//
// If the insert fails the owner upsert rolls back with it.
func (s *Store) SaveResult(ctx context.Context, p SaveResultParams) (db.Result, error) {
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return db.Result{}, fmt.Errorf("SaveResult: marshal answers: %w", err)
	}
	cats, global, bai, err := marshalReport(p.Report)
	if err != nil {
		return db.Result{}, fmt.Errorf("SaveResult: %w", err)
	}

	var result db.Result
	err = s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		var (
			owner db.User
			err   error
		)
		switch {
		case p.Profile != nil:
			owner, err = q.UpsertUser(ctx, p.Profile.upsertParams(p.Phone))
			if err != nil {
				return fmt.Errorf("SaveResult: upsert user: %w", err)
			}
		default:
			owner, err = q.GetUserByPhone(ctx, p.Phone)
			if errors.Is(err, sql.ErrNoRows) {
				owner, err = q.UpsertUser(ctx, db.UpsertUserParams{Phone: p.Phone})
			}
			if err != nil {
				return fmt.Errorf("SaveResult: load user: %w", err)
			}
		}

		profileJSON, err := json.Marshal(ProfileFromUser(owner))
		if err != nil {
			return fmt.Errorf("SaveResult: marshal profile: %w", err)
		}

		inserted, err := q.InsertResult(ctx, db.InsertResultParams{
			Phone:           p.Phone,
			Answers:         answersJSON,
			Profile:         pqtype.NullRawMessage{RawMessage: profileJSON, Valid: true},
			CategoryResults: cats,
			GlobalResult:    global,
			BaiResult:       bai,
		})
		if err != nil {
			return fmt.Errorf("SaveResult: insert result: %w", err)
		}

		result = inserted
		return nil
	})
	if err != nil {
		return db.Result{}, err
	}
	return result, nil
}

// GetResult returns the result with id if phone owns it.
func (s *Store) GetResult(ctx context.Context, phone string, id uuid.UUID) (db.Result, error) {
	r, err := s.q.GetResultForOwner(ctx, db.GetResultForOwnerParams{ID: id, Phone: phone})
	if errors.Is(err, sql.ErrNoRows) {
		return db.Result{}, ErrNotFound
	}
	if err != nil {
		return db.Result{}, fmt.Errorf("GetResult: %w", err)
	}
	return r, nil
}

// MarkResultExported records a successful export.
func (s *Store) MarkResultExported(ctx context.Context, id uuid.UUID) (db.Result, error) {
	r, err := s.q.MarkResultExported(ctx, id)
	if err != nil {
		return db.Result{}, fmt.Errorf("MarkResultExported: %w", err)
	}
	return r, nil
}

// MarkExportFailed records a failed export attempt with its reason. Once
// export_attempts reaches the worker's limit the poller stops picking the row
// up again.
func (s *Store) MarkExportFailed(ctx context.Context, id uuid.UUID, reason string) (db.Result, error) {
	r, err := s.q.SetExportError(ctx, db.SetExportErrorParams{
		ID:          id,
		ExportError: sql.NullString{String: reason, Valid: true},
	})
	if err != nil {
		return db.Result{}, fmt.Errorf("MarkExportFailed: %w", err)
	}
	return r, nil
}

// ─── REPORT COLUMNS ──────────────────────────────────────────────────────────

func marshalReport(r scoring.Report) (cats, global, bai json.RawMessage, err error) {
	if cats, err = json.Marshal(r.CategoryResults); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal category results: %w", err)
	}
	if global, err = json.Marshal(r.GlobalResult); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal global result: %w", err)
	}
	if bai, err = json.Marshal(r.BAIResult); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal bai result: %w", err)
	}
	return cats, global, bai, nil
}

// DecodeReport rebuilds the scored report from a results row.
func DecodeReport(r db.Result) (scoring.Report, error) {
	var rep scoring.Report
	if err := json.Unmarshal(r.CategoryResults, &rep.CategoryResults); err != nil {
		return scoring.Report{}, fmt.Errorf("decode category results: %w", err)
	}
	if err := json.Unmarshal(r.GlobalResult, &rep.GlobalResult); err != nil {
		return scoring.Report{}, fmt.Errorf("decode global result: %w", err)
	}
	if err := json.Unmarshal(r.BaiResult, &rep.BAIResult); err != nil {
		return scoring.Report{}, fmt.Errorf("decode bai result: %w", err)
	}
	return rep, nil
}

// DecodeProfile returns the profile snapshot stored on a result, if any.
func DecodeProfile(raw pqtype.NullRawMessage) (*Profile, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(raw.RawMessage, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// DecodeAnswers returns the raw answer set stored on a result. A row without
// stored answers yields a nil set.
func DecodeAnswers(r db.Result) (scoring.AnswerSet, error) {
	if len(r.Answers) == 0 {
		return nil, nil
	}
	var a scoring.AnswerSet
	if err := json.Unmarshal(r.Answers, &a); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return a, nil
}
