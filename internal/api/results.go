package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// resultResponse is the stored report plus its identity. The report fields
// keep the shape every existing consumer reads.
type resultResponse struct {
	ResultID        uuid.UUID                         `json:"resultId"`
	Answers         scoring.AnswerSet                 `json:"answers,omitempty"`
	CategoryResults map[string]scoring.CategoryResult `json:"categoryResults"`
	GlobalResult    scoring.GlobalResult              `json:"globalResult"`
	BAIResult       scoring.CategoryResult            `json:"baiResult"`
	UserInfo        *store.Profile                    `json:"userInfo,omitempty"`
	CreatedAt       time.Time                         `json:"createdAt"`
}

func newResultResponse(res db.Result) (resultResponse, error) {
	report, err := store.DecodeReport(res)
	if err != nil {
		return resultResponse{}, err
	}
	profile, err := store.DecodeProfile(res.Profile)
	if err != nil {
		return resultResponse{}, err
	}
	answers, err := store.DecodeAnswers(res)
	if err != nil {
		return resultResponse{}, err
	}
	return resultResponse{
		ResultID:        res.ID,
		Answers:         answers,
		CategoryResults: report.CategoryResults,
		GlobalResult:    report.GlobalResult,
		BAIResult:       report.BAIResult,
		UserInfo:        profile,
		CreatedAt:       res.CreatedAt,
	}, nil
}

// ─── POST /api/result ─────────────────────────────────────────────────────────

type createResultRequest struct {
	Answers  scoring.AnswerSet `json:"answers"`
	UserInfo *profileRequest   `json:"userInfo"`
}

// handleCreateResult scores a completed questionnaire, stores the result for
// the verified phone and hands it to the export worker.
//
// Answers outside a question's scale or for unknown questions are rejected
// with 400 before scoring. The optional userInfo replaces the stored profile.
func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	phone := phoneFrom(r.Context())

	var req createResultRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Answers) == 0 {
		respondErr(w, http.StatusBadRequest, "answers are required")
		return
	}
	if err := s.engine.CheckAnswers(req.Answers); err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	var profile *store.Profile
	if req.UserInfo != nil {
		if msg := req.UserInfo.validate(phone); msg != "" {
			respondErr(w, http.StatusBadRequest, msg)
			return
		}
		p := req.UserInfo.profile(phone)
		profile = &p
	}

	report := s.engine.Assemble(req.Answers)

	res, err := s.store.SaveResult(r.Context(), store.SaveResultParams{
		Phone:   phone,
		Answers: req.Answers,
		Report:  report,
		Profile: profile,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save result: %w", err))
		return
	}

	// Export is best-effort here; the worker's poller retries anything that
	// was not enqueued.
	if err := s.worker.Enqueue(r.Context(), res.ID); err != nil {
		s.logger.Warn("create result: enqueue export failed",
			"result_id", res.ID,
			"error", err,
			logField(r),
		)
	}

	resp, err := newResultResponse(res)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("encode result: %w", err))
		return
	}
	respond(w, http.StatusCreated, resp)
}

// ─── GET /api/result ──────────────────────────────────────────────────────────

// handleLatestResult returns the most recent result of the verified phone.
func (s *Server) handleLatestResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.q.GetLatestResultByPhone(r.Context(), phoneFrom(r.Context()))
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "no results yet")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get latest result: %w", err))
		return
	}

	resp, err := newResultResponse(res)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("encode result: %w", err))
		return
	}
	respond(w, http.StatusOK, resp)
}

// ─── GET /api/result/history ──────────────────────────────────────────────────

type historyResponse struct {
	Results []resultResponse `json:"results"`
}

// handleResultHistory lists the verified phone's results, newest first.
// ?limit defaults to 10 and is capped at 50.
func (s *Server) handleResultHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := s.q.ListResultsByPhone(r.Context(), db.ListResultsByPhoneParams{
		Phone: phoneFrom(r.Context()),
		Limit: int32(limit),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list results: %w", err))
		return
	}

	out := historyResponse{Results: make([]resultResponse, 0, len(rows))}
	for _, row := range rows {
		resp, err := newResultResponse(row)
		if err != nil {
			s.respondInternalErr(w, r, fmt.Errorf("encode result %s: %w", row.ID, err))
			return
		}
		out.Results = append(out.Results, resp)
	}
	respond(w, http.StatusOK, out)
}

// ─── GET /api/result/:resultID ────────────────────────────────────────────────

// handleGetResult returns one result. A result owned by another phone is
// reported as not found.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "resultID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid result id")
		return
	}

	res, err := s.store.GetResult(r.Context(), phoneFrom(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get result: %w", err))
		return
	}

	resp, err := newResultResponse(res)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("encode result: %w", err))
		return
	}
	respond(w, http.StatusOK, resp)
}
