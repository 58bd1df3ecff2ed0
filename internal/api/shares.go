package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

// ─── POST /api/share ──────────────────────────────────────────────────────────

type createShareRequest struct {
	ResultID string `json:"resultId"`
}

type createShareResponse struct {
	Success   bool      `json:"success"`
	ShareID   string    `json:"shareId"`
	ShareURL  string    `json:"shareUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleCreateShare snapshots one of the caller's results behind a public,
// expiring link.
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.ResultID)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid resultId")
		return
	}

	share, err := s.store.CreateShare(r.Context(), store.CreateShareParams{
		ResultID: id,
		Phone:    phoneFrom(r.Context()),
		TTL:      s.cfg.ShareTTL,
	})
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create share: %w", err))
		return
	}

	respond(w, http.StatusCreated, createShareResponse{
		Success:   true,
		ShareID:   share.Token,
		ShareURL:  strings.TrimRight(s.cfg.BaseURL, "/") + "/share/" + share.Token,
		ExpiresAt: share.ExpiresAt,
	})
}

// ─── GET /api/share/:shareID ──────────────────────────────────────────────────

type sharedResult struct {
	CategoryResults json.RawMessage `json:"categoryResults"`
	GlobalResult    json.RawMessage `json:"globalResult"`
	BAIResult       json.RawMessage `json:"baiResult"`
	UserInfo        *store.Profile  `json:"userInfo,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

type getShareResponse struct {
	Success bool         `json:"success"`
	Result  sharedResult `json:"result"`
}

// handleGetShare serves a share snapshot. Unknown tokens are 404 and expired
// ones 410. The owner's phone number is never part of the response.
func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "shareID")
	if token == "" {
		respondErr(w, http.StatusBadRequest, "missing share id")
		return
	}

	share, err := s.store.GetShare(r.Context(), token)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondErr(w, http.StatusNotFound, "shared result not found")
		return
	case errors.Is(err, store.ErrShareExpired):
		respondErr(w, http.StatusGone, "share link has expired")
		return
	case err != nil:
		s.respondInternalErr(w, r, fmt.Errorf("get share: %w", err))
		return
	}

	var out sharedResult
	if err := json.Unmarshal(share.Report, &out); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("decode share report: %w", err))
		return
	}
	profile, err := store.DecodeProfile(share.Profile)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("decode share profile: %w", err))
		return
	}
	if profile != nil {
		profile.Phone = ""
	}
	out.UserInfo = profile
	out.CreatedAt = share.CreatedAt
	out.ExpiresAt = share.ExpiresAt

	respond(w, http.StatusOK, getShareResponse{Success: true, Result: out})
}
