package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nyashahama/parenting-anxiety-backend/internal/otp"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

// ─── POST /api/member ─────────────────────────────────────────────────────────

// profileRequest is the respondent profile as submitted by the front end.
// Phone is optional; when present it must match the verified identity.
type profileRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	ChildAge        string `json:"childAge"`
	ChildGender     string `json:"childGender"`
	ParentAgeGroup  string `json:"parentAgeGroup"`
	CaregiverType   string `json:"caregiverType"`
	Region          string `json:"region"`
	PrivacyAgreed   bool   `json:"privacyAgreed"`
	MarketingAgreed bool   `json:"marketingAgreed"`
}

// validate returns a client-facing message, or "" when the profile is usable
// for the verified phone.
func (p profileRequest) validate(phone string) string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", p.Name},
		{"childAge", p.ChildAge},
		{"childGender", p.ChildGender},
		{"parentAgeGroup", p.ParentAgeGroup},
		{"caregiverType", p.CaregiverType},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "missing required fields: " + strings.Join(missing, ", ")
	}
	if p.Phone != "" {
		if norm, err := otp.NormalizePhone(p.Phone); err != nil || norm != phone {
			return "phone does not match the verified number"
		}
	}
	return ""
}

func (p profileRequest) profile(phone string) store.Profile {
	return store.Profile{
		Name:            strings.TrimSpace(p.Name),
		Phone:           phone,
		ChildAge:        strings.TrimSpace(p.ChildAge),
		ChildGender:     strings.TrimSpace(p.ChildGender),
		ParentAgeGroup:  strings.TrimSpace(p.ParentAgeGroup),
		CaregiverType:   strings.TrimSpace(p.CaregiverType),
		Region:          strings.TrimSpace(p.Region),
		PrivacyAgreed:   p.PrivacyAgreed,
		MarketingAgreed: p.MarketingAgreed,
	}
}

type memberResponse struct {
	Success  bool           `json:"success"`
	UserData *store.Profile `json:"userData"`
}

// handleUpsertMember stores the profile for the verified phone, replacing any
// previous one.
func (s *Server) handleUpsertMember(w http.ResponseWriter, r *http.Request) {
	phone := phoneFrom(r.Context())

	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := req.validate(phone); msg != "" {
		respondErr(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.store.UpsertProfile(r.Context(), phone, req.profile(phone))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("upsert member: %w", err))
		return
	}

	p := store.ProfileFromUser(user)
	respond(w, http.StatusOK, memberResponse{Success: true, UserData: &p})
}

// ─── GET /api/member/check ────────────────────────────────────────────────────

// handleCheckMember reports whether the verified phone already has a profile.
// userData is null when it does not, which tells the front end to show the
// profile form.
func (s *Server) handleCheckMember(w http.ResponseWriter, r *http.Request) {
	phone := phoneFrom(r.Context())

	user, err := s.q.GetUserByPhone(r.Context(), phone)
	if errors.Is(err, sql.ErrNoRows) {
		respond(w, http.StatusOK, memberResponse{Success: true})
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get member: %w", err))
		return
	}

	p := store.ProfileFromUser(user)
	respond(w, http.StatusOK, memberResponse{Success: true, UserData: &p})
}
