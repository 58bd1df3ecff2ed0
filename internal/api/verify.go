package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nyashahama/parenting-anxiety-backend/internal/otp"
)

// ─── POST /api/auth/send-sms ──────────────────────────────────────────────────

type sendSMSRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type sendSMSResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
	// DevCode is only populated outside production so the flow can be tested
	// without a handset.
	DevCode string `json:"devCode,omitempty"`
}

// handleSendSMS issues a verification code for the given phone number and
// delivers it by SMS. Requesting again replaces the previous code.
func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var req sendSMSRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		respondErr(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}

	res, err := s.otp.Send(r.Context(), req.PhoneNumber)
	if otp.IsInputError(err) {
		respondErr(w, http.StatusBadRequest, "invalid phone number")
		return
	}
	if err != nil {
		s.logger.Error("send-sms: delivery failed", "error", err, logField(r))
		respondErr(w, http.StatusBadGateway, "could not send verification code")
		return
	}

	respond(w, http.StatusOK, sendSMSResponse{
		Success:   true,
		ExpiresAt: res.ExpiresAt,
		DevCode:   res.Code,
	})
}

// ─── POST /api/auth/verify-sms ────────────────────────────────────────────────

type verifySMSRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type verifySMSResponse struct {
	Verified  bool      `json:"verified"`
	Phone     string    `json:"phone"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleVerifySMS checks a code and, on success, returns an identity token.
// The same token is set as an HttpOnly cookie for browser clients.
func (s *Server) handleVerifySMS(w http.ResponseWriter, r *http.Request) {
	var req verifySMSRequest
	if !decode(w, r, &req) {
		return
	}

	phone, err := s.otp.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		status, msg := verifyErrStatus(err)
		if status == http.StatusInternalServerError {
			s.respondInternalErr(w, r, fmt.Errorf("verify code: %w", err))
			return
		}
		respondErr(w, status, msg)
		return
	}

	token, exp, err := s.tokens.Issue(phone)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("issue token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})

	respond(w, http.StatusOK, verifySMSResponse{
		Verified:  true,
		Phone:     phone,
		Token:     token,
		ExpiresAt: exp,
	})
}

// verifyErrStatus maps otp errors to an HTTP status and client message.
func verifyErrStatus(err error) (int, string) {
	switch {
	case errors.Is(err, otp.ErrInvalidPhone):
		return http.StatusBadRequest, "invalid phone number"
	case errors.Is(err, otp.ErrCodeRequired):
		return http.StatusBadRequest, "code is required"
	case errors.Is(err, otp.ErrNoCode):
		return http.StatusBadRequest, "no code was requested for this number"
	case errors.Is(err, otp.ErrCodeMismatch):
		return http.StatusUnauthorized, "verification code does not match"
	case errors.Is(err, otp.ErrCodeExpired):
		return http.StatusGone, "verification code expired, request a new one"
	case errors.Is(err, otp.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too many attempts, request a new code"
	default:
		return http.StatusInternalServerError, ""
	}
}
