// Package otp issues and verifies one-time SMS codes that prove ownership of a
// phone number. Codes live in a CodeStore (Redis in production) with a TTL
// and an attempt counter; delivery goes through sms.Sender.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/nyashahama/parenting-anxiety-backend/internal/sms"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	ErrInvalidPhone    = errors.New("otp: invalid phone number")
	ErrNoCode          = errors.New("otp: no code issued for this number")
	ErrTooManyAttempts = errors.New("otp: too many verification attempts")
	ErrCodeExpired     = errors.New("otp: code expired")
	ErrCodeMismatch    = errors.New("otp: code does not match")
	ErrCodeRequired    = errors.New("otp: code is required")
)

// ─── STORE ───────────────────────────────────────────────────────────────────

// Entry is one issued code.
type Entry struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// CodeStore persists issued codes keyed by normalised phone number.
type CodeStore interface {
	// Put replaces any previous entry for phone. The store may drop the entry
	// any time after e.ExpiresAt.
	Put(ctx context.Context, phone string, e Entry) error

	// IncrementAttempts bumps the attempt counter and returns the updated
	// entry, or ErrNoCode if nothing is stored for phone.
	IncrementAttempts(ctx context.Context, phone string) (Entry, error)

	Delete(ctx context.Context, phone string) error
}

// ─── SERVICE ─────────────────────────────────────────────────────────────────

// Config tunes the Service. Zero fields take the defaults below.
type Config struct {
	TTL         time.Duration // default 3m
	MaxAttempts int           // default 5

	// DevMode issues DevCode instead of a random code and returns it from
	// Send so the front end can be exercised without a phone.
	DevMode bool
	DevCode string // default "000000"

	// MessageFormat receives the code as its only verb.
	MessageFormat string
}

const (
	defaultTTL           = 3 * time.Minute
	defaultMaxAttempts   = 5
	defaultDevCode       = "000000"
	defaultMessageFormat = "[Parenting Anxiety Check] Your verification code is %s."
)

// Service issues and verifies codes.
type Service struct {
	store  CodeStore
	sender sms.Sender
	cfg    Config
	logger *slog.Logger

	now     func() time.Time
	newCode func() (string, error)
}

// NewService constructs a Service.
func NewService(store CodeStore, sender sms.Sender, cfg Config, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.DevCode == "" {
		cfg.DevCode = defaultDevCode
	}
	if cfg.MessageFormat == "" {
		cfg.MessageFormat = defaultMessageFormat
	}
	s := &Service{
		store:   store,
		sender:  sender,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newCode: randomCode,
	}
	if cfg.DevMode {
		s.newCode = func() (string, error) { return cfg.DevCode, nil }
	}
	return s
}

// SendResult describes an issued code. Code is only set in DevMode.
type SendResult struct {
	Phone     string
	ExpiresAt time.Time
	Code      string
}

// Send normalises rawPhone, stores a fresh code for it and delivers the code
// by SMS. A previous unexpired code for the same number is replaced and its
// attempt counter reset.
func (s *Service) Send(ctx context.Context, rawPhone string) (SendResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return SendResult{}, err
	}

	code, err := s.newCode()
	if err != nil {
		return SendResult{}, fmt.Errorf("otp: generate code: %w", err)
	}

	expiresAt := s.now().Add(s.cfg.TTL)
	if err := s.store.Put(ctx, phone, Entry{Code: code, ExpiresAt: expiresAt}); err != nil {
		return SendResult{}, fmt.Errorf("otp: store code: %w", err)
	}

	if err := s.sender.Send(ctx, sms.Message{
		To:   phone,
		Text: fmt.Sprintf(s.cfg.MessageFormat, code),
	}); err != nil {
		// The code is useless if it never arrived.
		if delErr := s.store.Delete(ctx, phone); delErr != nil {
			s.logger.Warn("otp: delete undelivered code", "phone", phone, "error", delErr)
		}
		return SendResult{}, fmt.Errorf("otp: deliver code: %w", err)
	}

	s.logger.Info("otp: code sent", "phone", phone, "expires_at", expiresAt)

	res := SendResult{Phone: phone, ExpiresAt: expiresAt}
	if s.cfg.DevMode {
		res.Code = code
	}
	return res, nil
}

// Verify checks code against the stored entry for rawPhone and returns the
// normalised phone on success. Every call counts as an attempt, including
// calls that end in ErrCodeExpired or ErrCodeMismatch. A successful, expired
// or exhausted code is deleted.
func (s *Service) Verify(ctx context.Context, rawPhone, code string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrCodeRequired
	}

	entry, err := s.store.IncrementAttempts(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			return "", ErrNoCode
		}
		return "", fmt.Errorf("otp: load code: %w", err)
	}

	switch {
	case entry.Attempts > s.cfg.MaxAttempts:
		s.discard(ctx, phone)
		return "", ErrTooManyAttempts
	case s.now().After(entry.ExpiresAt):
		s.discard(ctx, phone)
		return "", ErrCodeExpired
	case subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1:
		s.logger.Info("otp: code mismatch", "phone", phone, "attempts", entry.Attempts)
		return "", ErrCodeMismatch
	}

	s.discard(ctx, phone)
	s.logger.Info("otp: phone verified", "phone", phone)
	return phone, nil
}

// IsInputError reports whether err was caused by the caller's input rather
// than by the store or the SMS provider.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrCodeRequired)
}

func (s *Service) discard(ctx context.Context, phone string) {
	if err := s.store.Delete(ctx, phone); err != nil {
		s.logger.Warn("otp: delete code", "phone", phone, "error", err)
	}
}

// randomCode returns a uniformly random 6-digit code without a leading zero.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100_000), nil
}
