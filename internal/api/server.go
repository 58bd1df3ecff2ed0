// Package api implements the HTTP layer for the parenting anxiety check.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/auth"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/otp"
	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
	"github.com/nyashahama/parenting-anxiety-backend/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// BaseURL is used to construct absolute share links.
	// e.g. "https://check.example.com"
	BaseURL string

	// Env is "production", "staging", or "development".
	Env string

	// ShareTTL is how long a public share link stays valid. Default: 30 days.
	ShareTTL time.Duration

	// AllowedOrigin is the CORS origin allowed in production. Empty means "*".
	AllowedOrigin string
}

// ResultStore is the subset of *store.Store the handlers use for
// multi-step writes and owner-scoped reads.
type ResultStore interface {
	UpsertProfile(ctx context.Context, phone string, p store.Profile) (db.User, error)
	SaveResult(ctx context.Context, p store.SaveResultParams) (db.Result, error)
	GetResult(ctx context.Context, phone string, id uuid.UUID) (db.Result, error)
	CreateShare(ctx context.Context, p store.CreateShareParams) (db.SharedResult, error)
	GetShare(ctx context.Context, token string) (db.SharedResult, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles all single-query reads. Injected directly, no repo wrapper.
	q db.Querier

	// store handles multi-step atomic writes.
	store ResultStore

	// engine scores answer sets against the loaded content.
	engine *scoring.Engine

	// otp issues and checks SMS verification codes.
	otp *otp.Service

	// tokens signs identity tokens after a successful verification.
	tokens *auth.Issuer

	// worker enqueues export jobs after a result is saved.
	worker worker.Enqueuer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Serve.
func NewServer(
	q db.Querier,
	st ResultStore,
	engine *scoring.Engine,
	otpService *otp.Service,
	tokens *auth.Issuer,
	enqueuer worker.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.ShareTTL <= 0 {
		cfg.ShareTTL = 30 * 24 * time.Hour
	}
	s := &Server{
		q:      q,
		store:  st,
		engine: engine,
		otp:    otpService,
		tokens: tokens,
		worker: enqueuer,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Static content, no auth.
		r.Get("/questions", s.handleQuestions)
		r.Get("/report-config", s.handleReportConfig)

		// Phone verification, no auth.
		r.Post("/auth/send-sms", s.handleSendSMS)
		r.Post("/auth/verify-sms", s.handleVerifySMS)

		// Public share view (opaque token in URL).
		r.Get("/share/{shareID}", s.handleGetShare)

		// Identity-scoped routes require a verified identity token.
		r.Group(func(r chi.Router) {
			r.Use(s.requireIdentity)

			r.Post("/member", s.handleUpsertMember)
			r.Get("/member/check", s.handleCheckMember)

			r.Post("/result", s.handleCreateResult)
			r.Get("/result", s.handleLatestResult)
			r.Get("/result/history", s.handleResultHistory)
			r.Get("/result/{resultID}", s.handleGetResult)

			r.Post("/share", s.handleCreateShare)
		})
	})

	return r
}
