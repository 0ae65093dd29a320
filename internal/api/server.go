// Package api exposes portfolio metrics, the ledger and the invest/redeem
// lifecycle over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/lifecycle"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/portfolio"
	"rwa-portfolio/internal/reconcile"
	"rwa-portfolio/internal/storage"
)

// PortfolioReader computes portfolio summaries.
type PortfolioReader interface {
	Summary(ctx context.Context, owner string) (*portfolio.Summary, error)
}

// Refresher reconciles an owner's holdings with the chain.
type Refresher interface {
	Refresh(ctx context.Context, owner string) (*reconcile.Report, error)
}

// Recorder writes ledger records idempotently on tx hash.
type Recorder interface {
	Record(ctx context.Context, rec domain.TransactionRecord) (*domain.TransactionRecord, bool, error)
}

// Lifecycle starts invest and redeem runs.
type Lifecycle interface {
	StartInvest(ctx context.Context, assetID string, amount float64) *lifecycle.Run
	StartRedeem(ctx context.Context, assetID string, shares float64) *lifecycle.Run
}

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Portfolio PortfolioReader
	Refresher Refresher
	Recorder  Recorder
	Ledger    storage.LedgerStore
	Catalog   storage.AssetCatalog
	Snapshots storage.SnapshotStore
	Lifecycle Lifecycle
}

func (d Deps) validate() error {
	var errs []error
	if d.Portfolio == nil {
		errs = append(errs, errors.New("portfolio reader is required"))
	}
	if d.Refresher == nil {
		errs = append(errs, errors.New("refresher is required"))
	}
	if d.Recorder == nil {
		errs = append(errs, errors.New("recorder is required"))
	}
	if d.Ledger == nil {
		errs = append(errs, errors.New("ledger store is required"))
	}
	if d.Catalog == nil {
		errs = append(errs, errors.New("asset catalog is required"))
	}
	if d.Snapshots == nil {
		errs = append(errs, errors.New("snapshot store is required"))
	}
	if d.Lifecycle == nil {
		errs = append(errs, errors.New("lifecycle is required"))
	}
	return errors.Join(errs...)
}

// Config holds server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	Log         zerolog.Logger
}

// Server is the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	validate *validator.Validate
	deps     Deps
	now      func() time.Time
}

// New creates a Server with all routes registered.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "api").Logger(),
		validate: newValidator(),
		deps:     deps,
		now:      time.Now,
	}
	s.setupMiddleware(cfg.CORSOrigins)
	s.setupRoutes()

	// No WriteTimeout: invest and redeem stream until the receipt arrives.
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(NewCORS(origins).Handler)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.handleListAssets)
			r.Get("/{id}", s.handleGetAsset)
		})

		r.Route("/portfolio/{owner}", func(r chi.Router) {
			r.Get("/", s.handlePortfolio)
			r.Get("/history", s.handlePortfolioHistory)
			r.Post("/reconcile", s.handleReconcile)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleRecordTransaction)
		})

		r.Post("/invest", s.handleInvest)
		r.Post("/redeem", s.handleRedeem)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Open invest and redeem streams are
// cancelled when their connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}
