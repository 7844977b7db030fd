package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/infra/metrics"
	"vpn-key-subscription/internal/usecase"
)

// Pinger reports store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Payments    usecase.PaymentUseCase
	Credentials usecase.CredentialUseCase
	Owners      usecase.OwnerUseCase
	Pricing     usecase.PricingUseCase
	Reconciler  usecase.ReconcilerUseCase
	Auth        *AuthManager
	Limiter     Limiter // nil disables rate limiting
	Health      Pinger  // nil reports healthy
}

type Options struct {
	RequestTimeout  time.Duration
	CreateRateLimit int // per client per minute
	CheckRateLimit  int
	TrialRateLimit  int
}

// Server exposes the orchestrator over JSON/HTTP.
type Server struct {
	Deps
	opts Options
	log  *zerolog.Logger
}

func NewServer(deps Deps, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{Deps: deps, opts: opts, log: &l}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/plans", s.handlePlans)

	r.Route("/payments", func(r chi.Router) {
		r.With(RateLimit(s.Limiter, "create_payment", s.opts.CreateRateLimit, s.log)).
			Post("/", s.handleCreatePayment)
		r.Route("/{paymentID}", func(r chi.Router) {
			r.Get("/", s.handleGetPayment)
			r.Post("/claim", s.handleClaim)
			r.With(RateLimit(s.Limiter, "check_payment", s.opts.CheckRateLimit, s.log)).
				Post("/check", s.handleCheck)
			r.Group(func(r chi.Router) {
				r.Use(s.Auth.RequireOperator)
				r.Post("/approve", s.handleApprove)
				r.Post("/reject", s.handleReject)
			})
		})
	})

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Get("/payments", s.handleOwnerPayments)
		r.Get("/credentials", s.handleOwnerCredentials)
	})

	r.Route("/credentials", func(r chi.Router) {
		r.With(RateLimit(s.Limiter, "trial", s.opts.TrialRateLimit, s.log)).
			Post("/trial", s.handleTrial)
		r.Get("/{uuid}", s.handleGetCredential)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.Auth.RequireOperator)
		r.Post("/owners", s.handleRegisterOwner)
		r.Get("/credentials/stats", s.handleStats)
		r.Post("/credentials/cleanup", s.handleCleanup)
		r.Post("/credentials/sweep", s.handleSweep)
		r.Post("/credentials/{uuid}/deactivate", s.handleDeactivate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "route not found"})
	})
	return r
}

// ListenAndServe blocks until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	s.log.Info().Msg("http server stopped")
	return nil
}
