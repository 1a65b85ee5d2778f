package api

import (
	"collection-ledger/internal/api/handler"
	mw "collection-ledger/internal/api/middleware"
	"collection-ledger/internal/config"
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/penalty"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 60 * time.Second

// Services groups what the HTTP adapter exposes. Ledger is nil when the
// ledger is switched off, and its routes are not mounted.
type Services struct {
	Payments  payment.PaymentService
	Penalties penalty.PenaltyService
	Loans     loan.LoanService
	Ledger    ledger.LedgerService
}

// SetupRouter builds the HTTP routes. ctx bounds background work started by
// the middleware.
func SetupRouter(ctx context.Context, svc Services, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(ctx, router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Post("/auth/token", authHandler.GenerateBearerToken)

	router.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		setupPaymentRoutes(r, svc.Payments, logger)
		setupPenaltyRoutes(r, svc.Penalties, logger)
		setupLoanRoutes(r, svc.Loans, logger)
		if svc.Ledger != nil {
			setupLedgerRoutes(r, svc.Ledger, logger)
		}
	})

	return router
}

func setupMiddleware(ctx context.Context, router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(mw.NewRateLimiterMiddleware(ctx, cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupPaymentRoutes(r chi.Router, svc payment.PaymentService, logger *slog.Logger) {
	h := handler.NewPaymentHandler(svc, logger)
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.RecordPayment)
		r.Get("/receipts/{receiptID}", h.GetReceipt)
	})
}

func setupPenaltyRoutes(r chi.Router, svc penalty.PenaltyService, logger *slog.Logger) {
	h := handler.NewPenaltyHandler(svc, logger)
	r.Post("/accruals", h.RunAccrual)
	r.Route("/penalty-policies", func(r chi.Router) {
		r.Post("/", h.CreatePolicy)
		r.Get("/active", h.GetActivePolicy)
		r.Post("/{policyID}/activate", h.ActivatePolicy)
	})
}

func setupLoanRoutes(r chi.Router, svc loan.LoanService, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc, logger)
	r.Post("/issuances", h.Issue)
	r.Get("/loans/{loanID}", h.GetLoan)
	r.Get("/loans/{loanID}/schedule", h.GetLoanSchedule)
	r.Get("/batches/{batchID}/schedule", h.GetBatchSchedule)
}

func setupLedgerRoutes(r chi.Router, svc ledger.LedgerService, logger *slog.Logger) {
	h := handler.NewLedgerHandler(svc, logger)
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/transfers", h.Transfer)
		r.Post("/settlements", h.Settle)
		r.Route("/{actorID}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Post("/", h.OpenAccount)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/reconciliation", h.Reconcile)
		})
	})
}
