package http

import (
	"context"
	"net/http"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/metrics"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
)

// Analytics is the service the handlers delegate to.
type Analytics interface {
	LedgerSummary(ctx context.Context, userID string, f ledger.Filter) (ledger.Result, error)
	MarketIndicators(ctx context.Context, symbol string) (services.MarketReport, error)
	RecordMovement(ctx context.Context, userID string, raw core.RawMovement) (core.Movement, error)
	Categories(ctx context.Context, userID string) ([]core.Category, error)
	Ready(ctx context.Context) error
}

// Options configures a Server. Zero values get working defaults.
type Options struct {
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	Detector           *security.Detector
	WriteRatePerMinute int
	DefaultUser        string
	Now                func() time.Time
}

type Server struct {
	http.Server
	svc         Analytics
	logger      *log.Logger
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	defaultUser string
	now         func() time.Time
	started     time.Time
}

// NewServer wires the JSON API routes and middleware around svc.
func NewServer(addr string, svc Analytics, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Detector == nil {
		opts.Detector, _ = security.NewDetector()
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "default"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		svc:         svc,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WriteRatePerMinute}),
		detector:    opts.Detector,
		defaultUser: opts.DefaultUser,
		now:         opts.Now,
		started:     time.Now(),
	}

	writeLimit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/ledger/summary", s.handleLedgerSummary)
	mux.Handle("POST /api/movements", writeLimit(http.HandlerFunc(s.handleCreateMovement)))
	mux.HandleFunc("GET /api/market/indicators", s.handleMarketIndicators)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	var observe trace.Observer
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
		observe = opts.Metrics.ObserveHTTP
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, observe)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(s.detector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
