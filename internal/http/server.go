package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"depositos/internal/auth"
	applog "depositos/internal/log"
	"depositos/internal/middleware/ratelimit"
	"depositos/internal/middleware/security"
	"depositos/internal/middleware/trace"
	"depositos/internal/services"
	"depositos/internal/session"
)

// Options tune the HTTP server.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	CORS               security.CORSConfig
	// TrustedProxies extend the default private ranges allowed to set
	// X-Forwarded-For.
	TrustedProxies     []string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	deposits *services.DepositService
	auth     *auth.Authenticator
	sessions *session.Store
	logger   *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics
}

type appMetrics struct {
	uptime          time.Time
	depositsCreated atomic.Int64
	depositsUpdated atomic.Int64
	depositsDeleted atomic.Int64
	statusChanges   atomic.Int64
	loginsOK        atomic.Int64
	loginsFailed    atomic.Int64
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, deposits *services.DepositService, authn *auth.Authenticator, sessions *session.Store) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentHTTP)
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if opts.CORS.AllowedOrigins == nil {
		opts.CORS = security.DefaultCORSConfig()
	}

	s := &Server{
		deposits:         deposits,
		auth:             authn,
		sessions:         sessions,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)
	s.appMetrics.uptime = time.Now()

	mux := http.NewServeMux()
	s.routes(mux)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(mux)
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isHealthRoute(r.URL.Path) {
			mux.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = security.CORS(opts.CORS)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = applog.Middleware(logger, trace.GetRequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.auth.Require(s.handleLogout))

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.auth.Require(s.handleUpsertMember))
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	// Deposit and ledger routes are also served without the /api prefix.
	for _, prefix := range []string{"/api", ""} {
		mux.HandleFunc("GET "+prefix+"/deposits", s.handleListDeposits)
		mux.HandleFunc("GET "+prefix+"/deposits/next-code", s.handleNextCode)
		mux.HandleFunc("GET "+prefix+"/deposits/{uid}", s.handleGetDeposit)
		mux.HandleFunc("POST "+prefix+"/deposits", s.handleCreateDeposit)
		mux.HandleFunc("PATCH "+prefix+"/deposits/{uid}", s.auth.Require(s.handleUpdateDeposit))
		mux.HandleFunc("DELETE "+prefix+"/deposits/{uid}", s.auth.Require(s.handleDeleteDeposit))
		mux.HandleFunc("DELETE "+prefix+"/deposits", s.auth.Require(s.handleClearDeposits))

		mux.HandleFunc("GET "+prefix+"/ledger", s.handleGetLedger)
		mux.HandleFunc("PUT "+prefix+"/ledger/{week}/{memberId}", s.auth.Require(s.handleSetStatus))
	}
}

func isHealthRoute(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// RunMaintenance drives the background cleanup owned by the server until ctx
// is done.
func (s *Server) RunMaintenance(ctx context.Context) error {
	return s.rateLimiter.Run(ctx)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	return s.Server.Shutdown(ctx)
}
