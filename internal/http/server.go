package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"potrosnja/internal/cache"
	"potrosnja/internal/core"
	applog "potrosnja/internal/log"
	"potrosnja/internal/metrics"
	"potrosnja/internal/middleware/ratelimit"
	"potrosnja/internal/middleware/security"
	"potrosnja/internal/middleware/trace"
	"potrosnja/internal/services"
)

// Options tunes the server. The zero value is usable.
type Options struct {
	CORSOrigins       []string
	Metrics           *metrics.Metrics // nil disables /metrics
	Logger            *applog.Logger
	WritesPerMinute   int
	CacheSize         int
	CacheTTL          time.Duration
	CacheCleanupEvery time.Duration
	RequestTimeout    time.Duration
	ReadHeaderTimeout time.Duration
}

// Server serves the JSON API.
type Server struct {
	http.Server

	svc     *services.RecordService
	logger  *applog.Logger
	metrics *metrics.Metrics

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// aggregation views keyed by service version
	annualCache  *cache.LRUCache[[]core.AnnualTotal]
	monthlyCache *cache.LRUCache[core.Comparison]
	cacheManager *cache.Manager
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.RecordService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentHTTP)
	}
	if opts.WritesPerMinute <= 0 {
		opts.WritesPerMinute = 60
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.CacheCleanupEvery <= 0 {
		opts.CacheCleanupEvery = time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}

	limits := ratelimit.Config{
		RequestsPerMinute: opts.WritesPerMinute,
		OnReject:          func(string) { opts.Metrics.RateLimited() },
	}
	s := &Server{
		svc:          svc,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		limiter:      ratelimit.NewLimiter(limits),
		detector:     security.NewDetector(),
		annualCache:  cache.NewLRUCache[[]core.AnnualTotal](opts.CacheSize, opts.CacheTTL),
		monthlyCache: cache.NewLRUCache[core.Comparison](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(opts.Logger.WithComponent(applog.ComponentCache).Logger),
	}
	var observer trace.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger.WithComponent(applog.ComponentTrace), observer)

	s.cacheManager.Register(s.annualCache)
	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.StartCleanup(opts.CacheCleanupEvery)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(trace.LoggerMiddleware(s.logger))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", trace.RequestIDHeader},
			ExposedHeaders: []string{trace.RequestIDHeader, "X-Sync-State"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStoreMiddleware)
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/records", s.handleListRecords)
		r.Get("/records/latest", s.handleLatestRecord)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Get("/summary/annual", s.handleAnnualSummary)
		r.Get("/summary/monthly", s.handleMonthlySummary)
		r.Get("/export", s.handleExport)
		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				TooManyRequestsError().Write(w)
			}))
			r.Post("/records", s.handleSubmitRecord)
			r.Put("/records/{id}", s.handleUpdateRecord)
			r.Delete("/records/{id}", s.handleDeleteRecord)
			r.Post("/import", s.handleImport)
			r.Post("/reload", s.handleReload)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed").Write(w)
	})
	return r
}

// Shutdown stops background routines and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	s.cacheManager.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports 503 while nothing could be loaded from any store.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st := s.svc.Status()
	code := http.StatusOK
	if st.State == services.SyncOffline {
		code = http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(code).SyncStatus(st).Body(st).Write(w)
}
