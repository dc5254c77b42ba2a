package productmock

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/and4010/apimanager/internal/logutil"
	"github.com/and4010/apimanager/product"
)

// CatalogPath is the path the production backend serves the catalog on.
const CatalogPath = "/apis2/test/marttest.jsp"

// Config controls the fault injection of the mock backend.
type Config struct {
	// Latency delays every catalog response.
	Latency time.Duration
	// FailEvery answers every n-th catalog request with 500. Zero disables.
	FailEvery int
	// Token, when set, is the only bearer token accepted. Other requests get 401.
	Token string
	// RatePerSecond limits catalog requests; excess requests get 429. Zero
	// disables.
	RatePerSecond float64
	// Burst is the limiter bucket size. Defaults to 1.
	Burst int
}

// Server is the mock Product backend.
type Server struct {
	cfg     Config
	catalog product.Response
	limiter *rate.Limiter
	logger  *slog.Logger

	requests atomic.Int64
}

// NewServer returns a server answering with catalog.
func NewServer(cfg Config, catalog product.Response, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		catalog: catalog,
		logger:  logutil.NoopIfNil(logger),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return s
}

// Requests returns the number of catalog requests received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Handler returns the chi router serving the catalog.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Use(s.authMiddleware)
		r.Post(CatalogPath, s.handleCatalog)
		r.Post("/product", s.handleCatalog)
	})

	return r
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	n := s.requests.Add(1)

	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}

	if s.cfg.FailEvery > 0 && n%int64(s.cfg.FailEvery) == 0 {
		writeResult(w, http.StatusInternalServerError, "9999", "injected failure")
		return
	}

	writeJSON(w, http.StatusOK, s.catalog)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeResult(w, http.StatusTooManyRequests, "0429", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeResult(w, http.StatusUnauthorized, "0401", "token invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs request information using slog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"app_version", r.Header.Get("AppVersion"),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeResult(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"result": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
