// Package api exposes the scanner over HTTP: a threat feed is uploaded,
// the configured root is scanned and the matches are returned as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/api/middleware"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/feed"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/feedstore"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/reporter"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/scanner"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// UploadField is the multipart field holding the threat feed
const UploadField = "file"

const defaultMaxUpload = 10 << 20

// Engine runs one scan against a threat list. *scanner.Scanner implements it.
type Engine interface {
	Scan(ctx context.Context, threats []models.ThreatRecord) (*scanner.Result, error)
}

// CheckResponse is the body of a successful POST /vulnbcheck
type CheckResponse struct {
	MatchedPlugins []models.MatchRecord `json:"matched_plugins"`
	ReportFile     string               `json:"report_file"`
	FeedFile       string               `json:"feed_file"`
	SitesScanned   int                  `json:"sites_scanned"`
	Failures       int                  `json:"failures"`
}

type Config struct {
	Engine         Engine
	Store          *feedstore.Store
	Logger         *zap.Logger
	RateLimit      int   // Requests per second per IP (0 = disabled)
	RateBurst      int   // Burst size for rate limiter
	MaxUploadBytes int64 // Upper bound on the request body
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

// Close stops background work owned by the server
func (s *Server) Close() {
	s.limiters.stop()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// RequestID -> Logging -> RateLimit -> SecurityHeaders -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(withSecurityHeaders(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/vulnbcheck", s.handleCheck)
	s.mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errors.New("upload too large"))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, errors.New("no file part"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("no file part"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("no selected file"))
		return
	}

	logger := s.requestLogger(r)

	path, err := s.cfg.Store.Save(header.Filename, file)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	threats, err := feed.Load(path)
	if err != nil {
		logger.Warn("rejected threat feed", zap.String("feed", path), zap.Error(err))
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid threat feed: %w", err))
		return
	}
	logger.Info("threat feed loaded", zap.String("feed", path), zap.Int("threats", len(threats)))

	res, err := s.cfg.Engine.Scan(r.Context(), threats)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	matches := reporter.Sorted(res.Matches)
	if matches == nil {
		matches = []models.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, CheckResponse{
		MatchedPlugins: matches,
		ReportFile:     res.ReportPath,
		FeedFile:       path,
		SitesScanned:   res.Sites,
		Failures:       len(res.Failures),
	})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		limiter := s.limiters.getLimiter(ip, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", ip))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// 5xx details stay in the server log
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// rateLimiterMap manages per-IP rate limiters with automatic cleanup
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	done     chan struct{}
	once     sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		done:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = time.Now()

	return limiter.limiter
}

// cleanupLoop removes limiters that haven't been used in 5 minutes
func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			for ip, limiter := range m.limiters {
				if time.Since(limiter.lastSeen) > 5*time.Minute {
					delete(m.limiters, ip)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *rateLimiterMap) stop() {
	m.once.Do(func() { close(m.done) })
}
