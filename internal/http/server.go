// Package http exposes the planner over a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"trezo/internal/engine"
	applog "trezo/internal/log"
	"trezo/internal/service"
)

type Server struct {
	http.Server
	planner        *service.Planner
	rateLimiter    *rateLimiter
	defaultUnit    engine.BucketUnit
	defaultHorizon int
	shutdownOnce   sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 120 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 120
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, planner *service.Planner, defaultUnit engine.BucketUnit, defaultHorizon int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		planner:        planner,
		rateLimiter:    newRateLimiter(),
		defaultUnit:    defaultUnit,
		defaultHorizon: defaultHorizon,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/state", s.with(s.handleGetState))

	mux.HandleFunc("POST /api/projects", s.with(s.handleAddProject))
	mux.HandleFunc("PUT /api/projects/{id}", s.with(s.handleRenameProject))
	mux.HandleFunc("POST /api/projects/{id}/archive", s.with(s.handleArchiveProject))
	mux.HandleFunc("POST /api/projects/{id}/restore", s.with(s.handleRestoreProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.with(s.handleDeleteProject))

	mux.HandleFunc("POST /api/projects/{id}/entries", s.with(s.handleSaveDefinition))
	mux.HandleFunc("DELETE /api/projects/{id}/entries/{entryID}", s.with(s.handleDeleteDefinition))
	mux.HandleFunc("GET /api/projects/{id}/entries/{entryID}/occurrences", s.with(s.handleOccurrences))
	mux.HandleFunc("GET /api/projects/{id}/entries/{entryID}/period-amount", s.with(s.handlePeriodAmount))
	mux.HandleFunc("POST /api/projects/{id}/actuals", s.with(s.handleRecordActual))
	mux.HandleFunc("DELETE /api/actuals/{id}", s.with(s.handleDeleteActual))
	mux.HandleFunc("POST /api/actuals/{id}/payments", s.with(s.handleRecordPayment))
	mux.HandleFunc("DELETE /api/actuals/{id}/payments/{paymentID}", s.with(s.handleDeletePayment))

	mux.HandleFunc("POST /api/accounts", s.with(s.handleAddAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.with(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.with(s.handleDeleteAccount))

	mux.HandleFunc("POST /api/tiers", s.with(s.handleAddTier))
	mux.HandleFunc("PUT /api/tiers/{id}", s.with(s.handleRenameTier))
	mux.HandleFunc("DELETE /api/tiers/{id}", s.with(s.handleDeleteTier))

	mux.HandleFunc("POST /api/categories/{kind}/{mainID}", s.with(s.handleAddSubCategory))
	mux.HandleFunc("PUT /api/categories/{kind}/sub/{id}", s.with(s.handleRenameSubCategory))
	mux.HandleFunc("DELETE /api/categories/{kind}/sub/{id}", s.with(s.handleDeleteSubCategory))

	mux.HandleFunc("POST /api/projects/{id}/scenarios", s.with(s.handleAddScenario))
	mux.HandleFunc("PUT /api/scenarios/{id}", s.with(s.handleUpdateScenario))
	mux.HandleFunc("POST /api/scenarios/{id}/toggle", s.with(s.handleToggleScenario))
	mux.HandleFunc("DELETE /api/scenarios/{id}", s.with(s.handleDeleteScenario))
	mux.HandleFunc("POST /api/scenarios/{id}/entries", s.with(s.handleSaveScenarioDelta))
	mux.HandleFunc("DELETE /api/scenarios/{id}/entries/{entryID}", s.with(s.handleDeleteScenarioDelta))
	mux.HandleFunc("GET /api/scenarios/{id}/entries", s.with(s.handleEffectiveEntries))

	mux.HandleFunc("GET /api/projects/{id}/positions", s.with(s.handleProjectPositions))
	mux.HandleFunc("GET /api/scenarios/{id}/positions", s.with(s.handleScenarioPositions))

	mux.HandleFunc("PUT /api/settings", s.with(s.handleUpdateSettings))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// with adds security headers, rate limiting, and request logging.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
