// internal/middleware/middleware.go
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"clubbackend/internal/config"
	"clubbackend/internal/logger"
)

// Request context keys
type contextKey string

const RequestIDKey contextKey = "request_id"

// StatusResponse is the envelope every API endpoint answers with.
type StatusResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Chain wraps a handler in the standard stack for API endpoints.
func Chain(next http.HandlerFunc) http.HandlerFunc {
	return RequestID(
		Logging(
			Recovery(next),
		),
	)
}

// RequestID middleware adds a unique request ID to each request
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// Logging middleware logs every API request with its outcome and duration
func Logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.LogInfo("%s %s -> %d from %s in %v (request %s)",
			r.Method, r.URL.Path, rw.statusCode, logger.GetClientIP(r), duration, getRequestID(r.Context()))
	}
}

// Recovery middleware turns handler panics into a clean 500 response
func Recovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.LogError("Panic in handler %s %s (request %s): %v",
					r.Method, r.URL.Path, getRequestID(r.Context()), err)
				WriteError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// RateLimit allows at most limit requests per window per client IP.
func RateLimit(limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	var (
		mu      sync.Mutex
		windows = make(map[string][]time.Time)
	)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := logger.GetClientIP(r)
			now := time.Now()

			mu.Lock()
			recent := windows[ip][:0]
			for _, t := range windows[ip] {
				if now.Sub(t) < window {
					recent = append(recent, t)
				}
			}
			if len(recent) >= limit {
				windows[ip] = recent
				mu.Unlock()
				logger.LogWarn("Rate limit exceeded for %s on %s", ip, r.URL.Path)
				WriteFail(w, http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.")
				return
			}
			windows[ip] = append(recent, now)
			mu.Unlock()

			next.ServeHTTP(w, r)
		}
	}
}

// CORS adds CORS headers for allowed origins and answers OPTIONS requests.
// Credentials are allowed because the admin session rides on a cookie.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string) bool {
	for _, allowed := range config.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Helper functions
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WriteJSON writes any payload with the given HTTP status.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes {status:"success"} plus optional extra fields.
func WriteSuccess(w http.ResponseWriter, extra map[string]interface{}) {
	payload := map[string]interface{}{"status": "success"}
	for k, v := range extra {
		payload[k] = v
	}
	WriteJSON(w, http.StatusOK, payload)
}

// WriteFail writes a business failure: {status:"fail", message}.
func WriteFail(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, StatusResponse{Status: "fail", Message: message})
}

// WriteError writes a server-side failure: {status:"error", message}.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, StatusResponse{Status: "error", Message: message})
}

// ParseJSONRequest parses a JSON request body into the provided struct
func ParseJSONRequest(r *http.Request, v interface{}) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
