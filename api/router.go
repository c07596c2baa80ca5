package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for the API layer.
type Config struct {
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Logger receives one line per request.
	Logger *slog.Logger
}

// NewRouter creates an http.Handler with all provisioning routes registered.
func NewRouter(engine Engine, cfg Config) http.Handler {
	mux := http.NewServeMux()
	h := NewHandler(engine, cfg.Logger)

	mux.HandleFunc("POST /api/v1/requests", h.SubmitRequest)
	mux.HandleFunc("POST /api/v1/resources/{kind}", h.Create)
	mux.HandleFunc("GET /api/v1/resources", h.ListAll)
	mux.HandleFunc("GET /api/v1/resources/{kind}", h.List)
	mux.HandleFunc("DELETE /api/v1/resources/{kind}", h.Delete)
	mux.HandleFunc("POST /api/v1/generate", h.GenerateCode)
	mux.HandleFunc("GET /health", h.HealthCheck)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return requestLog(cfg.Logger, mux)
}

// statusWriter captures the response code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLog logs one line per request.
func requestLog(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	})
}
