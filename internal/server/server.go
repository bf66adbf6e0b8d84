package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramesius/wez-sonos/internal/api"
	"github.com/ramesius/wez-sonos/internal/auth"
	"github.com/ramesius/wez-sonos/internal/config"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLoggerMiddleware logs all incoming HTTP requests. It runs inside
// the request-ID middleware so log lines correlate with error bodies.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s id=%s", r.Method, r.URL.Path, wrapped.status,
			time.Since(start).Round(time.Millisecond), api.RequestID(r))
	})
}

// NewHandler builds the HTTP handler around an already-started Service.
func NewHandler(cfg config.Config, svc *Service) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(api.RequestIDMiddleware)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RecovererMiddleware)
	router.Use(auth.Middleware(cfg))

	auth.RegisterRoutes(router, cfg)
	RegisterRoutes(router, svc)

	return router
}
