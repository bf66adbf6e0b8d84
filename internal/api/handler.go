package api

import (
	"log"
	"net/http"

	"github.com/ramesius/wez-sonos/internal/apperrors"
)

// RecovererMiddleware converts panics into 500 responses so one bad handler
// cannot take the daemon down.
func RecovererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("PANIC: %s %s: %v", r.Method, r.URL.Path, rec)
				WriteError(w, r, apperrors.NewInternalError("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
