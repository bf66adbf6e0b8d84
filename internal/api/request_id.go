package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id. Inbound values are kept so a
// reverse proxy in front of the daemon can stamp its own ids; otherwise one
// is minted here.
const RequestIDHeader = "x-request-id"

type ctxKey int

const requestIDCtxKey ctxKey = iota

// RequestIDMiddleware guarantees every request carries a correlation id, in
// the context and echoed on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDCtxKey, id)))
	})
}

// RequestID returns the correlation id for the request, or "" outside the
// middleware.
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDCtxKey).(string)
	return id
}
