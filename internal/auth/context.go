package auth

import "context"

// User is the authenticated API client attached to the request context.
type User struct {
	Sub        string
	ClientName string
	Type       TokenType
}

type contextKey string

const userKey contextKey = "authUser"

// WithUser attaches the user to the context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey).(User)
	return user, ok
}
