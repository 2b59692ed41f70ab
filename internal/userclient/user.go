package userclient

import (
	"context"
	"strings"
	"time"
)

// User is the subset of the user directory record the engagement core needs.
type User struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email,omitempty"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}

// FullName joins first and last name, falling back to the id.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.ID
	}
	return name
}

// Lookup resolves users by id. Implementations return errors carrying the
// NOT_FOUND, UPSTREAM_FAILURE or TIMEOUT codes.
type Lookup interface {
	GetUser(ctx context.Context, id string) (User, error)
}

type tokenKey struct{}

type callerKey struct{}

// WithBearerToken stores the caller's bearer token so outbound lookups can forward it.
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerTokenFromContext returns the token stored by WithBearerToken.
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// WithCaller stores the authenticated caller as described by token claims.
func WithCaller(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, callerKey{}, user)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(callerKey{}).(User)
	return user, ok
}
