// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets the values, services read them. Keeping this package free of
// net/http lets domain code consume actor identity and request time without
// importing transport concerns.
//
// Usage in services:
//
//	actor := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, "counselor-1", requestcontext.RoleCounselor)
package requestcontext

import (
	"context"
	"time"
)

// Role classifies the authenticated caller. Authorization decisions in the
// report workflow depend on who is acting (counselor submits, guardian
// reviews/approves, admin forces statuses).
type Role string

const (
	RoleCounselor   Role = "counselor"
	RoleGuardian    Role = "guardian"
	RoleInstitution Role = "institution"
	RoleAdmin       Role = "admin"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	deviceKey      struct{}
)

// ActorID retrieves the authenticated subject id from the context.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ActorRole retrieves the authenticated caller's role from the context.
func ActorRole(ctx context.Context) Role {
	if v, ok := ctx.Value(actorRoleKey{}).(Role); ok {
		return v
	}
	return ""
}

// WithActor injects subject id and role into the context.
func WithActor(ctx context.Context, actorID string, role Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, actorID)
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// RequestID retrieves the request correlation id from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ClientIP retrieves the caller's IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// Device retrieves the parsed client device description (browser/OS) from the
// context. Captured for the audit trail.
func Device(ctx context.Context) string {
	if v, ok := ctx.Value(deviceKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP and device description into a context.
func WithClientMetadata(ctx context.Context, clientIP, device string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, deviceKey{}, device)
}

// Now retrieves the request-scoped time from context. Falls back to time.Now()
// for non-HTTP contexts (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context. Tests use this to make
// transition timestamps deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
