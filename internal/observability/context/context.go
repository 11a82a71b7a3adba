package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type callerKey struct{}

// Caller identifies the authenticated API principal of a request.
type Caller struct {
	Role string
	Key  string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithCaller(ctx context.Context, role, key string) context.Context {
	return context.WithValue(ctx, callerKey{}, Caller{
		Role: strings.TrimSpace(role),
		Key:  strings.TrimSpace(key),
	})
}

// CallerFromContext returns the zero Caller for anonymous requests.
func CallerFromContext(ctx context.Context) Caller {
	if ctx == nil {
		return Caller{}
	}
	if v, ok := ctx.Value(callerKey{}).(Caller); ok {
		return v
	}
	return Caller{}
}
