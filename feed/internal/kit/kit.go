// CLAUDE:SUMMARY Transport-neutral endpoints for the feed surfaces: Endpoint, Middleware, Chain, request logging, context keys.
// Package kit lets the HTTP and MCP surfaces share one handler shape and
// one logging middleware.
package kit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Endpoint handles a decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares, the first one outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call of the named operation with its transport,
// request ID and duration. Failures are logged at Warn.
func Logging(logger *slog.Logger, op string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, "req_"+uuid.NewString())
			}
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("kit: call failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("kit: call", attrs...)
			}
			return resp, err
		}
	}
}

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	RequestIDKey contextKey = "kit_request_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
