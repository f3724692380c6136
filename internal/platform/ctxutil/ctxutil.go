// Package ctxutil carries request-scoped identity through context.Context.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type (
	actorKey     struct{}
	traceDataKey struct{}
)

// Actor is the authenticated party behind a request.
type Actor struct {
	PartyID uuid.UUID
	Role    string
}

// TraceData correlates log lines with a request and its trace.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return with(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	return get[*Actor](ctx, actorKey{})
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return with(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	return get[*TraceData](ctx, traceDataKey{})
}

func with(ctx context.Context, key, val any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, val)
}

func get[T any](ctx context.Context, key any) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}
