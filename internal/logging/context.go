// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type idsKey struct{}

// traceIDs are the identifiers carried through a request or message.
type traceIDs struct {
	correlation string
	request     string
}

func idsFrom(ctx context.Context) traceIDs {
	ids, _ := ctx.Value(idsKey{}).(traceIDs)
	return ids
}

// GenerateCorrelationID returns a short random ID: the first 8 characters
// of a UUID.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID tags ctx with a correlation ID, keeping any request ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	ids := idsFrom(ctx)
	ids.correlation = id
	return context.WithValue(ctx, idsKey{}, ids)
}

// ContextWithNewCorrelationID tags ctx with a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).correlation
}

// ContextWithRequestID tags ctx with an HTTP request ID, keeping any correlation ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	ids := idsFrom(ctx)
	ids.request = id
	return context.WithValue(ctx, idsKey{}, ids)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).request
}

// Ctx returns the global logger carrying the IDs found in ctx.
//
//	logging.Ctx(ctx).Info().Msg("Payment applied")
func Ctx(ctx context.Context) *zerolog.Logger {
	ids := idsFrom(ctx)
	lc := With()
	if ids.correlation != "" {
		lc = lc.Str("correlation_id", ids.correlation)
	}
	if ids.request != "" {
		lc = lc.Str("request_id", ids.request)
	}
	l := lc.Logger()
	return &l
}

// WithComponent returns a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
