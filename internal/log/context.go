// SPDX-License-Identifier: MIT

// Package log provides structured logging utilities for playcore, built on
// zerolog. It carries causal correlation ids (descriptor id, scheduler pass
// id) through context so a single preload-to-ready chain reads as one story
// in the logs even though it crosses several components.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	descriptorIDKey ctxKey = "descriptor_id"
	passIDKey       ctxKey = "pass_id"
)

// ContextWithDescriptorID stores the descriptor id in the context.
func ContextWithDescriptorID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, descriptorIDKey, id)
}

// ContextWithPassID stores the scheduler-pass id in the context.
func ContextWithPassID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, passIDKey, id)
}

// DescriptorIDFromContext extracts the descriptor id, if present.
func DescriptorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(descriptorIDKey).(string); ok {
		return v
	}
	return ""
}

// PassIDFromContext extracts the scheduler-pass id, if present.
func PassIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(passIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger enriched with any correlation ids carried on
// ctx, derived from the supplied base logger.
func FromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	l := base
	if id := DescriptorIDFromContext(ctx); id != "" {
		l = l.With().Str("descriptor_id", id).Logger()
	}
	if id := PassIDFromContext(ctx); id != "" {
		l = l.With().Str("pass_id", id).Logger()
	}
	return l
}
