package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithFields returns a copy of parent carrying fields that every
// XxxWithContext call adds to its entry.
func ContextWithFields(parent context.Context, fields ...zap.Field) context.Context {
	existing := FieldsFromContext(parent)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(parent, ctxKey{}, merged)
}

// FieldsFromContext returns the fields attached with ContextWithFields.
func FieldsFromContext(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}
