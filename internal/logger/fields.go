package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
const (
	FieldNodeID     = "node_id"
	FieldRunID      = "run_id"
	FieldComponent  = "component"
	FieldSource     = "source"
	FieldSourceType = "source_type"
	FieldColumn     = "column"
	FieldRowKey     = "row_key"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldPath       = "path"
	FieldTrigger    = "trigger"
	FieldDriver     = "driver"
)

type contextKey string

const (
	nodeIDKey contextKey = "logger_node_id"
	runIDKey  contextKey = "logger_run_id"
)

// WithNodeID adds a node ID to the context for logging
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, nodeIDKey, nodeID)
}

// WithRunID adds a run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// FieldsFromContext extracts logging fields from context.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}
	if ctx == nil {
		return fields
	}
	if id, ok := ctx.Value(nodeIDKey).(string); ok && id != "" {
		fields = append(fields, FieldNodeID, id)
	}
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		fields = append(fields, FieldRunID, id)
	}
	return fields
}

// FromContext decorates base with the fields carried by ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
