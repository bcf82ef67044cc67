package common

import "context"

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeySolicitudID contextKey = "solicitud_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSolicitudID adds the owning reimbursement request ID to the context
func WithSolicitudID(ctx context.Context, solicitudID string) context.Context {
	return context.WithValue(ctx, ContextKeySolicitudID, solicitudID)
}

// SolicitudIDFromContext extracts the reimbursement request ID from context
func SolicitudIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeySolicitudID).(string); ok {
		return id
	}
	return ""
}
