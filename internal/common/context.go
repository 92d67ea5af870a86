package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const ContextKeyDocumentID contextKey = "document_id"

// WithDocumentID adds the document being extracted to the context
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, ContextKeyDocumentID, documentID)
}

// DocumentIDFromContext extracts the document ID from context
func DocumentIDFromContext(ctx context.Context) string {
	if documentID, ok := ctx.Value(ContextKeyDocumentID).(string); ok {
		return documentID
	}
	return ""
}
