package logger

import "context"

type requestIDKey struct{}

// WithRequestID stamps the assessment request ID onto the context so every
// log line emitted under it can be correlated to one run.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID from the context, or "" when unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
