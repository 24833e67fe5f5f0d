// Package ctxkeys defines the scoped per-request context values passed to a
// handler during dispatch: the process id and the optional callback URL.
// Handlers that spawn child work must propagate the context explicitly;
// neither value is ambient.
package ctxkeys

import "context"

type contextKey string

const (
	processIDKey   contextKey = "process_id"
	callbackURLKey contextKey = "callback_url"
)

// WithProcessID attaches the process id to ctx.
func WithProcessID(ctx context.Context, processID string) context.Context {
	return context.WithValue(ctx, processIDKey, processID)
}

// ProcessID retrieves the process id attached to ctx, if any.
func ProcessID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(processIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithCallbackURL attaches the callback URL to ctx.
func WithCallbackURL(ctx context.Context, callbackURL string) context.Context {
	return context.WithValue(ctx, callbackURLKey, callbackURL)
}

// CallbackURL retrieves the callback URL attached to ctx, if any.
func CallbackURL(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackURLKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
