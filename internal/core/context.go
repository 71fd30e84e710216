package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client"

// ClientInfo identifies the caller of a request, for logging.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// ContextWithClient attaches caller details to ctx.
func ContextWithClient(ctx context.Context, c ClientInfo) context.Context {
	return context.WithValue(ctx, ctxKeyClient, c)
}

// ClientFromContext returns the caller details, or the zero value.
func ClientFromContext(ctx context.Context) ClientInfo {
	if c, ok := ctx.Value(ctxKeyClient).(ClientInfo); ok {
		return c
	}
	return ClientInfo{}
}
