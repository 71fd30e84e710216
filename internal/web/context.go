package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/shelfscan/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, core.ClientInfo{
		IPAddress: r.RemoteAddr, // Already processed by TrustedRealIP
		UserAgent: r.Header.Get("User-Agent"),
	})
}
