package web

// This file contains shared utilities and helper functions used across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shelfscan/internal/capture"
)

// MaxJSONBodySize is the maximum accepted JSON request body (64KB).
const MaxJSONBodySize = 64 * 1024

// decodeJSON reads a JSON object from the request body into v. An empty body
// leaves v untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		default:
			return fmt.Errorf("%w: %v", errInvalidBody, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errInvalidBody)
	}
	return nil
}

// requestEnvironment derives the capture environment of the page that made
// r. The connection is secure over TLS, behind a proxy that terminated TLS,
// or when the client itself is on this machine. The Host header is client
// supplied and never counts. The page is embedded when loaded in a frame.
func requestEnvironment(r *http.Request) capture.Environment {
	secure := r.TLS != nil ||
		strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
		isLoopbackAddr(r.RemoteAddr)

	return capture.Environment{
		Secure:   secure,
		Embedded: r.Header.Get("Sec-Fetch-Dest") == "iframe",
	}
}

// isLoopbackAddr reports whether addr, an IP with optional port as left in
// RemoteAddr by TrustedRealIP, is a loopback address.
func isLoopbackAddr(addr string) bool {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		addr = h
	}
	ip := net.ParseIP(strings.Trim(addr, "[]"))
	return ip != nil && ip.IsLoopback()
}
