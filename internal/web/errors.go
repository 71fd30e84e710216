package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with a support code
//   - Formatted appropriately based on request type (HTMX, JSON, or HTML)
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusFor(err))
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered in appropriate format for the client

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shelfscan/internal/core"
	"github.com/JonMunkholm/shelfscan/internal/logging"
	"github.com/JonMunkholm/shelfscan/internal/web/templates"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errBodyTooLarge = errors.New("request body too large")
	errInvalidBody  = errors.New("invalid request body")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Error, Action)
// fields. Details lists field problems for validation failures.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Action  string        `json:"action,omitempty"`
	Code    string        `json:"code"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail is one invalid field.
type ErrorDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// statusByCode maps user-facing error codes to HTTP status codes.
// Unlisted codes are server errors.
var statusByCode = map[string]int{
	"VAL001":  http.StatusBadRequest,
	"VAL002":  http.StatusBadRequest,
	"VAL003":  http.StatusRequestEntityTooLarge,
	"EXP001":  http.StatusNotFound,
	"EXP002":  http.StatusBadRequest,
	"SCN001":  http.StatusNotFound,
	"SCN002":  http.StatusServiceUnavailable,
	"SCN003":  http.StatusConflict,
	"SCN004":  http.StatusConflict,
	"SCN005":  http.StatusBadRequest,
	"SCN006":  http.StatusConflict,
	"SCN007":  http.StatusConflict,
	"SCN008":  http.StatusBadRequest,
	"SCN009":  http.StatusConflict,
	"DB001":   http.StatusConflict,
	"DB008":   http.StatusServiceUnavailable,
	"REQ002":  http.StatusGatewayTimeout,
	"RATE001": http.StatusTooManyRequests,
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	if status, ok := statusByCode[core.MapError(err).Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	// Return user-friendly error based on request type
	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, statusCode)
	} else if wantsJSON(r) {
		respondErrorJSON(w, userMsg, validationDetails(err), statusCode)
	} else {
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// writeError writes a JSON error response without request logging, for
// middleware rejections.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	respondErrorJSON(w, core.MapError(err), nil, statusCode)
}

// validationDetails lists the field problems carried by err, if any.
func validationDetails(err error) []ErrorDetail {
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]ErrorDetail, 0, len(verrs))
	for _, v := range verrs {
		details = append(details, ErrorDetail{Path: v.Path, Message: v.Message})
	}
	return details
}

// fieldErrors indexes the field problems of err by path for form rendering.
func fieldErrors(err error) map[string]string {
	details := validationDetails(err)
	if len(details) == 0 {
		return nil
	}
	m := make(map[string]string, len(details))
	for _, d := range details {
		if _, seen := m[d.Path]; !seen {
			m[d.Path] = d.Message
		}
	}
	return m
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, details []ErrorDetail, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Details: details,
	})
}

// respondErrorHTML writes a plain text error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	contentType := r.Header.Get("Content-Type")

	// Check Accept header
	if strings.Contains(accept, "application/json") {
		return true
	}

	// Check if request is sending JSON
	if strings.Contains(contentType, "application/json") {
		return true
	}

	// API routes default to JSON
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}

	return false
}
