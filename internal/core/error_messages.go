package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A product with this ID already exists
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//	DB008 - Locked: Database file is locked by another writer (sqlite)
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid product: One or more fields failed validation
//	VAL002 - Invalid body: Request body is not valid JSON
//	VAL003 - Body too large: Request body exceeds the size limit
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Nothing to export: The product list is empty
//	EXP002 - Unknown format: Export format is not csv or json
//
// # Scan Session Errors (SCN001-SCN099)
//
//	SCN001 - Session not found: Unknown or expired scan session
//	SCN002 - System busy: Too many scan sessions open
//	SCN003 - Session closed: Scan session was already closed
//	SCN004 - Already scanned: Session already produced a barcode
//	SCN005 - Empty input: Manual barcode input is blank
//	SCN006 - Wrong state: Action not available in the current session state
//	SCN007 - Starting: The camera is still starting
//	SCN008 - Unknown source: Capture source is not configured
//	SCN009 - Not streaming: The remote camera has no pending open or stream
//
// # Camera Errors (CAM000-CAM099)
//
// Camera start failures carry their own code (see package capture) and are
// passed through unchanged, with manual entry suggested as the action.
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/shelfscan/internal/capture"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation and export
	// =========================================================================
	{
		pattern: "invalid product",
		msg: UserMessage{
			Message: "Some product fields are invalid",
			Action:  "Correct the highlighted fields and save again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "Request body is not valid JSON",
			Action:  "Send a JSON object with the documented fields",
			Code:    "VAL002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Request body is too large",
			Action:  "Send a smaller request",
			Code:    "VAL003",
		},
	},
	{
		pattern: "nothing to export",
		msg: UserMessage{
			Message: "There are no products to export",
			Action:  "Add products before exporting",
			Code:    "EXP001",
		},
	},
	{
		pattern: "unknown export format",
		msg: UserMessage{
			Message: "Unknown export format",
			Action:  "Choose csv or json",
			Code:    "EXP002",
		},
	},

	// =========================================================================
	// Scan sessions
	// =========================================================================
	{
		pattern: "capture session not found",
		msg: UserMessage{
			Message: "Scan session not found",
			Action:  "The session may have expired. Start a new scan",
			Code:    "SCN001",
		},
	},
	{
		pattern: "too many capture sessions",
		msg: UserMessage{
			Message: "Too many scans are in progress",
			Action:  "Please wait a moment and try again",
			Code:    "SCN002",
		},
	},
	{
		pattern: "capture session closed",
		msg: UserMessage{
			Message: "Scan session was closed",
			Action:  "Start a new scan",
			Code:    "SCN003",
		},
	},
	{
		pattern: "already produced a result",
		msg: UserMessage{
			Message: "This scan already produced a barcode",
			Action:  "Start a new scan for the next product",
			Code:    "SCN004",
		},
	},
	{
		pattern: "manual barcode input is empty",
		msg: UserMessage{
			Message: "Barcode is empty",
			Action:  "Type the digits printed under the barcode",
			Code:    "SCN005",
		},
	},
	{
		pattern: "not valid in current capture state",
		msg: UserMessage{
			Message: "This action is not available right now",
			Action:  "Refresh the scanner and try again",
			Code:    "SCN006",
		},
	},
	{
		pattern: "capture start already in progress",
		msg: UserMessage{
			Message: "The camera is still starting",
			Action:  "Wait for the camera to start",
			Code:    "SCN007",
		},
	},
	{
		pattern: "unknown capture source",
		msg: UserMessage{
			Message: "Unknown scanner type",
			Action:  "Use the camera or a configured hardware scanner",
			Code:    "SCN008",
		},
	},
	{
		pattern: "no camera open is awaiting",
		msg: UserMessage{
			Message: "The camera is not waiting for a response",
			Action:  "Refresh the scanner and try again",
			Code:    "SCN009",
		},
	},
	{
		pattern: "remote camera is not streaming",
		msg: UserMessage{
			Message: "The camera is not streaming",
			Action:  "Refresh the scanner and try again",
			Code:    "SCN009",
		},
	},

	// =========================================================================
	// Database
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A product with this ID already exists",
			Action:  "Save the product again",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database is busy",
			Action:  "Please try again",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// Request lifecycle
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Check your connection and try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// manualEntryAction accompanies every camera failure.
const manualEntryAction = "Enter the barcode manually"

// MapError converts a technical error to a user-friendly message.
// Camera failures keep their own message and code; other errors are matched
// against known patterns, falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var f *capture.Failure
	if errors.As(err, &f) {
		return UserMessage{
			Message: f.Message,
			Action:  manualEntryAction,
			Code:    f.Category.Code(),
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
