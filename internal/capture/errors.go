package capture

// errors.go defines the failure taxonomy for capture sessions.
//
// Every device-access failure is converted to a Failure carrying one of the
// categories below. Each category has a fixed user-facing message and a code
// for support reference:
//
//	CAM001 InsecureContext        camera requires HTTPS
//	CAM002 EmbeddedContext        page is embedded in a frame
//	CAM003 PermissionDenied       camera access blocked
//	CAM004 NoDeviceFound          no camera on the device
//	CAM005 DeviceUnavailable      camera busy or unreadable
//	CAM006 OverconstrainedRequest requested settings not supported
//	CAM007 UnsupportedContext     camera not supported by the client
//	CAM008 StartTimeout           camera did not respond in time
//	CAM000 UnknownStartFailure    anything else, carries the original text

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Sentinel errors returned by Session methods.
var (
	ErrSessionClosed    = errors.New("capture session closed")
	ErrStartInProgress  = errors.New("capture start already in progress")
	ErrInvalidState     = errors.New("operation not valid in current capture state")
	ErrEmptyManualInput = errors.New("manual barcode input is empty")
	ErrAlreadyEmitted   = errors.New("capture session already produced a result")
)

// Category classifies a capture failure.
type Category string

const (
	CategoryInsecureContext        Category = "insecure_context"
	CategoryEmbeddedContext        Category = "embedded_context"
	CategoryPermissionDenied       Category = "permission_denied"
	CategoryNoDeviceFound          Category = "no_device_found"
	CategoryDeviceUnavailable      Category = "device_unavailable"
	CategoryOverconstrainedRequest Category = "overconstrained_request"
	CategoryUnsupportedContext     Category = "unsupported_context"
	CategoryStartTimeout           Category = "start_timeout"
	CategoryUnknownStartFailure    Category = "unknown_start_failure"
)

type categoryInfo struct {
	code    string
	message string
}

var categories = map[Category]categoryInfo{
	CategoryInsecureContext: {
		code:    "CAM001",
		message: "The camera requires a secure (HTTPS) connection. Use manual entry or open the published app.",
	},
	CategoryEmbeddedContext: {
		code:    "CAM002",
		message: "The camera may not work inside an embedded preview. Enter the barcode manually or open the app directly.",
	},
	CategoryPermissionDenied: {
		code:    "CAM003",
		message: "Camera access is blocked. Allow camera access in the browser settings and reload the page.",
	},
	CategoryNoDeviceFound: {
		code:    "CAM004",
		message: "No camera was found. Make sure the device has a camera.",
	},
	CategoryDeviceUnavailable: {
		code:    "CAM005",
		message: "The camera is in use by another application. Close it and try again.",
	},
	CategoryOverconstrainedRequest: {
		code:    "CAM006",
		message: "The camera does not support the required settings.",
	},
	CategoryUnsupportedContext: {
		code:    "CAM007",
		message: "The camera is not supported in this browser or requires HTTPS.",
	},
	CategoryStartTimeout: {
		code:    "CAM008",
		message: "The camera did not start in time. Try again or enter the barcode manually.",
	},
	CategoryUnknownStartFailure: {
		code:    "CAM000",
		message: "Could not start the camera",
	},
}

// Code returns the support code for the category.
func (c Category) Code() string {
	return categories[c].code
}

// Failure is the error state of a session.
type Failure struct {
	Category Category
	Message  string
	Err      error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure with the fixed message of its category.
// UnknownStartFailure appends the underlying error text.
func NewFailure(c Category, err error) *Failure {
	info, ok := categories[c]
	if !ok {
		c = CategoryUnknownStartFailure
		info = categories[c]
	}
	msg := info.message
	if c == CategoryUnknownStartFailure {
		detail := "unknown error"
		if err != nil && err.Error() != "" {
			detail = err.Error()
		}
		msg = fmt.Sprintf("%s: %s", info.message, detail)
	}
	return &Failure{Category: c, Message: msg, Err: err}
}

// DeviceError is a named platform error, e.g. "NotAllowedError" reported by a
// browser's media APIs.
type DeviceError struct {
	Name    string
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

var deviceErrorNames = map[string]Category{
	"NotAllowedError":       CategoryPermissionDenied,
	"PermissionDeniedError": CategoryPermissionDenied,
	"NotFoundError":         CategoryNoDeviceFound,
	"DevicesNotFoundError":  CategoryNoDeviceFound,
	"NotReadableError":      CategoryDeviceUnavailable,
	"TrackStartError":       CategoryDeviceUnavailable,
	"OverconstrainedError":  CategoryOverconstrainedRequest,
	"NotSupportedError":     CategoryUnsupportedContext,
}

// Classify converts an arbitrary device error to a Failure.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var de *DeviceError
	if errors.As(err, &de) {
		if c, ok := deviceErrorNames[de.Name]; ok {
			return NewFailure(c, err)
		}
		return NewFailure(CategoryUnknownStartFailure, errors.New(de.Message))
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewFailure(CategoryStartTimeout, err)
	case errors.Is(err, os.ErrPermission):
		return NewFailure(CategoryPermissionDenied, err)
	case errors.Is(err, os.ErrNotExist):
		return NewFailure(CategoryNoDeviceFound, err)
	case errors.Is(err, syscall.EBUSY):
		return NewFailure(CategoryDeviceUnavailable, err)
	}

	return NewFailure(CategoryUnknownStartFailure, err)
}
