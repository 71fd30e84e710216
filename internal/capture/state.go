package capture

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusIdle Status = iota
	StatusStarting
	StatusScanning
	StatusSucceeded
	StatusManualEntry
	StatusFailed
	StatusClosed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusScanning:
		return "scanning"
	case StatusSucceeded:
		return "succeeded"
	case StatusManualEntry:
		return "manual_entry"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name for JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further result can come out of the session.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusClosed
}
