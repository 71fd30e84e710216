package capture

import (
	"context"
	"time"
)

// EventType identifies what an Event carries.
type EventType string

const (
	EventState   EventType = "state"   // Snapshot changed
	EventResult  EventType = "result"  // barcode emitted, once per session
	EventCue     EventType = "cue"     // success feedback for the client to play
	EventCommand EventType = "command" // device instruction for a remote client
)

// Event is published to session observers.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Barcode  string    `json:"barcode,omitempty"`
	Cue      *Cue      `json:"cue,omitempty"`
	Command  *Command  `json:"command,omitempty"`
}

// Cue is a feedback instruction.
type Cue struct {
	Kind       string `json:"kind"` // "beep" or "vibrate"
	Tone       *Tone  `json:"tone,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Command instructs a remote client that owns the physical camera.
type Command struct {
	Name     string      `json:"name"` // "open", "stop", "torch"
	DeviceID string      `json:"deviceId,omitempty"`
	Config   *OpenConfig `json:"config,omitempty"`
	Torch    *bool       `json:"torch,omitempty"`
}

// CueFeedback implements Feedback by publishing cues as events, leaving the
// client to play them.
type CueFeedback struct {
	Publish func(Event)
}

// Beep publishes the success tone.
func (f CueFeedback) Beep(_ context.Context, tone Tone) error {
	if f.Publish == nil {
		return nil
	}
	t := tone
	f.Publish(Event{Type: EventCue, Cue: &Cue{Kind: "beep", Tone: &t, DurationMs: tone.Duration.Milliseconds()}})
	return nil
}

// Vibrate publishes the haptic pulse.
func (f CueFeedback) Vibrate(_ context.Context, d time.Duration) error {
	if f.Publish == nil {
		return nil
	}
	f.Publish(Event{Type: EventCue, Cue: &Cue{Kind: "vibrate", DurationMs: d.Milliseconds()}})
	return nil
}
