package capture

// ports.go declares the collaborators a Session drives. Implementations live
// in sub-packages (remote, serial) and in tests; the session never touches a
// device except through these interfaces.

import (
	"context"
	"time"
)

// Device describes one capture device offered by a Decoder.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Region is the decode area inside the viewport, in pixels.
type Region struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OpenConfig is passed to Decoder.Open.
type OpenConfig struct {
	FrameRate    int     `json:"fps"`
	DecodeRegion Region  `json:"qrbox"`
	AspectRatio  float64 `json:"aspectRatio"`
}

// DefaultOpenConfig matches the scanner viewport: 10 fps and a decode box
// smaller than the 500px-wide preview.
var DefaultOpenConfig = OpenConfig{
	FrameRate:    10,
	DecodeRegion: Region{Width: 280, Height: 200},
	AspectRatio:  1.4,
}

// DecodeFunc receives decoded candidates. It may be called from any
// goroutine, any number of times, including after Stop.
type DecodeFunc func(text string)

// Decoder is the frame-decoding capability.
type Decoder interface {
	// ListDevices enumerates capture devices.
	ListDevices(ctx context.Context) ([]Device, error)

	// Open starts streaming from deviceID and reports candidates to onDecode.
	Open(ctx context.Context, deviceID string, cfg OpenConfig, onDecode DecodeFunc) (Handle, error)
}

// Handle is an open decode stream.
type Handle interface {
	// Stop ends the stream. Implementations must tolerate repeated calls.
	Stop(ctx context.Context) error
}

// CapabilityHandle is implemented by handles that expose the underlying
// video track directly. When the open handle satisfies it, the session skips
// the separate media stream acquisition.
type CapabilityHandle interface {
	Handle
	VideoTrack() Track
}

// Constraints select a raw media stream.
type Constraints struct {
	FacingMode string `json:"facingMode,omitempty"`
}

// MediaSource acquires raw media streams for capability introspection.
type MediaSource interface {
	AcquireStream(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a raw media stream.
type Stream interface {
	Tracks() []Track
}

// TrackKind distinguishes audio and video tracks.
type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// Capabilities reports what a track can do.
type Capabilities struct {
	Torch bool `json:"torch"`
}

// Track is one track of a Stream.
type Track interface {
	Kind() TrackKind
	Capabilities() Capabilities
	ApplyTorch(ctx context.Context, on bool) error
	Stop()
}

// Environment describes where the session runs.
type Environment struct {
	Secure   bool `json:"secure"`
	Embedded bool `json:"embedded"`
}

// Feedback emits the success cues. Both calls are best-effort.
type Feedback interface {
	Beep(ctx context.Context, tone Tone) error
	Vibrate(ctx context.Context, d time.Duration) error
}

// Tone describes the success beep.
type Tone struct {
	FrequencyHz int           `json:"frequencyHz"`
	Gain        float64       `json:"gain"`
	Duration    time.Duration `json:"-"`
}

// SuccessTone is a short 1 kHz sine beep.
var SuccessTone = Tone{FrequencyHz: 1000, Gain: 0.3, Duration: 100 * time.Millisecond}

// SuccessVibration is the haptic pulse length.
const SuccessVibration = 200 * time.Millisecond
