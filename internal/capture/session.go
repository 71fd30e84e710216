package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultOpenTimeout bounds every device call made while starting.
const DefaultOpenTimeout = 10 * time.Second

// Options configure a Session.
type Options struct {
	ID          string
	Decoder     Decoder
	Media       MediaSource // optional, used for torch introspection
	Env         Environment
	Feedback    Feedback // optional
	OpenConfig  OpenConfig
	OpenTimeout time.Duration
	Logger      *slog.Logger

	// OnScanSuccess receives the single result of the session.
	OnScanSuccess func(barcode string)
	// OnClose fires when the session is closed without a result.
	OnClose func()
	// OnEvent observes every published event.
	OnEvent func(Event)
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID                   string    `json:"id"`
	Status               Status    `json:"status"`
	HasTorch             bool      `json:"hasTorch"`
	TorchOn              bool      `json:"torchOn"`
	ErrorMessage         *string   `json:"errorMessage,omitempty"`
	ErrorCode            string    `json:"errorCode,omitempty"`
	ErrorCategory        Category  `json:"errorCategory,omitempty"`
	HasEmittedResult     bool      `json:"hasEmittedResult"`
	Barcode              string    `json:"barcode,omitempty"`
	DeviceID             string    `json:"deviceId,omitempty"`
	ManualEntryAvailable bool      `json:"manualEntryAvailable"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Session acquires one barcode, from a live decoder or from manual entry.
//
// All transitions are serialized by mu. Device calls run without the lock;
// their completions are checked against the current status and start
// attempt, so anything arriving after the session moved on is discarded and
// any handle it carries is stopped.
type Session struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	status    Status
	attempt   uint64
	acquiring bool
	failure   *Failure
	emitted   bool
	result    string
	deviceID  string
	handle    Handle
	stream    Stream
	track     Track
	hasTorch  bool
	torchOn   bool
	updatedAt time.Time
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.OpenConfig == (OpenConfig{}) {
		opts.OpenConfig = DefaultOpenConfig
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ID != "" {
		logger = logger.With("session_id", opts.ID)
	}
	return &Session{
		opts:      opts,
		log:       logger,
		status:    StatusIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier given in Options.
func (s *Session) ID() string {
	return s.opts.ID
}

// Start runs the Starting sequence. It returns nil once the session is
// scanning, the *Failure when it lands in Failed, or a sentinel error when
// the session was not idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusIdle:
	case StatusStarting:
		s.mu.Unlock()
		return ErrStartInProgress
	case StatusClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	default:
		s.mu.Unlock()
		return ErrInvalidState
	}
	attempt := s.beginLocked()
	s.mu.Unlock()

	s.publishState()
	return s.start(ctx, attempt)
}

func (s *Session) beginLocked() uint64 {
	s.attempt++
	s.status = StatusStarting
	s.acquiring = true
	s.failure = nil
	s.touchLocked()
	return s.attempt
}

func (s *Session) start(ctx context.Context, attempt uint64) error {
	defer func() {
		s.mu.Lock()
		if s.attempt == attempt {
			s.acquiring = false
		}
		s.mu.Unlock()
	}()

	if !s.opts.Env.Secure {
		return s.fail(attempt, NewFailure(CategoryInsecureContext, nil))
	}
	if s.opts.Env.Embedded {
		return s.fail(attempt, NewFailure(CategoryEmbeddedContext, nil))
	}

	listCtx, cancel := s.deviceContext(ctx)
	devices, err := s.opts.Decoder.ListDevices(listCtx)
	cancel()
	if err != nil {
		return s.fail(attempt, Classify(err))
	}
	if len(devices) == 0 {
		return s.fail(attempt, NewFailure(CategoryNoDeviceFound, nil))
	}
	device := SelectDevice(devices)

	openCtx, cancel := s.deviceContext(ctx)
	handle, err := s.opts.Decoder.Open(openCtx, device.ID, s.opts.OpenConfig, func(text string) {
		s.handleDecode(attempt, text)
	})
	cancel()
	if err != nil {
		return s.fail(attempt, Classify(err))
	}

	s.mu.Lock()
	if s.status != StatusStarting || s.attempt != attempt {
		status := s.status
		s.mu.Unlock()
		s.log.Debug("discarding late camera open", "device_id", device.ID, "status", status)
		s.release(handle, nil)
		if status == StatusClosed {
			return ErrSessionClosed
		}
		return ErrInvalidState
	}
	s.handle = handle
	s.deviceID = device.ID
	s.status = StatusScanning
	s.touchLocked()
	s.mu.Unlock()

	s.log.Info("camera started", "device_id", device.ID, "label", device.Label)
	s.publishState()

	s.detectTorch(ctx, attempt, handle)
	return nil
}

// detectTorch finds the video track and records torch capability. A failed
// lookup leaves the session scanning without a torch.
func (s *Session) detectTorch(ctx context.Context, attempt uint64, handle Handle) {
	var (
		track  Track
		stream Stream
	)
	if ch, ok := handle.(CapabilityHandle); ok {
		track = ch.VideoTrack()
	} else if s.opts.Media != nil {
		mediaCtx, cancel := s.deviceContext(ctx)
		st, err := s.opts.Media.AcquireStream(mediaCtx, Constraints{FacingMode: "environment"})
		cancel()
		if err != nil {
			s.log.Warn("torch capability check failed", "error", err)
			return
		}
		stream = st
		track = videoTrack(st)
	}

	torch := track != nil && track.Capabilities().Torch

	s.mu.Lock()
	if s.status != StatusScanning || s.attempt != attempt {
		s.mu.Unlock()
		releaseStream(stream)
		return
	}
	s.stream = stream
	s.track = track
	s.hasTorch = torch
	s.mu.Unlock()

	if torch {
		s.publishState()
	}
}

func (s *Session) fail(attempt uint64, f *Failure) error {
	s.mu.Lock()
	if s.status != StatusStarting || s.attempt != attempt {
		s.mu.Unlock()
		s.log.Debug("discarding late start failure", "category", f.Category)
		return f
	}
	s.status = StatusFailed
	s.failure = f
	s.touchLocked()
	s.mu.Unlock()

	s.log.Warn("camera start failed",
		"category", f.Category,
		"code", f.Category.Code(),
		"error", f.Err,
	)
	s.publishState()
	return f
}

func (s *Session) handleDecode(attempt uint64, text string) {
	s.mu.Lock()
	if s.status != StatusScanning || s.attempt != attempt || s.emitted {
		s.mu.Unlock()
		return
	}
	s.emitted = true
	s.result = text
	s.status = StatusSucceeded
	deviceID := s.deviceID
	handle, stream := s.takeResourcesLocked()
	s.touchLocked()
	s.mu.Unlock()

	s.log.Info("barcode scanned", "source", "device", "device_id", deviceID)
	s.deliver(text)
	s.release(handle, stream)
}

// RequestManualEntry switches to keyboard entry, stopping any live camera.
func (s *Session) RequestManualEntry(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusManualEntry:
		s.mu.Unlock()
		return nil
	case StatusClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StatusSucceeded:
		s.mu.Unlock()
		return ErrAlreadyEmitted
	}
	s.status = StatusManualEntry
	handle, stream := s.takeResourcesLocked()
	s.touchLocked()
	s.mu.Unlock()

	s.releaseCtx(ctx, handle, stream)
	s.publishState()
	return nil
}

// CanSubmitManual reports whether input would be accepted by SubmitManual.
func CanSubmitManual(input string) bool {
	return strings.TrimSpace(input) != ""
}

// SubmitManual emits trimmed keyboard input as the session result.
func (s *Session) SubmitManual(ctx context.Context, input string) error {
	code := strings.TrimSpace(input)
	if code == "" {
		return ErrEmptyManualInput
	}

	s.mu.Lock()
	switch {
	case s.status == StatusClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.emitted:
		s.mu.Unlock()
		return ErrAlreadyEmitted
	case s.status != StatusManualEntry:
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.emitted = true
	s.result = code
	s.status = StatusSucceeded
	handle, stream := s.takeResourcesLocked()
	s.touchLocked()
	s.mu.Unlock()

	s.log.Info("barcode entered", "source", "manual")
	s.deliver(code)
	s.releaseCtx(ctx, handle, stream)
	return nil
}

// CancelManual leaves manual entry. Without a prior error the camera is
// restarted; otherwise the session returns to the error screen.
func (s *Session) CancelManual(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.status == StatusClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.status != StatusManualEntry:
		s.mu.Unlock()
		return ErrInvalidState
	case s.failure != nil:
		s.status = StatusFailed
		s.touchLocked()
		s.mu.Unlock()
		s.publishState()
		return nil
	case s.acquiring:
		s.mu.Unlock()
		return ErrStartInProgress
	}
	attempt := s.beginLocked()
	s.mu.Unlock()

	s.publishState()
	return s.start(ctx, attempt)
}

// ToggleTorch inverts the torch on the active video track and returns the
// resulting torch state. Without a torch it does nothing.
func (s *Session) ToggleTorch(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.status != StatusScanning || !s.hasTorch || s.track == nil {
		on := s.torchOn
		s.mu.Unlock()
		return on, nil
	}
	track := s.track
	want := !s.torchOn
	attempt := s.attempt
	s.mu.Unlock()

	if err := track.ApplyTorch(ctx, want); err != nil {
		s.log.Warn("torch toggle failed", "want", want, "error", err)
		s.mu.Lock()
		on := s.torchOn
		s.mu.Unlock()
		return on, fmt.Errorf("toggle torch: %w", err)
	}

	s.mu.Lock()
	if s.status == StatusScanning && s.attempt == attempt && s.track == track {
		s.torchOn = want
		s.touchLocked()
	}
	on := s.torchOn
	s.mu.Unlock()

	s.publishState()
	return on, nil
}

// Close ends the session from any state. It stops the camera handle, then
// releases the media stream tracks. Calling it again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusClosed
	emitted := s.emitted
	handle, stream := s.takeResourcesLocked()
	s.touchLocked()
	s.mu.Unlock()

	s.releaseCtx(ctx, handle, stream)
	if !emitted && s.opts.OnClose != nil {
		s.opts.OnClose()
	}
	s.log.Debug("capture session closed", "emitted", emitted)
	s.publishState()
	return nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the emitted barcode, if any.
func (s *Session) Result() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.emitted
}

// LastActivity returns when the session last changed.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:               s.opts.ID,
		Status:           s.status,
		HasTorch:         s.hasTorch,
		TorchOn:          s.torchOn,
		HasEmittedResult: s.emitted,
		Barcode:          s.result,
		DeviceID:         s.deviceID,
		UpdatedAt:        s.updatedAt,
	}
	if s.failure != nil {
		msg := s.failure.Message
		snap.ErrorMessage = &msg
		snap.ErrorCode = s.failure.Category.Code()
		snap.ErrorCategory = s.failure.Category
	}
	snap.ManualEntryAvailable = !s.status.Terminal() && s.status != StatusManualEntry
	return snap
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}

// takeResourcesLocked moves the hardware handles out of the session.
func (s *Session) takeResourcesLocked() (Handle, Stream) {
	handle, stream := s.handle, s.stream
	s.handle = nil
	s.stream = nil
	s.track = nil
	s.torchOn = false
	return handle, stream
}

func (s *Session) deliver(barcode string) {
	s.fireFeedback()
	if s.opts.OnScanSuccess != nil {
		s.opts.OnScanSuccess(barcode)
	}
	s.publish(Event{Type: EventResult, Barcode: barcode})
	s.publishState()
}

func (s *Session) fireFeedback() {
	fb := s.opts.Feedback
	if fb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.bestEffort("beep", func() error { return fb.Beep(ctx, SuccessTone) })
	s.bestEffort("vibrate", func() error { return fb.Vibrate(ctx, SuccessVibration) })
}

func (s *Session) bestEffort(cue string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("feedback panicked", "cue", cue, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("feedback failed", "cue", cue, "error", err)
	}
}

// release stops resources on a fresh context, for paths that have no caller
// context (decode callbacks, late opens).
func (s *Session) release(handle Handle, stream Stream) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.OpenTimeout)
	defer cancel()
	s.releaseCtx(ctx, handle, stream)
}

func (s *Session) releaseCtx(ctx context.Context, handle Handle, stream Stream) {
	if handle != nil {
		if err := handle.Stop(ctx); err != nil {
			s.log.Warn("failed to stop camera", "error", err)
		}
	}
	releaseStream(stream)
}

func (s *Session) deviceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OpenTimeout)
}

func (s *Session) publishState() {
	snap := s.Snapshot()
	s.publish(Event{Type: EventState, Snapshot: &snap})
}

func (s *Session) publish(ev Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}

// SelectDevice prefers a rear-facing camera, falling back to the first.
func SelectDevice(devices []Device) Device {
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Label), "back") {
			return d
		}
	}
	return devices[0]
}

func videoTrack(st Stream) Track {
	if st == nil {
		return nil
	}
	for _, t := range st.Tracks() {
		if t.Kind() == KindVideo {
			return t
		}
	}
	return nil
}

func releaseStream(st Stream) {
	if st == nil {
		return
	}
	for _, t := range st.Tracks() {
		t.Stop()
	}
}
