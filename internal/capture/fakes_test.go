package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeHandle struct {
	stops   atomic.Int32
	stopErr error
	track   Track
}

func (h *fakeHandle) Stop(context.Context) error {
	h.stops.Add(1)
	return h.stopErr
}

type capHandle struct {
	*fakeHandle
}

func (h capHandle) VideoTrack() Track { return h.track }

type fakeDecoder struct {
	devices []Device
	listErr error
	openErr error
	// gate, when set, blocks Open until closed or ctx is done.
	gate   chan struct{}
	handle Handle

	mu        sync.Mutex
	listCalls int
	openCalls int
	openedID  string
	openCfg   OpenConfig
	onDecode  DecodeFunc
}

func (d *fakeDecoder) ListDevices(context.Context) ([]Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listCalls++
	return d.devices, d.listErr
}

func (d *fakeDecoder) Open(ctx context.Context, id string, cfg OpenConfig, onDecode DecodeFunc) (Handle, error) {
	d.mu.Lock()
	d.openCalls++
	d.openedID = id
	d.openCfg = cfg
	d.onDecode = onDecode
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == nil {
		d.handle = &fakeHandle{}
	}
	return d.handle, nil
}

func (d *fakeDecoder) decode(text string) {
	d.mu.Lock()
	fn := d.onDecode
	d.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (d *fakeDecoder) calls() (list, open int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listCalls, d.openCalls
}

type fakeTrack struct {
	torch    bool
	applyErr error

	mu      sync.Mutex
	applied []bool
	stops   int
}

func (t *fakeTrack) Kind() TrackKind            { return KindVideo }
func (t *fakeTrack) Capabilities() Capabilities { return Capabilities{Torch: t.torch} }

func (t *fakeTrack) ApplyTorch(_ context.Context, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.applyErr != nil {
		return t.applyErr
	}
	t.applied = append(t.applied, on)
	return nil
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeStream struct {
	tracks []Track
}

func (s *fakeStream) Tracks() []Track { return s.tracks }

type fakeMedia struct {
	stream Stream
	err    error
	calls  atomic.Int32
}

func (m *fakeMedia) AcquireStream(context.Context, Constraints) (Stream, error) {
	m.calls.Add(1)
	return m.stream, m.err
}

type fakeFeedback struct {
	beeps    atomic.Int32
	vibrates atomic.Int32
	panicky  bool
	failing  bool
}

func (f *fakeFeedback) Beep(context.Context, Tone) error {
	f.beeps.Add(1)
	if f.panicky {
		panic("audio context unavailable")
	}
	if f.failing {
		return errors.New("no audio output")
	}
	return nil
}

func (f *fakeFeedback) Vibrate(context.Context, time.Duration) error {
	f.vibrates.Add(1)
	if f.failing {
		return errors.New("vibration unsupported")
	}
	return nil
}

// recorder collects OnScanSuccess and OnClose calls.
type recorder struct {
	mu      sync.Mutex
	results []string
	closes  int
}

func (r *recorder) success(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, code)
}

func (r *recorder) closed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
}

func (r *recorder) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...), r.closes
}

var secureEnv = Environment{Secure: true}
