// Package remote implements the capture ports for a camera owned by a
// browser client.
//
// The client runs the frame decoder next to the camera. The server side of a
// session sends it commands as capture events ("open", "stop", "torch") and
// receives acknowledgements and decoded candidates back through the REST
// API. Open blocks until the client acknowledges or the context expires.
package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/shelfscan/internal/capture"
)

// Acknowledgement statuses.
const (
	StatusStarted = "started"
	StatusError   = "error"
)

var (
	ErrClientClosed  = errors.New("remote capture client closed")
	ErrNoPendingOpen = errors.New("no camera open is awaiting acknowledgement")
	ErrNotStreaming  = errors.New("remote camera is not streaming")
)

// Ack is the client's answer to an "open" command. On failure Name carries
// the platform error name, e.g. "NotAllowedError". Torch reports a torch
// capability discovered once the camera is running.
type Ack struct {
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
	Torch   bool   `json:"torch,omitempty"`
}

// Client is the server-side proxy of one browser camera.
type Client struct {
	devices []capture.Device
	torch   bool
	publish func(capture.Event)

	mu         sync.Mutex
	pending    chan Ack
	pendingCmd *capture.Command
	handle     *handle
	closed     bool
}

// New creates a client for the devices and torch capability the browser
// reported when opening the session.
func New(devices []capture.Device, torch bool, publish func(capture.Event)) *Client {
	if publish == nil {
		publish = func(capture.Event) {}
	}
	return &Client{
		devices: append([]capture.Device(nil), devices...),
		torch:   torch,
		publish: publish,
	}
}

// Backend adapts the client to capture.Manager.
func Backend(c *Client) capture.Backend {
	return capture.Backend{
		Decoder: c,
		Close:   c.Close,
		Replay:  c.Replay,
	}
}

// Factory is a capture.BackendFactory for remote sessions.
func Factory(_ string, req capture.OpenRequest, publish func(capture.Event)) (capture.Backend, error) {
	return Backend(New(req.Devices, req.Torch, publish)), nil
}

// ListDevices returns the devices reported by the browser.
func (c *Client) ListDevices(ctx context.Context) ([]capture.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	return append([]capture.Device(nil), c.devices...), nil
}

// Open asks the browser to start deviceID and waits for its answer.
func (c *Client) Open(ctx context.Context, deviceID string, cfg capture.OpenConfig, onDecode capture.DecodeFunc) (capture.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, capture.ErrStartInProgress
	}
	ch := make(chan Ack, 1)
	cmd := &capture.Command{Name: "open", DeviceID: deviceID, Config: &cfg}
	c.pending = ch
	c.pendingCmd = cmd
	c.mu.Unlock()

	c.publish(capture.Event{Type: capture.EventCommand, Command: cmd})

	select {
	case ack := <-ch:
		c.mu.Lock()
		defer c.mu.Unlock()
		c.pending = nil
		c.pendingCmd = nil
		if ack.Status != StatusStarted {
			return nil, &capture.DeviceError{Name: ack.Name, Message: ack.Message}
		}
		if ack.Torch {
			c.torch = true
		}
		h := &handle{client: c, deviceID: deviceID, onDecode: onDecode}
		c.handle = h
		return h, nil

	case <-ctx.Done():
		c.mu.Lock()
		if c.pending == ch {
			c.pending = nil
			c.pendingCmd = nil
		}
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Replay returns the open command still awaiting acknowledgement, so a
// browser that subscribes after it was published can act on it. The browser
// may see the command twice and must ignore a repeated open.
func (c *Client) Replay() []capture.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingCmd == nil || c.closed {
		return nil
	}
	cmd := *c.pendingCmd
	return []capture.Event{{Type: capture.EventCommand, Command: &cmd}}
}

// Acknowledge delivers the browser's answer to the pending open.
func (c *Client) Acknowledge(ack Ack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrNoPendingOpen
	}
	select {
	case c.pending <- ack:
		return nil
	default:
		return ErrNoPendingOpen
	}
}

// Deliver forwards a decoded candidate from the browser.
func (c *Client) Deliver(text string) error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return ErrNotStreaming
	}
	h.onDecode(text)
	return nil
}

// Close aborts a pending open and detaches the live handle.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.handle = nil
	if c.pending != nil {
		select {
		case c.pending <- Ack{Status: StatusError, Name: "AbortError", Message: "session closed"}:
		default:
		}
	}
}

type handle struct {
	client   *Client
	deviceID string
	onDecode capture.DecodeFunc
	stopOnce sync.Once
}

func (h *handle) Stop(context.Context) error {
	h.stopOnce.Do(func() {
		h.client.mu.Lock()
		if h.client.handle == h {
			h.client.handle = nil
		}
		h.client.mu.Unlock()
		h.client.publish(capture.Event{
			Type:    capture.EventCommand,
			Command: &capture.Command{Name: "stop", DeviceID: h.deviceID},
		})
	})
	return nil
}

// VideoTrack exposes the torch capability reported by the browser on the
// decode handle itself, so no second stream is acquired.
func (h *handle) VideoTrack() capture.Track {
	return &track{client: h.client, deviceID: h.deviceID}
}

type track struct {
	client   *Client
	deviceID string
}

func (t *track) Kind() capture.TrackKind { return capture.KindVideo }

func (t *track) Capabilities() capture.Capabilities {
	t.client.mu.Lock()
	defer t.client.mu.Unlock()
	return capture.Capabilities{Torch: t.client.torch}
}

func (t *track) ApplyTorch(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.client.mu.Lock()
	closed := t.client.closed
	t.client.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	t.client.publish(capture.Event{
		Type:    capture.EventCommand,
		Command: &capture.Command{Name: "torch", DeviceID: t.deviceID, Torch: &on},
	})
	return nil
}

func (t *track) Stop() {}
