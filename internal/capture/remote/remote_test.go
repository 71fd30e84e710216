package remote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JonMunkholm/shelfscan/internal/capture"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type commandLog struct {
	mu       sync.Mutex
	commands []capture.Command
}

func (l *commandLog) publish(ev capture.Event) {
	if ev.Type != capture.EventCommand {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, *ev.Command)
}

func (l *commandLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.commands))
	for _, c := range l.commands {
		names = append(names, c.Name)
	}
	return names
}

// ackWhenOpened waits for the open command and answers it.
func ackWhenOpened(t *testing.T, c *Client, log *commandLog, ack Ack) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(log.names()) > 0
	}, time.Second, time.Millisecond)
	require.NoError(t, c.Acknowledge(ack))
}

func newSession(c *Client, results chan<- string) *capture.Session {
	return capture.NewSession(capture.Options{
		Decoder:       c,
		Env:           capture.Environment{Secure: true},
		OnScanSuccess: func(code string) { results <- code },
	})
}

func TestClient_StartDecodeStop(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "front", Label: "Front"}, {ID: "rear", Label: "Back Camera"}}, true, log.publish)
	results := make(chan string, 1)
	s := newSession(c, results)

	go ackWhenOpened(t, c, log, Ack{Status: StatusStarted})
	require.NoError(t, s.Start(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, capture.StatusScanning, snap.Status)
	assert.Equal(t, "rear", snap.DeviceID)
	assert.True(t, snap.HasTorch)

	on, err := s.ToggleTorch(context.Background())
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, c.Deliver("4607159730018"))
	assert.Equal(t, "4607159730018", <-results)

	assert.Equal(t, []string{"open", "torch", "stop"}, log.names())
	assert.ErrorIs(t, c.Deliver("again"), ErrNotStreaming)

	require.NoError(t, s.Close(context.Background()))
}

func TestClient_OpenCarriesConfig(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "cam"}}, false, log.publish)

	go ackWhenOpened(t, c, log, Ack{Status: StatusStarted})
	h, err := c.Open(context.Background(), "cam", capture.DefaultOpenConfig, func(string) {})
	require.NoError(t, err)
	defer h.Stop(context.Background())

	log.mu.Lock()
	cmd := log.commands[0]
	log.mu.Unlock()
	assert.Equal(t, "cam", cmd.DeviceID)
	require.NotNil(t, cmd.Config)
	assert.Equal(t, 10, cmd.Config.FrameRate)
	assert.Equal(t, 280, cmd.Config.DecodeRegion.Width)
}

func TestClient_ErrorAckIsClassified(t *testing.T) {
	tests := []struct {
		name string
		ack  Ack
		want capture.Category
	}{
		{"not allowed", Ack{Status: StatusError, Name: "NotAllowedError"}, capture.CategoryPermissionDenied},
		{"not readable", Ack{Status: StatusError, Name: "NotReadableError"}, capture.CategoryDeviceUnavailable},
		{"overconstrained", Ack{Status: StatusError, Name: "OverconstrainedError"}, capture.CategoryOverconstrainedRequest},
		{"unknown", Ack{Status: StatusError, Name: "WeirdError", Message: "lens on fire"}, capture.CategoryUnknownStartFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &commandLog{}
			c := New([]capture.Device{{ID: "cam"}}, false, log.publish)
			s := newSession(c, make(chan string, 1))
			defer s.Close(context.Background())

			go ackWhenOpened(t, c, log, tt.ack)
			err := s.Start(context.Background())

			var f *capture.Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.want, f.Category)
		})
	}
}

func TestClient_UnknownAckKeepsMessage(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "cam"}}, false, log.publish)
	s := newSession(c, make(chan string, 1))
	defer s.Close(context.Background())

	go ackWhenOpened(t, c, log, Ack{Status: StatusError, Name: "WeirdError", Message: "lens on fire"})
	require.Error(t, s.Start(context.Background()))

	snap := s.Snapshot()
	require.NotNil(t, snap.ErrorMessage)
	assert.Contains(t, *snap.ErrorMessage, "lens on fire")
}

func TestClient_AcknowledgeWithoutOpen(t *testing.T) {
	c := New(nil, false, nil)

	assert.ErrorIs(t, c.Acknowledge(Ack{Status: StatusStarted}), ErrNoPendingOpen)
}

func TestClient_CloseAbortsPendingOpen(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "cam"}}, false, log.publish)

	done := make(chan error, 1)
	go func() {
		_, err := c.Open(context.Background(), "cam", capture.DefaultOpenConfig, func(string) {})
		done <- err
	}()

	require.Eventually(t, func() bool { return len(log.names()) == 1 }, time.Second, time.Millisecond)
	c.Close()

	err := <-done
	var de *capture.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "AbortError", de.Name)

	_, err = c.ListDevices(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_AckReportsTorch(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "cam"}}, false, log.publish)
	results := make(chan string, 1)
	s := newSession(c, results)

	go ackWhenOpened(t, c, log, Ack{Status: StatusStarted, Torch: true})
	require.NoError(t, s.Start(context.Background()))

	assert.True(t, s.Snapshot().HasTorch)
	require.NoError(t, s.Close(context.Background()))
}

func TestClient_ReplayPendingOpen(t *testing.T) {
	log := &commandLog{}
	c := New([]capture.Device{{ID: "cam"}}, false, log.publish)
	assert.Empty(t, c.Replay())

	done := make(chan error, 1)
	go func() {
		_, err := c.Open(context.Background(), "cam", capture.DefaultOpenConfig, func(string) {})
		done <- err
	}()
	require.Eventually(t, func() bool { return len(log.names()) == 1 }, time.Second, time.Millisecond)

	replay := c.Replay()
	require.Len(t, replay, 1)
	assert.Equal(t, capture.EventCommand, replay[0].Type)
	assert.Equal(t, "open", replay[0].Command.Name)
	assert.Equal(t, "cam", replay[0].Command.DeviceID)

	require.NoError(t, c.Acknowledge(Ack{Status: StatusStarted}))
	require.NoError(t, <-done)
	assert.Empty(t, c.Replay())
	c.Close()
}

func TestClient_OpenTimesOut(t *testing.T) {
	c := New([]capture.Device{{ID: "cam"}}, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Open(ctx, "cam", capture.DefaultOpenConfig, func(string) {})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.Acknowledge(Ack{Status: StatusStarted}), ErrNoPendingOpen)
}

func TestFactory(t *testing.T) {
	backend, err := Factory("id", capture.OpenRequest{
		Devices: []capture.Device{{ID: "cam"}},
		Torch:   true,
	}, nil)
	require.NoError(t, err)

	client, ok := backend.Decoder.(*Client)
	require.True(t, ok)
	assert.Nil(t, backend.Env)
	require.NotNil(t, backend.Close)
	require.NotNil(t, backend.Replay)

	devices, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}
