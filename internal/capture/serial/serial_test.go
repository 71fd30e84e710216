package serial

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
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

func writeDevice(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestScanner_ListDevices(t *testing.T) {
	dir := t.TempDir()
	writeDevice(t, dir, "usb-Honeywell_1900-if00", "")
	writeDevice(t, dir, "usb-Zebra_DS2208-if00", "")

	s := New(filepath.Join(dir, "usb-*"), nil)
	devices, err := s.ListDevices(context.Background())

	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "usb-Honeywell_1900-if00", devices[0].Label)
	assert.Equal(t, filepath.Join(dir, "usb-Honeywell_1900-if00"), devices[0].ID)
}

func TestScanner_ListDevicesEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "*"), nil)

	devices, err := s.ListDevices(context.Background())

	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestScanner_OpenReadsLines(t *testing.T) {
	path := writeDevice(t, t.TempDir(), "scanner", "4607159730018\r\n\n  12345678 \n")
	s := New("", nil)

	var (
		mu    sync.Mutex
		lines []string
	)
	h, err := s.Open(context.Background(), path, capture.DefaultOpenConfig, func(text string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, text)
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, h.Stop(context.Background()))
	require.NoError(t, h.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"4607159730018", "12345678"}, lines)
}

func TestScanner_OpenMissingDevice(t *testing.T) {
	s := New("", nil)

	_, err := s.Open(context.Background(), filepath.Join(t.TempDir(), "gone"), capture.DefaultOpenConfig, func(string) {})

	require.Error(t, err)
	assert.Equal(t, capture.CategoryNoDeviceFound, capture.Classify(err).Category)
}

func TestFactory_NoDevicesFailsSession(t *testing.T) {
	backend, err := Factory(New(filepath.Join(t.TempDir(), "*"), nil))("id", capture.OpenRequest{}, nil)
	require.NoError(t, err)
	require.NotNil(t, backend.Env)
	assert.True(t, backend.Env.Secure)

	s := capture.NewSession(capture.Options{Decoder: backend.Decoder, Env: *backend.Env})
	defer s.Close(context.Background())

	err = s.Start(context.Background())

	var f *capture.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, capture.CategoryNoDeviceFound, f.Category)
	assert.True(t, s.Snapshot().ManualEntryAvailable)
}

// recordingScanner keeps the handle opened for a session.
type recordingScanner struct {
	*Scanner
	opened chan *handle
}

func (r recordingScanner) Open(ctx context.Context, deviceID string, cfg capture.OpenConfig, onDecode capture.DecodeFunc) (capture.Handle, error) {
	h, err := r.Scanner.Open(ctx, deviceID, cfg, onDecode)
	if err == nil {
		r.opened <- h.(*handle)
	}
	return h, err
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSession_SerialScanReleasesDevice(t *testing.T) {
	dir := t.TempDir()
	writeDevice(t, dir, "usb-Zebra_DS2208-if00", "4607159730018\n")

	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	dec := recordingScanner{Scanner: New(filepath.Join(dir, "usb-*"), logger), opened: make(chan *handle, 1)}

	results := make(chan string, 1)
	s := capture.NewSession(capture.Options{
		Decoder:       dec,
		Env:           capture.Environment{Secure: true},
		OpenTimeout:   2 * time.Second,
		Logger:        logger,
		OnScanSuccess: func(barcode string) { results <- barcode },
	})
	defer s.Close(context.Background())

	require.NoError(t, s.Start(context.Background()))
	h := <-dec.opened

	select {
	case barcode := <-results:
		assert.Equal(t, "4607159730018", barcode)
	case <-time.After(time.Second):
		t.Fatal("no barcode read")
	}

	select {
	case <-h.done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reader still running after the scan")
	}
	assert.Equal(t, capture.StatusSucceeded, s.Snapshot().Status)
	assert.NotContains(t, logs.String(), "failed to stop camera")

	var scanned string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, `msg="barcode scanned"`) {
			scanned = line
		}
	}
	assert.Contains(t, scanned, "device_id="+filepath.Join(dir, "usb-Zebra_DS2208-if00"))
	assert.NotContains(t, scanned, "source=camera")
}

func TestHandle_StopFromDecodeCallback(t *testing.T) {
	path := writeDevice(t, t.TempDir(), "scanner", "12345678\n")
	s := New("", nil)

	stopped := make(chan error, 1)
	var h capture.Handle
	opened := make(chan struct{})
	var err error
	h, err = s.Open(context.Background(), path, capture.DefaultOpenConfig, func(string) {
		<-opened
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		stopped <- h.Stop(ctx)
	})
	require.NoError(t, err)
	close(opened)

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop blocked inside the decode callback")
	}
	require.NoError(t, h.Stop(context.Background()))
}
