// Package serial implements the capture decoder for line-oriented hardware
// barcode scanners (USB CDC-ACM and HID-POS devices exposed as character
// devices). Each newline-terminated line read from the device is a decoded
// candidate.
package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JonMunkholm/shelfscan/internal/capture"
)

// DefaultGlob matches stable by-id names of USB serial devices on Linux.
const DefaultGlob = "/dev/serial/by-id/*"

// Scanner enumerates and opens serial scanners.
type Scanner struct {
	glob string
	log  *slog.Logger
}

// New returns a Scanner for devices matching glob.
func New(glob string, logger *slog.Logger) *Scanner {
	if glob == "" {
		glob = DefaultGlob
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{glob: glob, log: logger}
}

// Factory returns a capture.BackendFactory for serial sessions. The device
// is local to the server, so the browser environment checks do not apply.
func Factory(s *Scanner) capture.BackendFactory {
	return func(string, capture.OpenRequest, func(capture.Event)) (capture.Backend, error) {
		return capture.Backend{
			Decoder: s,
			Env:     &capture.Environment{Secure: true},
		}, nil
	}
}

// ListDevices returns every path matching the glob.
func (s *Scanner) ListDevices(ctx context.Context) ([]capture.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(s.glob)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", s.glob, err)
	}
	devices := make([]capture.Device, 0, len(paths))
	for _, p := range paths {
		devices = append(devices, capture.Device{ID: p, Label: filepath.Base(p)})
	}
	return devices, nil
}

// Open opens the device and starts reading lines from it. The frame rate
// and decode region of cfg have no meaning for line devices.
func (s *Scanner) Open(ctx context.Context, deviceID string, _ capture.OpenConfig, onDecode capture.DecodeFunc) (capture.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(deviceID, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	h := &handle{
		file: f,
		done: make(chan struct{}),
		log:  s.log.With("device", deviceID),
	}
	go h.read(onDecode)
	return h, nil
}

type handle struct {
	file *os.File
	done chan struct{}
	log  *slog.Logger

	// dispatching is set while onDecode runs on the reader goroutine.
	dispatching atomic.Bool

	stopOnce sync.Once
	stopErr  error
}

func (h *handle) read(onDecode capture.DecodeFunc) {
	defer close(h.done)

	sc := bufio.NewScanner(h.file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		h.dispatching.Store(true)
		onDecode(line)
		h.dispatching.Store(false)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		h.log.Warn("serial scanner read failed", "error", err)
	}
}

// Stop closes the device and waits for the reader to exit. A session stops
// the handle from inside onDecode, on the reader goroutine itself; the
// reader then exits as soon as the callback returns, so Stop does not wait.
func (h *handle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		if err := h.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			h.stopErr = fmt.Errorf("close serial device: %w", err)
		}
	})

	if h.dispatching.Load() {
		return h.stopErr
	}

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.stopErr
}
