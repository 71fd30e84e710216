package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/shelfscan/internal/capture"
	"github.com/JonMunkholm/shelfscan/internal/capture/remote"
	"github.com/JonMunkholm/shelfscan/internal/logging"
)

// sseKeepAlive is how often an idle event stream sends a comment line.
const sseKeepAlive = 15 * time.Second

// errNotRemote is returned for device calls on sessions that are not driven
// by a browser camera.
var errNotRemote = fmt.Errorf("%w: session has no browser camera", remote.ErrNotStreaming)

// openScanSessionRequest is the body of POST /api/scan-sessions.
type openScanSessionRequest struct {
	Source   string           `json:"source"`
	Devices  []capture.Device `json:"devices"`
	Torch    bool             `json:"torch"`
	Embedded bool             `json:"embedded"`
}

// scanSessionResponse is a session snapshot with its open time.
type scanSessionResponse struct {
	capture.Snapshot
	CreatedAt time.Time `json:"createdAt"`
}

func sessionResponse(e *capture.Entry) scanSessionResponse {
	return scanSessionResponse{Snapshot: e.Session().Snapshot(), CreatedAt: e.Created()}
}

// entryFromRequest resolves the {sessionID} URL parameter.
func (s *Server) entryFromRequest(w http.ResponseWriter, r *http.Request) (*capture.Entry, bool) {
	entry, err := s.captures.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return entry, true
}

// remoteClient returns the browser camera proxy of a session.
func remoteClient(e *capture.Entry) (*remote.Client, error) {
	c, ok := e.Backend().Decoder.(*remote.Client)
	if !ok {
		return nil, errNotRemote
	}
	return c, nil
}

// handleCaptureStatus reports capture capacity and the configured sources.
func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": s.captures.Sources(),
		"limiter": s.captures.Status(),
	})
}

// handleOpenScanSession opens a capture session and starts it in the
// background. The browser environment is taken from the request.
func (s *Server) handleOpenScanSession(w http.ResponseWriter, r *http.Request) {
	var req openScanSessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if req.Source == "" {
		req.Source = "remote"
	}

	env := requestEnvironment(r)
	env.Embedded = env.Embedded || req.Embedded

	entry, err := s.captures.Open(r.Context(), capture.OpenRequest{
		Source:  req.Source,
		Env:     env,
		Devices: req.Devices,
		Torch:   req.Torch,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithFields(r.Context(),
		"session_id", entry.Session().ID(),
		"source", req.Source,
		"secure", env.Secure,
		"embedded", env.Embedded,
		"devices", len(req.Devices),
	).Info("scan session opened")

	w.Header().Set("Location", "/api/scan-sessions/"+entry.Session().ID())
	writeJSON(w, http.StatusCreated, sessionResponse(entry))
}

// handleGetScanSession returns the current snapshot.
func (s *Server) handleGetScanSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}

// handleCloseScanSession closes the session. Closing twice is not an error.
func (s *Server) handleCloseScanSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	if err := entry.Session().Close(r.Context()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}

// handleScanEvents streams session events as server-sent events. Each event
// is named after its type; a final "complete" event follows the close.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	events, unsubscribe := entry.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	logger := logging.WithFields(r.Context(), "session_id", entry.Session().ID())
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Channel closed - session closed
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("encode scan event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleDeviceAck delivers the browser's answer to an "open" command.
func (s *Server) handleDeviceAck(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	client, err := remoteClient(entry)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var ack remote.Ack
	if err := decodeJSON(w, r, &ack, false); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := client.Acknowledge(ack); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// decodeRequest is the body of POST .../decode.
type decodeRequest struct {
	Text string `json:"text"`
}

// handleDecode forwards a decoded candidate from the browser camera. The
// session decides whether it becomes the result.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	client, err := remoteClient(entry)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var req decodeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := client.Deliver(req.Text); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleRequestManual switches the session to manual entry.
func (s *Server) handleRequestManual(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	if err := entry.Session().RequestManualEntry(r.Context()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}

// manualSubmitRequest is the body of POST .../manual/submit.
type manualSubmitRequest struct {
	Barcode string `json:"barcode"`
}

// handleSubmitManual emits a typed barcode as the session result.
func (s *Server) handleSubmitManual(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}

	var req manualSubmitRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if err := entry.Session().SubmitManual(r.Context(), req.Barcode); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}

// handleCancelManual leaves manual entry and restarts the camera. The
// restart is not tied to the request, so a client that disconnects does not
// abort it. A camera that fails again is reported in the snapshot.
func (s *Server) handleCancelManual(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	err := entry.Session().CancelManual(context.WithoutCancel(r.Context()))
	var failure *capture.Failure
	if err != nil && !errors.As(err, &failure) {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}

// handleToggleTorch flips the torch of a scanning session.
func (s *Server) handleToggleTorch(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromRequest(w, r)
	if !ok {
		return
	}
	if _, err := entry.Session().ToggleTorch(r.Context()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(entry))
}
