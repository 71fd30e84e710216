package web

import (
	"bufio"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sessionJSON is the subset of a session response the tests inspect.
type sessionJSON struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	Barcode              string `json:"barcode"`
	ErrorCode            string `json:"errorCode"`
	ManualEntryAvailable bool   `json:"manualEntryAvailable"`
	HasEmittedResult     bool   `json:"hasEmittedResult"`
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openSession(t *testing.T, s *Server, body string) sessionJSON {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/scan-sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session status = %d: %s", rec.Code, rec.Body.String())
	}
	var snap sessionJSON
	decodeBody(t, rec, &snap)
	if rec.Header().Get("Location") != "/api/scan-sessions/"+snap.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	return snap
}

func getSession(t *testing.T, s *Server, id string) sessionJSON {
	t.Helper()
	rec := do(t, s, http.MethodGet, "/api/scan-sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d: %s", rec.Code, rec.Body.String())
	}
	var snap sessionJSON
	decodeBody(t, rec, &snap)
	return snap
}

func waitForSessionStatus(t *testing.T, s *Server, id, status string) sessionJSON {
	t.Helper()
	var snap sessionJSON
	waitFor(t, "session status "+status, func() bool {
		snap = getSession(t, s, id)
		return snap.Status == status
	})
	return snap
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	return resp.Code
}

func TestScanSession_RemoteCameraFlow(t *testing.T) {
	s := newTestServer(t)
	snap := openSession(t, s, `{"source":"remote","devices":[{"id":"front","label":"Front"},{"id":"rear","label":"Back Camera"}]}`)
	base := "/api/scan-sessions/" + snap.ID

	// Decoding before the camera runs is rejected.
	rec := do(t, s, http.MethodPost, base+"/decode", `{"text":"4607159730018"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("early decode status = %d, want %d", rec.Code, http.StatusConflict)
	}

	waitFor(t, "open command", func() bool {
		return do(t, s, http.MethodPost, base+"/device", `{"status":"started"}`).Code == http.StatusAccepted
	})
	waitForSessionStatus(t, s, snap.ID, "scanning")

	rec = do(t, s, http.MethodPost, base+"/decode", `{"text":"4607159730018"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("decode status = %d: %s", rec.Code, rec.Body.String())
	}

	got := getSession(t, s, snap.ID)
	if got.Status != "succeeded" || got.Barcode != "4607159730018" || !got.HasEmittedResult {
		t.Errorf("session = %+v, want succeeded with barcode", got)
	}

	// Closing is idempotent.
	for i := 0; i < 2; i++ {
		rec = do(t, s, http.MethodDelete, base, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("close status = %d", rec.Code)
		}
	}
	if got := getSession(t, s, snap.ID); got.Status != "closed" {
		t.Errorf("status after close = %q", got.Status)
	}
}

func TestScanSession_CameraErrorAck(t *testing.T) {
	s := newTestServer(t)
	snap := openSession(t, s, `{"devices":[{"id":"cam","label":"Camera"}]}`)
	base := "/api/scan-sessions/" + snap.ID

	waitFor(t, "open command", func() bool {
		return do(t, s, http.MethodPost, base+"/device", `{"status":"error","name":"NotAllowedError","message":"denied"}`).Code == http.StatusAccepted
	})

	got := waitForSessionStatus(t, s, snap.ID, "failed")
	if got.ErrorCode != "CAM003" {
		t.Errorf("errorCode = %q, want CAM003", got.ErrorCode)
	}
	if !got.ManualEntryAvailable {
		t.Error("manual entry not offered after camera failure")
	}
}

func TestScanSession_ManualFallback(t *testing.T) {
	s := newTestServer(t)
	snap := openSession(t, s, `{"source":"serial"}`)
	base := "/api/scan-sessions/" + snap.ID

	got := waitForSessionStatus(t, s, snap.ID, "failed")
	if got.ErrorCode != "CAM004" {
		t.Errorf("errorCode = %q, want CAM004", got.ErrorCode)
	}

	rec := do(t, s, http.MethodPost, base+"/manual", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("manual status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, base+"/manual/submit", `{"barcode":"   "}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "SCN005" {
		t.Errorf("blank submit = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, base+"/manual/submit", `{"barcode":" 12345678 "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	var done sessionJSON
	decodeBody(t, rec, &done)
	if done.Status != "succeeded" || done.Barcode != "12345678" {
		t.Errorf("session = %+v, want succeeded with trimmed barcode", done)
	}

	rec = do(t, s, http.MethodPost, base+"/manual/submit", `{"barcode":"87654321"}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "SCN004" {
		t.Errorf("second submit = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, base+"/decode", `{"text":"87654321"}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "SCN009" {
		t.Errorf("decode on serial session = %d %s", rec.Code, rec.Body.String())
	}
}

func TestScanSession_CancelManualReturnsToError(t *testing.T) {
	s := newTestServer(t)
	snap := openSession(t, s, `{"source":"serial"}`)
	base := "/api/scan-sessions/" + snap.ID
	waitForSessionStatus(t, s, snap.ID, "failed")

	do(t, s, http.MethodPost, base+"/manual", "")
	rec := do(t, s, http.MethodPost, base+"/manual/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", rec.Code, rec.Body.String())
	}
	var got sessionJSON
	decodeBody(t, rec, &got)
	if got.Status != "failed" {
		t.Errorf("status after cancel = %q, want failed", got.Status)
	}

	rec = do(t, s, http.MethodPost, base+"/manual/cancel", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "SCN006" {
		t.Errorf("cancel outside manual entry = %d %s", rec.Code, rec.Body.String())
	}
}

func TestScanSession_EnvironmentFailures(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		host       string
		header     map[string]string
		body       string
		wantCode   string
	}{
		{"plain http remote client", "203.0.113.7:5000", "shop.example.com", nil, `{"devices":[{"id":"cam"}]}`, "CAM001"},
		{"remote client spoofing localhost host", "203.0.113.7:5000", "localhost:8080", nil, `{"devices":[{"id":"cam"}]}`, "CAM001"},
		{"framed page", "127.0.0.1:40000", "localhost", map[string]string{"Sec-Fetch-Dest": "iframe"}, `{"devices":[{"id":"cam"}]}`, "CAM002"},
		{"client reports frame", "127.0.0.1:40000", "localhost", nil, `{"devices":[{"id":"cam"}],"embedded":true}`, "CAM002"},
		{"no cameras", "127.0.0.1:40000", "localhost", nil, `{"devices":[]}`, "CAM004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			req := httptest.NewRequest(http.MethodPost, "/api/scan-sessions", strings.NewReader(tt.body))
			req.RemoteAddr = tt.remoteAddr
			req.Host = tt.host
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			var snap sessionJSON
			decodeBody(t, rec, &snap)

			got := waitForSessionStatus(t, s, snap.ID, "failed")
			if got.ErrorCode != tt.wantCode {
				t.Errorf("errorCode = %q, want %q", got.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestScanSession_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/scan-sessions/missing", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "SCN001" {
		t.Errorf("missing session = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/scan-sessions", `{"source":"bluetooth"}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "SCN008" {
		t.Errorf("unknown source = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/scan-sessions", "")
	var status struct {
		Sources []string `json:"sources"`
	}
	decodeBody(t, rec, &status)
	if strings.Join(status.Sources, ",") != "remote,serial" {
		t.Errorf("sources = %v", status.Sources)
	}
}

func TestScanSession_TooMany(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 4; i++ {
		openSession(t, s, `{"source":"serial"}`)
	}

	rec := do(t, s, http.MethodPost, "/api/scan-sessions", `{"source":"serial"}`)

	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "SCN002" {
		t.Errorf("fifth session = %d %s", rec.Code, rec.Body.String())
	}
}

func TestScanSession_Events(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	snap := openSession(t, s, `{"source":"serial"}`)
	waitForSessionStatus(t, s, snap.ID, "failed")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/api/scan-sessions/" + snap.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		if !lines.Scan() {
			t.Fatalf("stream ended early: %v", lines.Err())
		}
		return lines.Text()
	}

	if got := next(); got != "event: state" {
		t.Fatalf("first line = %q, want the primed state event", got)
	}
	if got := next(); !strings.Contains(got, `"status":"failed"`) {
		t.Errorf("state data = %q", got)
	}

	do(t, s, http.MethodDelete, "/api/scan-sessions/"+snap.ID, "")

	for {
		if next() == "event: complete" {
			break
		}
	}
}

func TestRequestEnvironment(t *testing.T) {
	tests := []struct {
		name         string
		remoteAddr   string
		host         string
		tls          bool
		header       map[string]string
		wantSecure   bool
		wantEmbedded bool
	}{
		{"remote http", "203.0.113.7:5000", "shop.example.com", false, nil, false, false},
		{"remote http with localhost host", "203.0.113.7:5000", "localhost:8080", false, nil, false, false},
		{"remote http with loopback host", "203.0.113.7:5000", "127.0.0.1", false, nil, false, false},
		{"tls", "203.0.113.7:5000", "shop.example.com", true, nil, true, false},
		{"proxy terminated tls", "203.0.113.7", "shop.example.com", false, map[string]string{"X-Forwarded-Proto": "HTTPS"}, true, false},
		{"loopback v4 client", "127.0.0.1:40000", "shop.example.com", false, nil, true, false},
		{"loopback v4 without port", "127.0.0.1", "localhost", false, nil, true, false},
		{"loopback v6 client", "[::1]:40000", "localhost", false, nil, true, false},
		{"iframe", "127.0.0.1:40000", "localhost", false, map[string]string{"Sec-Fetch-Dest": "iframe"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/scan-sessions", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Host = tt.host
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			env := requestEnvironment(req)
			if env.Secure != tt.wantSecure {
				t.Errorf("Secure = %v, want %v", env.Secure, tt.wantSecure)
			}
			if env.Embedded != tt.wantEmbedded {
				t.Errorf("Embedded = %v, want %v", env.Embedded, tt.wantEmbedded)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	s := &Server{}
	rl := s.newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.mu.Lock()
	rl.now = func() time.Time { return now }
	rl.mu.Unlock()

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests rejected")
	}
	if rl.allow("a") {
		t.Error("third request in window allowed")
	}
	if !rl.allow("b") {
		t.Error("other client rejected")
	}

	rl.mu.Lock()
	now = now.Add(2 * time.Minute)
	rl.mu.Unlock()
	if !rl.allow("a") {
		t.Error("request after window rejected")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	s := &Server{}
	rl := s.newRateLimiter(1, time.Minute)
	defer rl.stop()
	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if errorCode(t, rec) != "RATE001" {
		t.Errorf("code = %q, want RATE001", errorCode(t, rec))
	}
}
