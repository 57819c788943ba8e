package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/model"
)

func selFixture(frameKey string, timeSec *float64) model.Selection {
	return model.Selection{
		FrameKey:     frameKey,
		FrameTimeSec: timeSec,
		Box:          model.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2},
	}
}

func newTestClient(baseURL string, timeoutSec int) *AnalyzerClient {
	return NewAnalyzerClient(&config.AnalyzerConfig{BaseURL: baseURL, Timeout: timeoutSec})
}

func TestGetJob_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "data": {"job_id": "j-1", "status": "queued"}}`))
	}))
	defer srv.Close()

	job, err := newTestClient(srv.URL, 5).GetJob(context.Background(), "j-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.ID != "j-1" || job.Status != model.JobStatusQueued {
		t.Errorf("job = %+v", job)
	}
}

func TestGetJob_AcceptsBarePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobId": "j-2", "status": "RUNNING"}`))
	}))
	defer srv.Close()

	job, err := newTestClient(srv.URL, 5).GetJob(context.Background(), "j-2")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.ID != "j-2" || job.Status != model.JobStatusRunning {
		t.Errorf("job = %+v", job)
	}
}

func TestCall_TimeoutIsDistinctKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	c.timeout = 20 * time.Millisecond

	_, err := c.GetJob(context.Background(), "j-1")
	if apperr.KindOf(err) != apperr.KindTimeout {
		t.Errorf("kind = %v, want KindTimeout, err = %v", apperr.KindOf(err), err)
	}
}

func TestCall_ConnectFailureIsTransport(t *testing.T) {
	// Closed port.
	c := newTestClient("http://127.0.0.1:1", 1)
	_, err := c.GetJob(context.Background(), "j-1")
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Errorf("kind = %v, want KindTransport", apperr.KindOf(err))
	}
}

func TestCall_UnconfiguredBaseURL(t *testing.T) {
	c := newTestClient("", 5)
	_, err := c.GetJob(context.Background(), "j-1")
	if apperr.KindOf(err) != apperr.KindConfig {
		t.Errorf("kind = %v, want KindConfig", apperr.KindOf(err))
	}
}

func TestDecodeError_Shapes(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		body        string
		wantKind    apperr.Kind
		wantCode    string
		wantMessage string
	}{
		{
			"error object",
			409,
			`{"error": {"code": "TARGET_MISMATCH", "message": "box does not match", "allowForce": true}}`,
			apperr.KindTargetMismatch, "TARGET_MISMATCH", "box does not match",
		},
		{
			"error string",
			400,
			`{"error": "bad selection"}`,
			apperr.KindUpstream, "", "bad selection",
		},
		{
			"detail string",
			422,
			`{"detail": "frame key unknown", "code": "INVALID_FRAME_KEY"}`,
			apperr.KindInvalidFrameKey, "INVALID_FRAME_KEY", "frame key unknown",
		},
		{
			"detail array",
			422,
			`{"detail": [{"msg": "w out of range"}], "code": "INVALID_PAYLOAD"}`,
			apperr.KindInvalidPayload, "INVALID_PAYLOAD", "w out of range",
		},
		{
			"top-level message",
			500,
			`{"message": "db exploded", "code": "INTERNAL_ERROR", "request_id": "req-7"}`,
			apperr.KindInternal, "INTERNAL_ERROR", "db exploded",
		},
		{
			"bare 500",
			500,
			`oops`,
			apperr.KindInternal, "", "oops",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := DecodeError(tc.status, []byte(tc.body), nil)
			if e.Kind != tc.wantKind {
				t.Errorf("kind = %v, want %v", e.Kind, tc.wantKind)
			}
			if e.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tc.wantCode)
			}
			if e.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", e.Message, tc.wantMessage)
			}
			if e.HTTPStatus != tc.status {
				t.Errorf("status = %d, want %d", e.HTTPStatus, tc.status)
			}
		})
	}
}

func TestDecodeError_CodeAuthoritativeOverStatus(t *testing.T) {
	// A mismatch code on a non-409 status still classifies as a mismatch.
	e := DecodeError(400, []byte(`{"error": {"code": "TARGET_MISMATCH", "message": "m", "allow_force": true}}`), nil)
	if e.Kind != apperr.KindTargetMismatch {
		t.Errorf("kind = %v, want KindTargetMismatch regardless of status", e.Kind)
	}
	if !e.AllowForce {
		t.Error("allow_force (snake) not picked up")
	}
}

func TestDecodeError_RequestIDFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Request-Id", "hdr-42")
	e := DecodeError(500, []byte(`{"error": "boom"}`), h)
	if e.RequestID != "hdr-42" {
		t.Errorf("requestID = %q, want header fallback", e.RequestID)
	}

	// Body wins over header.
	e = DecodeError(500, []byte(`{"error": "boom", "request_id": "body-1"}`), h)
	if e.RequestID != "body-1" {
		t.Errorf("requestID = %q, want body value", e.RequestID)
	}
}

func TestSaveTargetSelection_CarriesForceFlag(t *testing.T) {
	var gotForce bool
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]interface{}
		if err := jsonDecode(r, &body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, gotForce = body["force"]
		w.Write([]byte(`{"jobId": "j-1", "status": "WAITING_FOR_SELECTION", "target": {"selections": [], "confirmed": true}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	sec := 2.0
	sels := []model.Selection{selFixture("f1", &sec)}

	if _, err := c.SaveTargetSelection(context.Background(), "j-1", sels, false); err != nil {
		t.Fatal(err)
	}
	if gotForce {
		t.Error("force sent on a plain save")
	}
	if _, err := c.SaveTargetSelection(context.Background(), "j-1", sels, true); err != nil {
		t.Fatal(err)
	}
	if !gotForce {
		t.Error("force flag not carried")
	}
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}

func jsonDecode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
