package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/model"
)

// JobAPI defines the analyzer operations the orchestrator depends on.
type JobAPI interface {
	CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	EnqueueJob(ctx context.Context, jobID string) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListPreviewFrames(ctx context.Context, jobID string) ([]model.PreviewFrame, error)
	ListTrackCandidates(ctx context.Context, jobID string) ([]model.TrackCandidate, error)
	SaveTargetSelection(ctx context.Context, jobID string, sels []model.Selection, force bool) (*model.Job, error)
	SavePlayerReference(ctx context.Context, jobID string, sel model.Selection) (*model.Job, error)
	PickPlayer(ctx context.Context, jobID, frameKey, trackID string) (*model.Job, error)
}

// AnalyzerClient talks to the external video-analysis backend.
type AnalyzerClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

func NewAnalyzerClient(cfg *config.AnalyzerConfig) *AnalyzerClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AnalyzerClient{
		// Transport-level timeout stays off; each call carries its own
		// context deadline so a timeout is distinguishable from an abort.
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
		timeout:    timeout,
	}
}

// IsConfigured returns true if the client has a backend origin to talk to.
func (c *AnalyzerClient) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *AnalyzerClient) CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	return c.jobCall(ctx, http.MethodPost, "/v1/jobs", req)
}

func (c *AnalyzerClient) EnqueueJob(ctx context.Context, jobID string) (*model.Job, error) {
	return c.jobCall(ctx, http.MethodPost, fmt.Sprintf("/v1/jobs/%s/enqueue", jobID), nil)
}

func (c *AnalyzerClient) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return c.jobCall(ctx, http.MethodGet, fmt.Sprintf("/v1/jobs/%s", jobID), nil)
}

func (c *AnalyzerClient) ListPreviewFrames(ctx context.Context, jobID string) ([]model.PreviewFrame, error) {
	raw, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v1/jobs/%s/frames", jobID), nil)
	if err != nil {
		return nil, err
	}
	return NormalizeFrames(raw), nil
}

func (c *AnalyzerClient) ListTrackCandidates(ctx context.Context, jobID string) ([]model.TrackCandidate, error) {
	raw, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v1/jobs/%s/candidates", jobID), nil)
	if err != nil {
		return nil, err
	}
	return NormalizeCandidates(raw), nil
}

func (c *AnalyzerClient) SaveTargetSelection(ctx context.Context, jobID string, sels []model.Selection, force bool) (*model.Job, error) {
	body := map[string]interface{}{
		"selections": toWireList(sels),
	}
	if force {
		body["force"] = true
	}
	return c.jobCall(ctx, http.MethodPut, fmt.Sprintf("/v1/jobs/%s/target", jobID), body)
}

func (c *AnalyzerClient) SavePlayerReference(ctx context.Context, jobID string, sel model.Selection) (*model.Job, error) {
	return c.jobCall(ctx, http.MethodPut, fmt.Sprintf("/v1/jobs/%s/player", jobID), toWire(sel))
}

func (c *AnalyzerClient) PickPlayer(ctx context.Context, jobID, frameKey, trackID string) (*model.Job, error) {
	body := map[string]string{
		"frame_key": frameKey,
		"track_id":  trackID,
	}
	return c.jobCall(ctx, http.MethodPost, fmt.Sprintf("/v1/jobs/%s/player/pick", jobID), body)
}

// jobCall performs a call whose success payload is a job document.
func (c *AnalyzerClient) jobCall(ctx context.Context, method, endpoint string, body interface{}) (*model.Job, error) {
	raw, err := c.call(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperr.New(apperr.KindUpstream, "", "analyzer returned a non-object job payload")
	}
	return NormalizeJob(m), nil
}

// call executes one analyzer request under the configured timeout and returns
// the decoded, unwrapped success payload.
func (c *AnalyzerClient) call(ctx context.Context, method, endpoint string, body interface{}) (interface{}, error) {
	if !c.IsConfigured() {
		return nil, apperr.New(apperr.KindConfig, "CONFIG_ERROR", "analyzer base URL is not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Analyzer API] → %s %s", method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[Analyzer API] ✗ %s %s — timed out after %v", method, req.URL.String(), c.timeout)
			return nil, &apperr.Error{
				Kind:    apperr.KindTimeout,
				Code:    "TIMEOUT",
				Message: fmt.Sprintf("analyzer did not respond within %v", c.timeout),
				Err:     err,
			}
		}
		log.Printf("[Analyzer API] ✗ %s %s — request failed: %v", method, req.URL.String(), err)
		return nil, apperr.Wrap(apperr.KindTransport, "failed to reach analyzer", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, "failed to read analyzer response", err)
	}

	log.Printf("[Analyzer API] ← %d %s %s", resp.StatusCode, method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, DecodeError(resp.StatusCode, respBody, resp.Header)
	}

	var decoded interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, "analyzer returned unparsable JSON", err)
		}
	}
	return unwrap(decoded), nil
}

// unwrap peels the optional {ok, data} envelope; bare payloads pass through.
func unwrap(decoded interface{}) interface{} {
	m, ok := decoded.(map[string]interface{})
	if !ok {
		return decoded
	}
	if _, hasOK := m["ok"]; hasOK {
		if data, hasData := m["data"]; hasData {
			return data
		}
	}
	return decoded
}

// DecodeError normalizes a non-2xx analyzer response into one *apperr.Error.
// The analyzer reports failures in several nesting shapes; the error code in
// the body is authoritative, the HTTP status only auxiliary.
func DecodeError(status int, body []byte, header http.Header) *apperr.Error {
	code, message, requestID, allowForce := extractErrorParts(body)
	if requestID == "" && header != nil {
		requestID = header.Get("x-request-id")
	}
	if message == "" {
		message = fmt.Sprintf("analyzer returned HTTP %d", status)
	}
	return &apperr.Error{
		Kind:       kindForCode(code, status),
		Code:       code,
		Message:    message,
		RequestID:  requestID,
		HTTPStatus: status,
		AllowForce: allowForce,
	}
}

func extractErrorParts(body []byte) (code, message, requestID string, allowForce bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return "", string(bytes.TrimSpace(body)), "", false
	}

	// "error" as a string or as {code, message}.
	switch e := payload["error"].(type) {
	case string:
		message = e
	case map[string]interface{}:
		code = pickString(e, "code")
		message = pickString(e, "message")
		allowForce = pickBool(e, "allowForce", "allow_force")
	}

	// "detail" as string, array of {msg}, or object.
	if message == "" {
		switch d := payload["detail"].(type) {
		case string:
			message = d
		case []interface{}:
			if len(d) > 0 {
				if dm, ok := d[0].(map[string]interface{}); ok {
					message = pickString(dm, "msg", "message")
				} else if ds, ok := d[0].(string); ok {
					message = ds
				}
			}
		case map[string]interface{}:
			message = pickString(d, "msg", "message")
		}
	}

	// Top-level fallbacks.
	if message == "" {
		message = pickString(payload, "message")
	}
	if code == "" {
		code = pickString(payload, "code")
	}
	if !allowForce {
		allowForce = pickBool(payload, "allowForce", "allow_force")
	}

	requestID = pickString(payload, "request_id", "requestId")
	if requestID == "" {
		if meta := pickMap(payload, "meta"); meta != nil {
			requestID = pickString(meta, "request_id", "requestId")
		}
	}
	return code, message, requestID, allowForce
}

func kindForCode(code string, status int) apperr.Kind {
	switch code {
	case "TARGET_MISMATCH":
		return apperr.KindTargetMismatch
	case "INVALID_FRAME_KEY":
		return apperr.KindInvalidFrameKey
	case "TRACK_NOT_IN_FRAME":
		return apperr.KindTrackNotInFrame
	case "INVALID_PAYLOAD", "VALIDATION_ERROR":
		return apperr.KindInvalidPayload
	case "INTERNAL_ERROR":
		return apperr.KindInternal
	}
	if code == "" && status >= 500 {
		return apperr.KindInternal
	}
	return apperr.KindUpstream
}
