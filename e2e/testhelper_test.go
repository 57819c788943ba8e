package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/playsight/api/internal/client"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/handler"
	"github.com/playsight/api/internal/middleware"
	"github.com/playsight/api/internal/orchestrator"
	"github.com/playsight/api/internal/proxy"
)

// analyzerStub simulates the external analysis backend in-process. State per
// job is just enough to drive the orchestrator through the lifecycle.
type analyzerStub struct {
	mu sync.Mutex

	nextID       int
	jobs         map[string]map[string]interface{}
	frames       []map[string]interface{}
	candidates   []map[string]interface{}
	enqueueCalls int
	targetSaves  int
	forcedSaves  int
	pickCalls    int
	mismatchOnce bool // first non-forced target save answers 409 TARGET_MISMATCH
}

func newAnalyzerStub() *analyzerStub {
	return &analyzerStub{
		jobs: make(map[string]map[string]interface{}),
		frames: []map[string]interface{}{
			{"frame_key": "f1", "time_sec": 1.0, "url": "http://stub/f1.jpg"},
			{"frame_key": "f2", "time_sec": 2.0, "url": "http://stub/f2.jpg"},
		},
		candidates: []map[string]interface{}{
			{"track_id": "t1", "tier": "primary", "coverage": 0.9, "stability": 0.8},
		},
	}
}

func (a *analyzerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.nextID++
		id := fmt.Sprintf("job-%d", a.nextID)
		job := map[string]interface{}{
			"job_id": id,
			"status": "QUEUED",
			"target": map[string]interface{}{"selections": []interface{}{}, "confirmed": false},
		}
		a.jobs[id] = job
		writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "data": job})
	})
	mux.HandleFunc("/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/")
		id := parts[0]

		a.mu.Lock()
		defer a.mu.Unlock()
		job, ok := a.jobs[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": map[string]interface{}{"code": "NOT_FOUND", "message": "job not found"},
			})
			return
		}

		rest := strings.Join(parts[1:], "/")
		switch {
		case rest == "" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, job)
		case rest == "enqueue":
			a.enqueueCalls++
			job["status"] = "PROCESSING"
			writeJSON(w, http.StatusOK, job)
		case rest == "frames":
			writeJSON(w, http.StatusOK, map[string]interface{}{"frames": a.frames})
		case rest == "candidates":
			writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": a.candidates})
		case rest == "player":
			var sel map[string]interface{}
			json.NewDecoder(r.Body).Decode(&sel)
			job["player_ref"] = sel
			job["status"] = "WAITING_FOR_SELECTION"
			writeJSON(w, http.StatusOK, job)
		case rest == "player/pick":
			a.pickCalls++
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			job["player_ref"] = map[string]interface{}{
				"frame_key": body["frame_key"], "track_id": body["track_id"],
				"x": 0.1, "y": 0.1, "w": 0.2, "h": 0.2,
			}
			job["status"] = "WAITING_FOR_SELECTION"
			writeJSON(w, http.StatusOK, job)
		case rest == "target":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			a.targetSaves++
			_, forced := body["force"]
			if forced {
				a.forcedSaves++
			}
			if a.mismatchOnce && !forced {
				a.mismatchOnce = false
				writeJSON(w, http.StatusConflict, map[string]interface{}{
					"error": map[string]interface{}{
						"code":       "TARGET_MISMATCH",
						"message":    "box does not match the selected player",
						"allowForce": true,
					},
					"request_id": "stub-req-1",
				})
				return
			}
			job["target"] = map[string]interface{}{
				"selections": body["selections"], "confirmed": true,
			}
			writeJSON(w, http.StatusOK, job)
		default:
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "no route"})
		}
	})
	return mux
}

// armMismatch makes the next non-forced target save answer 409.
func (a *analyzerStub) armMismatch() {
	a.mu.Lock()
	a.mismatchOnce = true
	a.mu.Unlock()
}

func (a *analyzerStub) counts() (enqueue, targetSaves, forced int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enqueueCalls, a.targetSaves, a.forcedSaves
}

func (a *analyzerStub) pickCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pickCalls
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// testApp holds all components needed for testing
type testApp struct {
	app  *fiber.App
	stub *analyzerStub
}

// setupApp wires a Fiber app identical to main.go against a stubbed
// analyzer. Redis is left unreachable: the rate limiter fails open.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	stub := newAnalyzerStub()
	upstream := httptest.NewServer(stub.handler())
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Analyzer: config.AnalyzerConfig{BaseURL: upstream.URL, Timeout: 5},
		Poll: config.PollConfig{
			StatusIntervalSec:         1,
			StatusTrackingIntervalSec: 1,
			StatusScoringIntervalSec:  1,
			StatusMaxWaitSec:          30,
			PreviewIntervalSec:        1,
			PreviewMaxAttempts:        30,
			PreviewRequiredFrames:     1,
			CandidateIntervalSec:      1,
			CandidateMaxAttempts:      30,
		},
		Selection: config.SelectionConfig{MinBoxSize: 0.02, MaxBoxSize: 0.9},
		RateLimit: config.RateLimitConfig{JobsPerHour: 10000, SelectionsPerMin: 10000},
	}

	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:1"}) // unreachable on purpose
	rateLimiter := middleware.NewRateLimiter(redisClient)

	analyzerClient := client.NewAnalyzerClient(&cfg.Analyzer)
	manager := orchestrator.NewManager(analyzerClient, cfg, nil)
	t.Cleanup(manager.Shutdown)

	forwarder := proxy.NewForwarder(&cfg.Analyzer)
	validate := validator.New()
	jobHandler := handler.NewJobHandler(manager, validate)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"analyzer": analyzerClient.IsConfigured(),
			},
		})
	})

	api := app.Group("/api")
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/:jobId/view", jobHandler.View)
	jobs.Post("/:jobId/enqueue", jobHandler.Enqueue)
	jobs.Post("/:jobId/frames/:frameKey/open", jobHandler.OpenFrame)
	jobs.Post("/:jobId/player", rateLimiter.SelectionLimit(cfg.RateLimit.SelectionsPerMin), jobHandler.SavePlayer)
	jobs.Post("/:jobId/player/pick", jobHandler.PickPlayer)
	jobs.Post("/:jobId/target", rateLimiter.SelectionLimit(cfg.RateLimit.SelectionsPerMin), jobHandler.SaveTarget)
	jobs.Post("/:jobId/target/confirm", jobHandler.ConfirmTarget)
	jobs.Post("/:jobId/target/retry", jobHandler.RetryTarget)
	jobs.Post("/:jobId/loops/retry", jobHandler.RetryLoop)
	jobs.Delete("/:jobId", jobHandler.Close)

	app.All("/media/*", forwarder.Relay("/v1/media"))

	return &testApp{app: app, stub: stub}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, want, readBody(t, resp))
	}
}

// dataOf unwraps the {ok, data} success envelope.
func dataOf(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	env := parseJSON(t, resp)
	if env["ok"] != true {
		t.Fatalf("envelope ok != true: %+v", env)
	}
	data, ok := env["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("envelope data missing: %+v", env)
	}
	return data
}
