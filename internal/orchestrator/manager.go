package orchestrator

import (
	"context"
	"sync"

	"github.com/playsight/api/internal/client"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/model"
)

// Manager owns the live sessions, one per tracked job. Replacing or closing
// a session synchronously invalidates its polling loops before the new state
// becomes visible.
type Manager struct {
	api    client.JobAPI
	tuning Tuning
	bounds SelectionBounds
	notify Notifier

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(api client.JobAPI, cfg *config.Config, notify Notifier) *Manager {
	return &Manager{
		api:    api,
		tuning: TuningFromConfig(cfg.Poll),
		bounds: SelectionBounds{
			MinBoxSize: cfg.Selection.MinBoxSize,
			MaxBoxSize: cfg.Selection.MaxBoxSize,
		},
		notify:   notify,
		sessions: make(map[string]*Session),
	}
}

// CreateJob registers a new job with the analyzer and starts tracking it.
func (m *Manager) CreateJob(ctx context.Context, req *model.CreateJobRequest) (*Session, error) {
	job, err := m.api.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.Track(job), nil
}

// Track starts a session for an already-created job. An existing session for
// the same id is torn down first so its loops cannot write into the new one.
func (m *Manager) Track(job *model.Job) *Session {
	sess := newSession(job.ID, job, m.api, m.tuning, m.bounds, m.notify)

	m.mu.Lock()
	old := m.sessions[job.ID]
	m.sessions[job.ID] = sess
	m.mu.Unlock()

	if old != nil {
		old.invalidate()
	}
	sess.start()
	return sess
}

// Get returns the session tracking jobID, if any.
func (m *Manager) Get(jobID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[jobID]
	return sess, ok
}

// Close tears down the session for jobID, cancelling its loops.
func (m *Manager) Close(jobID string) {
	m.mu.Lock()
	sess := m.sessions[jobID]
	delete(m.sessions, jobID)
	m.mu.Unlock()

	if sess != nil {
		sess.invalidate()
	}
}

// Shutdown tears down every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.invalidate()
	}
}
