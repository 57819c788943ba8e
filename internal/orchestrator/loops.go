package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/model"
)

// LoopName identifies one of the three independent polling loops.
type LoopName string

const (
	LoopStatus    LoopName = "status"
	LoopPreview   LoopName = "preview"
	LoopCandidate LoopName = "candidate"
)

// Tuning bounds the polling loops. Kept separate from config so tests can
// run with millisecond ticks.
type Tuning struct {
	StatusInterval         time.Duration
	StatusTrackingInterval time.Duration
	StatusScoringInterval  time.Duration
	StatusMaxWait          time.Duration
	PreviewInterval        time.Duration
	PreviewMaxAttempts     int
	PreviewRequiredFrames  int
	CandidateInterval      time.Duration
	CandidateMaxAttempts   int
}

func TuningFromConfig(p config.PollConfig) Tuning {
	return Tuning{
		StatusInterval:         p.StatusInterval(),
		StatusTrackingInterval: time.Duration(p.StatusTrackingIntervalSec) * time.Second,
		StatusScoringInterval:  time.Duration(p.StatusScoringIntervalSec) * time.Second,
		StatusMaxWait:          p.StatusMaxWait(),
		PreviewInterval:        p.PreviewInterval(),
		PreviewMaxAttempts:     p.PreviewMaxAttempts,
		PreviewRequiredFrames:  p.PreviewRequiredFrames,
		CandidateInterval:      p.CandidateInterval(),
		CandidateMaxAttempts:   p.CandidateMaxAttempts,
	}
}

// start launches the three loops for the session's current generation.
func (s *Session) start() {
	s.mu.Lock()
	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	go s.runStatusLoop(ctx, gen)
	go s.runPreviewLoop(ctx, gen)
	go s.runCandidateLoop(ctx, gen)
}

// RetryLoop restarts a stopped loop after a surfaced failure. The retry is
// always an explicit user action, never automatic. The restarted loop joins
// the current generation's context, so the next invalidate still kills it.
func (s *Session) RetryLoop(name LoopName) {
	s.mu.Lock()
	delete(s.loopErrors, name)
	if name == LoopPreview {
		s.previewTimedOut = false
	}
	if name == LoopCandidate {
		s.candidatesFailed = false
	}
	gen := s.generation
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return // session torn down
	}

	switch name {
	case LoopStatus:
		go s.runStatusLoop(ctx, gen)
	case LoopPreview:
		go s.runPreviewLoop(ctx, gen)
	case LoopCandidate:
		go s.runCandidateLoop(ctx, gen)
	}
}

// statusIntervalFor adapts the status poll cadence to the pipeline step:
// tracking runs for minutes, scoring finishes fast.
func (s *Session) statusIntervalFor(step string) time.Duration {
	switch step {
	case model.ProgressStepTracking:
		return s.tuning.StatusTrackingInterval
	case model.ProgressStepScoring:
		return s.tuning.StatusScoringInterval
	default:
		return s.tuning.StatusInterval
	}
}

// runStatusLoop polls the job document until a terminal status, the
// wall-clock ceiling, or a failure. One request in flight at a time: the
// next tick is only scheduled after the previous response lands.
func (s *Session) runStatusLoop(ctx context.Context, gen uint64) {
	deadline := time.Now().Add(s.tuning.StatusMaxWait)
	for {
		job, err := s.api.GetJob(ctx, s.jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.recordLoopError(gen, LoopStatus, err)
			return
		}

		terminal := false
		if !s.apply(gen, func() {
			s.job = job // replaced wholesale; a late response cannot half-apply
			terminal = job.Status.Terminal()
		}) {
			return
		}
		if terminal {
			return
		}

		if time.Now().After(deadline) {
			// Not a silent stop: the ceiling is surfaced as a condition.
			msg := "analysis is taking longer than expected"
			s.apply(gen, func() { s.warnings = append(s.warnings, msg) })
			s.pushWarning(msg)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.statusIntervalFor(job.Progress.Step)):
		}
	}
}

// runPreviewLoop polls the frame listing until enough frames arrived or the
// attempt budget runs out. It freezes (stops mutating the set) as soon as
// the user opens a frame for editing.
func (s *Session) runPreviewLoop(ctx context.Context, gen uint64) {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		frozen := s.framesFrozen
		s.mu.Unlock()
		if frozen {
			return
		}

		frames, err := s.api.ListPreviewFrames(ctx, s.jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.recordLoopError(gen, LoopPreview, err)
			return
		}

		enough := false
		if !s.apply(gen, func() {
			// Empty responses never clobber previously fetched frames.
			if !s.framesFrozen && len(frames) > 0 {
				s.frames = frames
			}
			enough = len(s.frames) >= s.tuning.PreviewRequiredFrames
		}) {
			return
		}
		if enough {
			return
		}

		if attempt >= s.tuning.PreviewMaxAttempts {
			msg := "preview frames did not arrive in time"
			s.apply(gen, func() {
				s.previewTimedOut = true
				s.warnings = append(s.warnings, msg)
			})
			s.pushWarning(msg)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.tuning.PreviewInterval):
		}
	}
}

// runCandidateLoop polls detected-track candidates until a track is picked
// locally or the job moves past player selection. Candidates and previews
// come from different analyzer stages, hence the independent loop. A
// CANDIDATES_FAILED progress step means the detection stage gave up: the loop
// stops and the failure is surfaced so the UI can fall back to manual drag
// capture.
func (s *Session) runCandidateLoop(ctx context.Context, gen uint64) {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		done := s.pickedTrackID != "" ||
			(s.job != nil && (s.job.PlayerRef != nil || s.job.Status.Terminal()))
		failed := s.job != nil && s.job.Progress.Step == model.ProgressStepCandidatesFailed
		s.mu.Unlock()
		if done {
			return
		}
		if failed {
			s.markCandidatesFailed(gen, "automatic player detection failed, draw the player box manually")
			return
		}

		candidates, err := s.api.ListTrackCandidates(ctx, s.jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.recordLoopError(gen, LoopCandidate, err)
			return
		}

		if !s.apply(gen, func() {
			if len(candidates) > 0 {
				s.candidates = candidates
			}
		}) {
			return
		}

		if attempt >= s.tuning.CandidateMaxAttempts {
			log.Printf("[Orchestrator] candidate loop for job %s exhausted its attempt budget", s.jobID)
			s.markCandidatesFailed(gen, "no player candidates arrived in time")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.tuning.CandidateInterval):
		}
	}
}

// markCandidatesFailed surfaces a dead detection stage: the UI should stop
// waiting for candidates and offer manual drag capture instead.
func (s *Session) markCandidatesFailed(gen uint64, msg string) {
	applied := s.apply(gen, func() {
		s.candidatesFailed = true
		s.warnings = append(s.warnings, msg)
	})
	if applied {
		s.pushWarning(msg)
	}
}

// recordLoopError stops the loop that hit err and surfaces a retry
// affordance. The rest of the job view stays up.
func (s *Session) recordLoopError(gen uint64, name LoopName, err error) {
	e := apperr.As(err)
	if e == nil {
		e = apperr.Wrap(apperr.KindTransport, err.Error(), err)
	}
	applied := s.apply(gen, func() {
		s.loopErrors[name] = &LoopError{
			Kind:      e.Kind.String(),
			Code:      e.Code,
			Message:   e.UserMessage(),
			RequestID: e.RequestID,
			Retryable: apperr.Retryable(e),
		}
	})
	if applied {
		s.pushError(e)
	}
}
