package orchestrator

import "github.com/playsight/api/internal/model"

// View is the full render state for one job. It is rebuilt from scratch on
// every read; the derived step in particular is never cached.
type View struct {
	JobID            string                  `json:"jobId"`
	Job              *model.Job              `json:"job"`
	Step             model.Step              `json:"step"`
	Frames           []model.PreviewFrame    `json:"frames"`
	FramesFrozen     bool                    `json:"framesFrozen"`
	PreviewStalled   bool                    `json:"previewStalled"`
	Candidates       []model.TrackCandidate  `json:"candidates"`
	CandidatesFailed bool                    `json:"candidatesFailed"`
	PickedTrackID    string                  `json:"pickedTrackId,omitempty"`
	TargetPhase      model.TargetPhase       `json:"targetPhase"`
	TargetDraft      []model.Selection       `json:"targetDraft,omitempty"`
	Mismatch         *MismatchPrompt         `json:"mismatch,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
	LoopErrors       map[LoopName]*LoopError `json:"loopErrors,omitempty"`
}

// MismatchPrompt describes the blocking dialog after a TARGET_MISMATCH.
// Force is offered only when the analyzer allowed it.
type MismatchPrompt struct {
	Message    string `json:"message"`
	AllowForce bool   `json:"allowForce"`
	RequestID  string `json:"requestId,omitempty"`
}

// LoopError is a polling-loop failure surfaced with a retry affordance.
type LoopError struct {
	Kind      string `json:"kind"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// viewLocked requires s.mu held.
func (s *Session) viewLocked() View {
	// frames and candidates serialize without omitempty, so they start as
	// empty slices: the UI contract is an array, never null.
	view := View{
		JobID:            s.jobID,
		Job:              s.job,
		Step:             s.deriveStepLocked(),
		Frames:           append(make([]model.PreviewFrame, 0, len(s.frames)), s.frames...),
		FramesFrozen:     s.framesFrozen,
		PreviewStalled:   s.previewTimedOut,
		Candidates:       append(make([]model.TrackCandidate, 0, len(s.candidates)), s.candidates...),
		CandidatesFailed: s.candidatesFailed,
		PickedTrackID:    s.pickedTrackID,
		TargetPhase:      s.targetPhase,
		TargetDraft:      append([]model.Selection(nil), s.targetDraft...),
		Warnings:         append([]string(nil), s.warnings...),
	}
	if s.mismatch != nil {
		view.Mismatch = &MismatchPrompt{
			Message:    s.mismatch.UserMessage(),
			AllowForce: s.mismatch.AllowForce,
			RequestID:  s.mismatch.RequestID,
		}
	}
	if len(s.loopErrors) > 0 {
		view.LoopErrors = make(map[LoopName]*LoopError, len(s.loopErrors))
		for name, le := range s.loopErrors {
			copied := *le
			view.LoopErrors[name] = &copied
		}
	}
	return view
}

// deriveStepLocked projects job state plus local selections into the UI
// step. Stale candidate or frame data never factors into the decision beyond
// "previews ready".
func (s *Session) deriveStepLocked() model.Step {
	if s.job == nil {
		return model.StepIdle
	}
	if s.job.Status.Terminal() {
		return model.StepProcessing
	}
	if s.job.PlayerRef == nil {
		if len(s.frames) > 0 || s.job.Status.AwaitingInput() {
			return model.StepPlayer
		}
		return model.StepProcessing
	}
	if !s.job.Target.Confirmed {
		return model.StepTarget
	}
	return model.StepProcessing
}
