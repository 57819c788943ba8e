package orchestrator

import (
	"context"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/model"
)

// Two-phase target protocol: a drafted box is saved tentatively, then a
// second explicit action finalizes it. A TARGET_MISMATCH answer blocks the
// draft; force is only ever sent after the user explicitly chooses it, and
// only when the analyzer said it may.

// DraftTarget captures a target drag into the local draft slot. Nothing is
// sent yet.
func (s *Session) DraftTarget(drag Drag) error {
	sel, err := s.captureSelection(drag)
	if err != nil {
		return err
	}
	s.mutate(func() {
		s.targetDraft = []model.Selection{sel}
		s.targetPhase = model.TargetDraft
		s.mismatch = nil
	})
	return nil
}

// SaveTarget sends the drafted selections for tentative persistence.
func (s *Session) SaveTarget(ctx context.Context) error {
	s.mu.Lock()
	draft := append([]model.Selection(nil), s.targetDraft...)
	phase := s.targetPhase
	s.mu.Unlock()

	if phase != model.TargetDraft || len(draft) == 0 {
		return apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"no drafted target selection to save")
	}
	return s.submitTarget(ctx, draft, false)
}

// ConfirmTarget finalizes the pending target. force resubmits over a
// mismatch block and is only honored when the analyzer reported allowForce
// and the caller explicitly asked for it.
func (s *Session) ConfirmTarget(ctx context.Context, force bool) error {
	s.mu.Lock()
	draft := append([]model.Selection(nil), s.targetDraft...)
	phase := s.targetPhase
	allowForce := s.mismatch != nil && s.mismatch.AllowForce
	s.mu.Unlock()

	if len(draft) == 0 {
		return apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"no target selection to confirm")
	}
	if force {
		if phase != model.TargetMismatchBlocked || !allowForce {
			return apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
				"force is not available for this target")
		}
		return s.submitTarget(ctx, draft, true)
	}
	if phase != model.TargetPendingConfirm {
		return apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"no pending target to confirm")
	}
	return s.submitTarget(ctx, draft, false)
}

// RetryMismatch discards the blocked draft so the user can re-draw.
func (s *Session) RetryMismatch() {
	s.mutate(func() {
		s.targetDraft = nil
		s.targetPhase = model.TargetNone
		s.mismatch = nil
	})
}

func (s *Session) submitTarget(ctx context.Context, draft []model.Selection, force bool) error {
	job, err := s.api.SaveTargetSelection(ctx, s.jobID, draft, force)
	if err != nil {
		if e := apperr.As(err); e != nil && e.Kind == apperr.KindTargetMismatch {
			s.mutate(func() {
				s.targetPhase = model.TargetMismatchBlocked
				s.mismatch = e
			})
			s.pushError(e)
			return err
		}
		s.noteActionError(err)
		return err
	}

	s.mutate(func() {
		s.job = job
		s.mismatch = nil
		if job.Target.Confirmed {
			s.targetPhase = model.TargetConfirmed
			s.targetDraft = nil
		} else {
			s.targetPhase = model.TargetPendingConfirm
		}
	})
	return nil
}
