// Package orchestrator owns all client-held mutable state for one analysis
// job: status, derived UI step, polling loops, pending selections and the
// target confirmation protocol. Poll responses and user gestures flow in,
// view snapshots flow out; nothing here inspects presentation internals.
package orchestrator

import (
	"context"
	"sync"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/client"
	"github.com/playsight/api/internal/geometry"
	"github.com/playsight/api/internal/model"
)

// Notifier receives state pushes for UI subscribers. All methods are called
// outside the session lock.
type Notifier interface {
	JobView(jobID string, view View)
	JobWarning(jobID, message string)
	JobError(jobID, code, message, requestID string)
}

// SelectionBounds is the allowed size band for normalized boxes.
type SelectionBounds struct {
	MinBoxSize float64
	MaxBoxSize float64
}

// Session tracks one job. All mutable fields sit behind mu; polling
// goroutines and handler calls interleave freely.
type Session struct {
	jobID  string
	api    client.JobAPI
	tuning Tuning
	bounds SelectionBounds
	notify Notifier

	mu         sync.Mutex
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc

	job              *model.Job
	frames           []model.PreviewFrame
	framesFrozen     bool
	previewTimedOut  bool
	candidates       []model.TrackCandidate
	candidatesFailed bool
	pickedTrackID    string

	targetDraft []model.Selection
	targetPhase model.TargetPhase
	mismatch    *apperr.Error

	warnings   []string
	loopErrors map[LoopName]*LoopError
}

func newSession(jobID string, job *model.Job, api client.JobAPI, tuning Tuning, bounds SelectionBounds, notify Notifier) *Session {
	return &Session{
		jobID:       jobID,
		api:         api,
		tuning:      tuning,
		bounds:      bounds,
		notify:      notify,
		job:         job,
		targetPhase: model.TargetNone,
		loopErrors:  make(map[LoopName]*LoopError),
	}
}

// JobID returns the job this session tracks.
func (s *Session) JobID() string { return s.jobID }

// apply runs fn under the lock if gen still matches the session's current
// generation, then pushes a fresh view. A stale generation means the loop
// closure belongs to a superseded lifecycle and its write is discarded.
func (s *Session) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	fn()
	view := s.viewLocked()
	s.mu.Unlock()
	s.pushView(view)
	return true
}

// mutate is apply for user-initiated changes, which are always current.
func (s *Session) mutate(fn func()) {
	s.mu.Lock()
	fn()
	view := s.viewLocked()
	s.mu.Unlock()
	s.pushView(view)
}

func (s *Session) pushView(view View) {
	if s.notify != nil {
		s.notify.JobView(s.jobID, view)
	}
}

func (s *Session) pushWarning(message string) {
	if s.notify != nil {
		s.notify.JobWarning(s.jobID, message)
	}
}

func (s *Session) pushError(err *apperr.Error) {
	if s.notify != nil {
		s.notify.JobError(s.jobID, err.Code, err.UserMessage(), err.RequestID)
	}
}

// invalidate synchronously cuts off every outstanding loop closure: the
// generation bump makes late responses unappliable, the cancel aborts
// anything still in flight.
func (s *Session) invalidate() {
	s.mu.Lock()
	s.generation++
	cancel := s.cancel
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Enqueue asks the analyzer to start processing. Without a player reference
// the request is rejected locally; no network call is made.
func (s *Session) Enqueue(ctx context.Context) error {
	s.mu.Lock()
	hasPlayer := s.job != nil && s.job.PlayerRef != nil
	s.mu.Unlock()
	if !hasPlayer {
		return apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"a player reference must be confirmed before enqueueing")
	}

	job, err := s.api.EnqueueJob(ctx, s.jobID)
	if err != nil {
		return err
	}
	s.mutate(func() { s.job = job })
	return nil
}

// OpenFrame freezes the preview set and marks frameKey as the frame under
// edit. Once open, the displayed image set must not shift underneath the
// user's drag.
func (s *Session) OpenFrame(frameKey string) error {
	var err error
	s.mutate(func() {
		if s.frameByKeyLocked(frameKey) == nil {
			err = apperr.New(apperr.KindInvalidFrameKey, "INVALID_FRAME_KEY",
				"unknown preview frame: "+frameKey)
			return
		}
		s.framesFrozen = true
	})
	return err
}

// Drag is a user gesture in display-pixel space over an open preview frame.
type Drag struct {
	FrameKey  string
	Start     geometry.Point
	End       geometry.Point
	Container geometry.Size
}

// captureSelection converts a drag into a validated Selection anchored to a
// known preview frame. Geometry violations are resolved locally: the gesture
// is rejected and no selection exists.
func (s *Session) captureSelection(drag Drag) (model.Selection, error) {
	s.mu.Lock()
	frame := s.frameByKeyLocked(drag.FrameKey)
	s.mu.Unlock()
	if frame == nil {
		return model.Selection{}, apperr.New(apperr.KindInvalidFrameKey, "INVALID_FRAME_KEY",
			"unknown preview frame: "+drag.FrameKey)
	}

	box, ok := geometry.BoxFromDrag(drag.Start, drag.End, drag.Container)
	if !ok {
		return model.Selection{}, apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"drag produced no usable box")
	}
	if geometry.OutOfBounds(box) {
		return model.Selection{}, apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"box leaves the frame")
	}
	if geometry.SizeOutOfBand(box, s.bounds.MinBoxSize, s.bounds.MaxBoxSize) {
		return model.Selection{}, apperr.New(apperr.KindInvalidPayload, "INVALID_PAYLOAD",
			"box size is outside the allowed band")
	}

	return model.Selection{
		FrameKey:     frame.Key,
		FrameTimeSec: frame.TimeSec,
		Box:          box,
	}, nil
}

// SavePlayerReference captures a player drag and persists it. The confirmed
// player reference always comes back from the analyzer, never set locally.
func (s *Session) SavePlayerReference(ctx context.Context, drag Drag) error {
	sel, err := s.captureSelection(drag)
	if err != nil {
		return err
	}

	job, err := s.api.SavePlayerReference(ctx, s.jobID, sel)
	if err != nil {
		s.noteActionError(err)
		return err
	}
	s.mutate(func() { s.job = job })
	return nil
}

// PickCandidate selects an auto-detected track as the player.
func (s *Session) PickCandidate(ctx context.Context, frameKey, trackID string) error {
	s.mu.Lock()
	known := false
	for _, c := range s.candidates {
		if c.TrackID == trackID {
			known = true
			break
		}
	}
	s.mu.Unlock()
	if !known {
		return apperr.New(apperr.KindTrackNotInFrame, "TRACK_NOT_IN_FRAME",
			"track is not among the detected candidates: "+trackID)
	}

	job, err := s.api.PickPlayer(ctx, s.jobID, frameKey, trackID)
	if err != nil {
		s.noteActionError(err)
		return err
	}
	s.mutate(func() {
		s.job = job
		s.pickedTrackID = trackID
	})
	return nil
}

// frameByKeyLocked requires s.mu held.
func (s *Session) frameByKeyLocked(key string) *model.PreviewFrame {
	for i := range s.frames {
		if s.frames[i].Key == key {
			return &s.frames[i]
		}
	}
	return nil
}

// noteActionError applies the failure semantics for user-initiated calls:
// input errors clear the offending local selection, everything else only
// surfaces. Nothing is retried automatically.
func (s *Session) noteActionError(err error) {
	e := apperr.As(err)
	if e == nil {
		return
	}
	if apperr.ClearsSelection(err) {
		s.mutate(func() {
			s.targetDraft = nil
			if s.targetPhase == model.TargetDraft || s.targetPhase == model.TargetPendingConfirm {
				s.targetPhase = model.TargetNone
			}
		})
	}
	s.pushError(e)
}
