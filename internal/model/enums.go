package model

// Job status, as reported by the analyzer.
type JobStatus string

const (
	JobStatusQueued              JobStatus = "QUEUED"
	JobStatusRunning             JobStatus = "RUNNING"
	JobStatusProcessing          JobStatus = "PROCESSING"
	JobStatusWaitingForPlayer    JobStatus = "WAITING_FOR_PLAYER"
	JobStatusWaitingForSelection JobStatus = "WAITING_FOR_SELECTION"
	JobStatusLowCoverage         JobStatus = "LOW_COVERAGE"
	JobStatusCompleted           JobStatus = "COMPLETED"
	JobStatusPartial             JobStatus = "PARTIAL"
	JobStatusFailed              JobStatus = "FAILED"
)

// Terminal reports whether the analyzer will make no further progress.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	}
	return false
}

// AwaitingInput reports whether the job is parked on user input.
func (s JobStatus) AwaitingInput() bool {
	switch s {
	case JobStatusWaitingForPlayer, JobStatusWaitingForSelection, JobStatusLowCoverage:
		return true
	}
	return false
}

// Step is the derived UI step, a pure projection of job state plus local
// selections. It is recomputed on every snapshot, never stored.
type Step string

const (
	StepIdle       Step = "IDLE"
	StepPlayer     Step = "PLAYER"
	StepTarget     Step = "TARGET"
	StepProcessing Step = "PROCESSING"
)

// Progress step names reported by the analyzer pipeline. The status poll
// interval adapts to these.
const (
	ProgressStepExtract          = "extract"
	ProgressStepDetect           = "detect"
	ProgressStepTracking         = "tracking"
	ProgressStepScoring          = "scoring"
	ProgressStepCandidatesFailed = "CANDIDATES_FAILED"
)

// Candidate tier, a coarse confidence bucket.
type CandidateTier string

const (
	TierPrimary   CandidateTier = "primary"
	TierSecondary CandidateTier = "secondary"
	TierOther     CandidateTier = "other"
)

// Target confirmation phases.
type TargetPhase string

const (
	TargetNone            TargetPhase = "none"
	TargetDraft           TargetPhase = "draft"
	TargetPendingConfirm  TargetPhase = "pending_confirm"
	TargetConfirmed       TargetPhase = "confirmed"
	TargetMismatchBlocked TargetPhase = "mismatch_blocked"
)
