package model

import "time"

// Job is the canonical in-memory job representation. The analyzer reports the
// same concepts under shifting key casings and shapes across versions; the
// client normalizes all of them into this struct and nothing downstream ever
// sees a raw payload.
type Job struct {
	ID        string                 `json:"jobId"`
	Status    JobStatus              `json:"status"`
	Progress  Progress               `json:"progress"`
	PlayerRef *Selection             `json:"playerRef,omitempty"`
	Target    Target                 `json:"target"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Warnings  []string               `json:"warnings,omitempty"`
	CreatedAt *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt *time.Time             `json:"updatedAt,omitempty"`
}

// Progress describes where the analyzer pipeline currently is.
type Progress struct {
	Step    string   `json:"step,omitempty"`
	Pct     *float64 `json:"pct,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Target holds the tracking-target selections and whether the analyzer has
// accepted them. Confirmed is only ever set from a backend round trip.
type Target struct {
	Selections []Selection `json:"selections"`
	Confirmed  bool        `json:"confirmed"`
}

// PreviewFrame is a still sampled from the source video.
type PreviewFrame struct {
	Key     string       `json:"key"`
	TimeSec *float64     `json:"timeSec"` // nil when the frame has no timing metadata
	URL     string       `json:"url"`
	Width   *float64     `json:"width,omitempty"`
	Height  *float64     `json:"height,omitempty"`
	Tracks  []FrameTrack `json:"tracks,omitempty"`
}

// FrameTrack is a detection visible within one preview frame.
type FrameTrack struct {
	TrackID string `json:"trackId"`
	Box     Box    `json:"box"`
}

// TrackCandidate is an analyzer-detected, possibly-trackable subject offered
// to the user as a player choice. Read-only on this side.
type TrackCandidate struct {
	TrackID      string        `json:"trackId"`
	Tier         CandidateTier `json:"tier"`
	Coverage     *float64      `json:"coverage,omitempty"`
	Stability    *float64      `json:"stability,omitempty"`
	AvgBoxArea   *float64      `json:"avgBoxArea,omitempty"`
	ThumbnailURL string        `json:"thumbnailUrl,omitempty"`
	SampleFrames []SampleFrame `json:"sampleFrames,omitempty"`
}

// SampleFrame anchors a candidate box to a specific preview frame.
type SampleFrame struct {
	FrameKey string   `json:"frameKey"`
	TimeSec  *float64 `json:"timeSec,omitempty"`
	Box      Box      `json:"box"`
}

// Box is a rectangle in normalized frame coordinates, fractions of frame
// width/height.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Selection anchors a normalized box to a preview frame and, optionally, a
// detected track.
type Selection struct {
	FrameKey     string   `json:"frameKey,omitempty"`
	FrameTimeSec *float64 `json:"frameTimeSec,omitempty"`
	TrackID      string   `json:"trackId,omitempty"`
	Box          Box      `json:"box"`
}

// CreateJobRequest is the payload for creating a new analysis job.
type CreateJobRequest struct {
	VideoURL string `json:"video_url"`
	Role     string `json:"role,omitempty"`
	Category string `json:"category,omitempty"`
}
