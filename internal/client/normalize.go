package client

import (
	"strconv"
	"strings"
	"time"

	"github.com/playsight/api/internal/model"
)

// The analyzer contract evolved across versions: the same field shows up as
// camelCase or snake_case, numbers sometimes arrive as strings, and some
// payloads come wrapped in {ok, data}. Everything is funneled through the
// normalizers below; precedence per field is camelCase first, then
// snake_case, then legacy aliases. Absent or unparsable numerics stay nil,
// never 0 — "no value" and "time zero" are different things.

func pick(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(m map[string]interface{}, keys ...string) string {
	v, ok := pick(m, keys...)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func pickBool(m map[string]interface{}, keys ...string) bool {
	v, ok := pick(m, keys...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func pickMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	mm, _ := v.(map[string]interface{})
	return mm
}

func pickSlice(m map[string]interface{}, keys ...string) []interface{} {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	s, _ := v.([]interface{})
	return s
}

// pickNumber coerces numeric-looking strings; anything else stays nil.
func pickNumber(m map[string]interface{}, keys ...string) *float64 {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	return asNumber(v)
}

func asNumber(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func pickTime(m map[string]interface{}, keys ...string) *time.Time {
	s := pickString(m, keys...)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// NormalizeJob converts any analyzer job payload into the canonical Job.
// Idempotent: normalizing an already-canonical payload changes nothing.
func NormalizeJob(raw map[string]interface{}) *model.Job {
	if raw == nil {
		return nil
	}
	job := &model.Job{
		ID:        pickString(raw, "jobId", "job_id", "id"),
		Status:    model.JobStatus(strings.ToUpper(pickString(raw, "status"))),
		CreatedAt: pickTime(raw, "createdAt", "created_at"),
		UpdatedAt: pickTime(raw, "updatedAt", "updated_at"),
	}

	if p := pickMap(raw, "progress"); p != nil {
		job.Progress = model.Progress{
			Step:    pickString(p, "step", "currentStep", "current_step"),
			Pct:     pickNumber(p, "pct", "percent"),
			Message: pickString(p, "message"),
		}
	}

	if pr := pickMap(raw, "playerRef", "player_ref"); pr != nil {
		sel := normalizeSelection(pr)
		job.PlayerRef = &sel
	}

	if tg := pickMap(raw, "target"); tg != nil {
		job.Target.Confirmed = pickBool(tg, "confirmed")
		for _, item := range pickSlice(tg, "selections") {
			if sm, ok := item.(map[string]interface{}); ok {
				job.Target.Selections = append(job.Target.Selections, normalizeSelection(sm))
			}
		}
	}

	if res := pickMap(raw, "result"); res != nil {
		job.Result = res
	}

	switch e := raw["error"].(type) {
	case string:
		if e != "" {
			job.Error = &e
		}
	case map[string]interface{}:
		if msg := pickString(e, "message"); msg != "" {
			job.Error = &msg
		}
	}

	for _, w := range pickSlice(raw, "warnings") {
		if s, ok := w.(string); ok {
			job.Warnings = append(job.Warnings, s)
		}
	}

	return job
}

// NormalizeFrames converts a frame-listing payload. Accepts either a bare
// array or an object carrying "frames".
func NormalizeFrames(raw interface{}) []model.PreviewFrame {
	items := asItemList(raw, "frames")
	frames := make([]model.PreviewFrame, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		frame := model.PreviewFrame{
			Key:     pickString(m, "key", "frameKey", "frame_key"),
			TimeSec: pickNumber(m, "timeSec", "time_sec", "frameTimeSec", "frame_time_sec"),
			URL:     pickString(m, "url", "imageUrl", "image_url"),
			Width:   pickNumber(m, "width"),
			Height:  pickNumber(m, "height"),
		}
		for _, t := range pickSlice(m, "tracks") {
			if tm, ok := t.(map[string]interface{}); ok {
				frame.Tracks = append(frame.Tracks, model.FrameTrack{
					TrackID: pickString(tm, "trackId", "track_id"),
					Box:     normalizeBox(tm),
				})
			}
		}
		if frame.Key != "" {
			frames = append(frames, frame)
		}
	}
	return frames
}

// NormalizeCandidates converts a candidate-listing payload.
func NormalizeCandidates(raw interface{}) []model.TrackCandidate {
	items := asItemList(raw, "candidates", "tracks")
	out := make([]model.TrackCandidate, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cand := model.TrackCandidate{
			TrackID:      pickString(m, "trackId", "track_id"),
			Tier:         normalizeTier(pickString(m, "tier")),
			Coverage:     pickNumber(m, "coverage"),
			Stability:    pickNumber(m, "stability"),
			AvgBoxArea:   pickNumber(m, "avgBoxArea", "avg_box_area"),
			ThumbnailURL: pickString(m, "thumbnailUrl", "thumbnail_url"),
		}
		for _, s := range pickSlice(m, "sampleFrames", "sample_frames") {
			if sm, ok := s.(map[string]interface{}); ok {
				cand.SampleFrames = append(cand.SampleFrames, model.SampleFrame{
					FrameKey: pickString(sm, "frameKey", "frame_key"),
					TimeSec:  pickNumber(sm, "timeSec", "time_sec", "frameTimeSec", "frame_time_sec"),
					Box:      normalizeBox(sm),
				})
			}
		}
		if cand.TrackID != "" {
			out = append(out, cand)
		}
	}
	return out
}

func normalizeTier(s string) model.CandidateTier {
	switch strings.ToLower(s) {
	case "primary":
		return model.TierPrimary
	case "secondary":
		return model.TierSecondary
	default:
		return model.TierOther
	}
}

func normalizeSelection(m map[string]interface{}) model.Selection {
	return model.Selection{
		FrameKey:     pickString(m, "frameKey", "frame_key"),
		FrameTimeSec: pickNumber(m, "frameTimeSec", "frame_time_sec"),
		TrackID:      pickString(m, "trackId", "track_id"),
		Box:          normalizeBox(m),
	}
}

// normalizeBox reads a box either nested under "box" or flattened onto the
// carrying object.
func normalizeBox(m map[string]interface{}) model.Box {
	src := m
	if nested := pickMap(m, "box"); nested != nil {
		src = nested
	}
	var b model.Box
	if v := pickNumber(src, "x"); v != nil {
		b.X = *v
	}
	if v := pickNumber(src, "y"); v != nil {
		b.Y = *v
	}
	if v := pickNumber(src, "w", "width"); v != nil {
		b.W = *v
	}
	if v := pickNumber(src, "h", "height"); v != nil {
		b.H = *v
	}
	return b
}

func asItemList(raw interface{}, keys ...string) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		return pickSlice(v, keys...)
	default:
		return nil
	}
}

// selectionWire is the outgoing shape. Written in snake_case consistently;
// the analyzer accepts both.
type selectionWire struct {
	FrameKey     string   `json:"frame_key,omitempty"`
	FrameTimeSec *float64 `json:"frame_time_sec,omitempty"`
	TrackID      string   `json:"track_id,omitempty"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	W            float64  `json:"w"`
	H            float64  `json:"h"`
}

func toWire(sel model.Selection) selectionWire {
	return selectionWire{
		FrameKey:     sel.FrameKey,
		FrameTimeSec: sel.FrameTimeSec,
		TrackID:      sel.TrackID,
		X:            sel.Box.X,
		Y:            sel.Box.Y,
		W:            sel.Box.W,
		H:            sel.Box.H,
	}
}

func toWireList(sels []model.Selection) []selectionWire {
	out := make([]selectionWire, 0, len(sels))
	for _, s := range sels {
		out = append(out, toWire(s))
	}
	return out
}
