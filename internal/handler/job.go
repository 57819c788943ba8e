package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/playsight/api/internal/apperr"
	"github.com/playsight/api/internal/geometry"
	"github.com/playsight/api/internal/model"
	"github.com/playsight/api/internal/orchestrator"
	"github.com/playsight/api/pkg/response"
)

type JobHandler struct {
	manager   *orchestrator.Manager
	validator *validator.Validate
}

func NewJobHandler(m *orchestrator.Manager, v *validator.Validate) *JobHandler {
	return &JobHandler{
		manager:   m,
		validator: v,
	}
}

type createJobRequest struct {
	VideoURL string `json:"video_url" validate:"required,url"`
	Role     string `json:"role"`
	Category string `json:"category"`
}

type dragRequest struct {
	FrameKey   string  `json:"frameKey" validate:"required"`
	StartX     float64 `json:"startX"`
	StartY     float64 `json:"startY"`
	EndX       float64 `json:"endX"`
	EndY       float64 `json:"endY"`
	ContainerW float64 `json:"containerW" validate:"required,gt=0"`
	ContainerH float64 `json:"containerH" validate:"required,gt=0"`
}

func (r dragRequest) toDrag() orchestrator.Drag {
	return orchestrator.Drag{
		FrameKey:  r.FrameKey,
		Start:     geometry.Point{X: r.StartX, Y: r.StartY},
		End:       geometry.Point{X: r.EndX, Y: r.EndY},
		Container: geometry.Size{W: r.ContainerW, H: r.ContainerH},
	}
}

type pickPlayerRequest struct {
	FrameKey string `json:"frameKey" validate:"required"`
	TrackID  string `json:"trackId" validate:"required"`
}

type confirmTargetRequest struct {
	Force bool `json:"force"`
}

type retryLoopRequest struct {
	Loop string `json:"loop" validate:"required,oneof=status preview candidate"`
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req createJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sess, err := h.manager.CreateJob(c.Context(), &model.CreateJobRequest{
		VideoURL: req.VideoURL,
		Role:     req.Role,
		Category: req.Category,
	})
	if err != nil {
		return respondError(c, err)
	}
	return response.Created(c, sess.Snapshot())
}

// Enqueue handles POST /api/jobs/:jobId/enqueue
func (h *JobHandler) Enqueue(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := sess.Enqueue(c.Context()); err != nil {
		return respondError(c, err)
	}
	return response.Accepted(c, sess.Snapshot())
}

// View handles GET /api/jobs/:jobId/view
func (h *JobHandler) View(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// OpenFrame handles POST /api/jobs/:jobId/frames/:frameKey/open
func (h *JobHandler) OpenFrame(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := sess.OpenFrame(c.Params("frameKey")); err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// SavePlayer handles POST /api/jobs/:jobId/player
func (h *JobHandler) SavePlayer(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dragRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := sess.SavePlayerReference(c.Context(), req.toDrag()); err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// PickPlayer handles POST /api/jobs/:jobId/player/pick
func (h *JobHandler) PickPlayer(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	var req pickPlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := sess.PickCandidate(c.Context(), req.FrameKey, req.TrackID); err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// SaveTarget handles POST /api/jobs/:jobId/target — drafts the box from the
// drag and sends it for tentative persistence in one step.
func (h *JobHandler) SaveTarget(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dragRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := sess.DraftTarget(req.toDrag()); err != nil {
		return respondError(c, err)
	}
	if err := sess.SaveTarget(c.Context()); err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// ConfirmTarget handles POST /api/jobs/:jobId/target/confirm
func (h *JobHandler) ConfirmTarget(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	var req confirmTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := sess.ConfirmTarget(c.Context(), req.Force); err != nil {
		return respondError(c, err)
	}
	return response.OK(c, sess.Snapshot())
}

// RetryTarget handles POST /api/jobs/:jobId/target/retry — discards a
// mismatch-blocked draft so the user can re-draw.
func (h *JobHandler) RetryTarget(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}
	sess.RetryMismatch()
	return response.OK(c, sess.Snapshot())
}

// RetryLoop handles POST /api/jobs/:jobId/loops/retry
func (h *JobHandler) RetryLoop(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return respondError(c, err)
	}

	var req retryLoopRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sess.RetryLoop(orchestrator.LoopName(req.Loop))
	return response.OK(c, sess.Snapshot())
}

// Close handles DELETE /api/jobs/:jobId — tears the session down, cancelling
// all polling loops.
func (h *JobHandler) Close(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}
	h.manager.Close(jobID)
	return response.NoContent(c)
}

func (h *JobHandler) session(c *fiber.Ctx) (*orchestrator.Session, error) {
	jobID := c.Params("jobId")
	if jobID == "" {
		return nil, apperr.New(apperr.KindInvalidPayload, response.CodeValidationError, "Job ID is required")
	}
	sess, ok := h.manager.Get(jobID)
	if !ok {
		return nil, apperr.New(apperr.KindUnknown, response.CodeNotFound, "Job not tracked: "+jobID)
	}
	return sess, nil
}

// respondError maps a normalized error onto the wire envelope. The analyzer
// message is kept verbatim when present; request ids survive for support
// correlation.
func respondError(c *fiber.Ctx, err error) error {
	e := apperr.As(err)
	if e == nil {
		return response.ServiceError(c, err.Error())
	}

	code := e.Code
	if code == "" {
		switch e.Kind {
		case apperr.KindTimeout:
			code = response.CodeTimeout
		case apperr.KindTransport:
			code = response.CodeUpstreamError
		case apperr.KindConfig:
			code = response.CodeConfigError
		case apperr.KindInternal:
			code = response.CodeInternalError
		default:
			code = response.CodeServiceError
		}
	}

	status := e.Status()
	if code == response.CodeNotFound {
		status = fiber.StatusNotFound
	}
	if code == response.CodeValidationError {
		status = fiber.StatusBadRequest
	}

	if e.Kind == apperr.KindTargetMismatch {
		return response.ErrorWithDetails(c, status, code, e.UserMessage(), e.RequestID,
			fiber.Map{"allowForce": e.AllowForce})
	}
	return response.Error(c, status, code, e.UserMessage(), e.RequestID)
}
