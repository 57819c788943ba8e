package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeProxyError      = "PROXY_ERROR"
	CodeConfigError     = "CONFIG_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeTargetMismatch  = "TARGET_MISMATCH"
	CodeInvalidFrameKey = "INVALID_FRAME_KEY"
	CodeTrackNotInFrame = "TRACK_NOT_IN_FRAME"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeServiceError    = "SERVICE_ERROR"
)

// ErrorResponse is the canonical failure envelope: every error leaving this
// service, whether produced locally or relayed from the analyzer, has this shape.
type ErrorResponse struct {
	OK    bool        `json:"ok"`
	Error ErrorDetail `json:"error"`
	Meta  ErrorMeta   `json:"meta"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorMeta struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse wraps success payloads.
type SuccessResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func Error(c *fiber.Ctx, status int, code, message, requestID string) error {
	return ErrorWithDetails(c, status, code, message, requestID, nil)
}

func ErrorWithDetails(c *fiber.Ctx, status int, code, message, requestID string, details interface{}) error {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(status).JSON(ErrorResponse{
		OK: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: ErrorMeta{
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return ErrorWithDetails(c, fiber.StatusBadRequest, CodeValidationError, message, "", details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, "")
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", "")
}

func ConfigError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeConfigError, message, "")
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, "")
}

func OK(c *fiber.Ctx, data interface{}) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(SuccessResponse{OK: true, Data: data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusCreated).JSON(SuccessResponse{OK: true, Data: data})
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusAccepted).JSON(SuccessResponse{OK: true, Data: data})
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
