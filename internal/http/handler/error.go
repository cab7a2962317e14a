package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docflow/internal/http/middleware"
	"docflow/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response. message must be safe to expose.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// errorBody is the envelope content for a service error: HTTP status, code and safe message.
func errorBody(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "file exceeds the upload size limit"
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err)
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", "document not found"
	case errors.Is(err, service.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION", "status can only move forward"
	case errors.Is(err, service.ErrURLUnavailable):
		return fiber.StatusNotFound, "URL_UNAVAILABLE", "no public url for this document"
	case errors.Is(err, service.ErrStorageWrite):
		return fiber.StatusBadGateway, "STORAGE_ERROR", "object storage rejected the upload"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// writeServiceError maps a service error onto the standardized envelope.
func writeServiceError(c *fiber.Ctx, err error) error {
	status, code, msg := errorBody(err)
	return writeError(c, status, code, msg)
}

// validationMessage exposes the validation detail, which only describes caller input.
func validationMessage(err error) string {
	var ie *service.IngestError
	if errors.As(err, &ie) {
		err = ie.Err
	}
	return err.Error()
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", fe.Message)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
