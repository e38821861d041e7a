package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string         `json:"error"`
	View  *workflow.View `json:"session,omitempty"`
}

// statusFor maps a workflow error to its HTTP status: caller input is 400,
// a busy engine or wrong stage is 409 and a failed stage is 502.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErrs), workflow.IsValidationError(err):
		return fiber.StatusBadRequest
	case workflow.IsConflictError(err):
		return fiber.StatusConflict
	default:
		return fiber.StatusBadGateway
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(errorResponse{Error: err.Error()})
}

// fail reports err together with the session view after the failed operation.
func (s *APIServer) fail(c *fiber.Ctx, err error) error {
	view := s.engine.Snapshot()
	return c.Status(statusFor(err)).JSON(errorResponse{Error: err.Error(), View: &view})
}
