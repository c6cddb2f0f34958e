package http

import (
	stderrors "errors"

	"rockmap-rules/internal/shared/errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the Google API error envelope the emulator answers with
type ErrorBody struct {
	Error ErrorStatus `json:"error"`
}

// ErrorStatus carries the HTTP code, message and Firestore status of a failed call
type ErrorStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// writeError renders err as an ErrorBody. Errors that are not AppErrors are INTERNAL.
func writeError(c *fiber.Ctx, err error) error {
	body := ErrorBody{Error: ErrorStatus{
		Code:    fiber.StatusInternalServerError,
		Message: err.Error(),
		Status:  errors.StatusInternal,
	}}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.HTTPCode != 0 {
			body.Error.Code = appErr.HTTPCode
		}
		body.Error.Status = appErr.Status()
	}
	return c.Status(body.Error.Code).JSON(body)
}
