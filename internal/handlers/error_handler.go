package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/views"
	"github.com/gofiber/fiber/v2"
)

const genericMessage = "Something went very wrong!"

// NewErrorHandler renders every error returned by a handler. verbose exposes kind, cause and
// stack; otherwise only operational messages reach the client.
func NewErrorHandler(verbose bool, log logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := classify(err)
		if !appErr.Operational {
			log.Error(c.UserContext(), "unhandled error",
				"method", c.Method(),
				"path", c.Path(),
				"err", err,
				"stack", appErr.Stack(),
			)
		}

		status := appErr.StatusCode
		message := appErr.Message
		if !verbose && !appErr.Operational {
			status = fiber.StatusInternalServerError
			message = genericMessage
		}

		if strings.HasPrefix(c.Path(), "/api") {
			body := fiber.Map{
				"status":  statusClass(status),
				"message": message,
			}
			if verbose {
				body["kind"] = appErr.Kind
				body["isOperational"] = appErr.Operational
				body["stack"] = appErr.Stack()
				if appErr.Err != nil {
					body["error"] = appErr.Err.Error()
				}
			}
			return c.Status(status).JSON(body)
		}

		if !verbose && !appErr.Operational {
			message = "Please try again later."
		}
		return c.Status(status).Render("error", fiber.Map{
			"Title": "Something went wrong!",
			"Msg":   message,
		}, views.Layout)
	}
}

// classify folds Fiber's own errors into the application taxonomy before normalizing.
func classify(err error) *apperror.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := apperror.KindInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			kind = apperror.KindNotFound
		case fe.Code == fiber.StatusRequestEntityTooLarge:
			kind = apperror.KindPayloadTooLarge
		case fe.Code == fiber.StatusTooManyRequests:
			kind = apperror.KindTooManyRequests
		case fe.Code >= 400 && fe.Code < 500:
			kind = apperror.KindValidation
		}
		if fe.Code < 500 {
			return apperror.Wrap(err, kind, fe.Code, fe.Message)
		}
	}
	return apperror.Normalize(err)
}

func statusClass(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}

// NotFound is the catch-all for unmatched routes.
func NotFound(c *fiber.Ctx) error {
	return apperror.NotFound(fmt.Sprintf("Can't find %s on this server!", c.OriginalURL()))
}
