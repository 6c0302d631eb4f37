package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Envelope is the JSON wrapper shared by every API response.
type Envelope struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Pagination any      `json:"pagination,omitempty"`
}

// JSON writes a successful envelope.
func JSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Paginated writes a successful envelope carrying a page of data.
func Paginated(c *fiber.Ctx, data, pagination any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

// Error writes a failed envelope. errs is omitted from the body when empty.
func Error(c *fiber.Ctx, status int, message string, errs ...string) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// ErrorHandler answers errors that escaped the handlers. *fiber.Error keeps its
// code and message; anything else is logged and reported as a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Error(c, fe.Code, fe.Message)
		}

		log.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
}
