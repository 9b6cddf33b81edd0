package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/services"
)

const (
	codeInternal       = "INTERNAL_ERROR"
	codeNotImplemented = "NOT_IMPLEMENTED"
)

var statusByCode = map[string]int{
	apperror.CodeEmptyFile:         fiber.StatusBadRequest,
	apperror.CodeUnsupportedFormat: fiber.StatusBadRequest,
	apperror.CodeCorruptDocument:   fiber.StatusBadRequest,
	apperror.CodeNotFound:          fiber.StatusNotFound,
	apperror.CodeStorageFailure:    fiber.StatusInternalServerError,
	apperror.CodeSerialization:     fiber.StatusInternalServerError,
	apperror.CodeRemote:            fiber.StatusBadGateway,
}

// respondError writes err as {"error", "code"} with the status its
// taxonomy code maps to.
func respondError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrIndexDisabled) {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": err.Error(),
			"code":  codeNotImplemented,
		})
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		log.Printf("❌ %s %s: %v\n", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
			"code":  codeInternal,
		})
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %v\n", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

// ErrorHandler is the app-level fiber error handler. Errors that escape a
// handler get the same {"error", "code"} body as respondError, with fiber
// errors coded from their status text (404 becomes "NOT_FOUND").
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return respondError(c, err)
	}

	return c.Status(fiberErr.Code).JSON(fiber.Map{
		"error": fiberErr.Message,
		"code":  statusCode(fiberErr.Code),
	})
}

func statusCode(status int) string {
	text := utils.StatusMessage(status)
	if text == "" {
		return codeInternal
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
