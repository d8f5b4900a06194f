package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
)

// respondError 에러 종류를 HTTP 상태 코드로 변환
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrAuthenticationFailed):
		status = fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": apperr.MessageOf(err),
	})
}
