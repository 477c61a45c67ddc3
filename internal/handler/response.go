package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/models"
)

type normalizer interface {
	Normalize()
}

// fail writes err as {"ok":false,"error":...} with its mapped status.
func fail(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperror.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(models.ErrorResponse(apperror.PublicMessage(err)))
}
