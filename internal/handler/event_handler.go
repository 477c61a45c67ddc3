package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/internal/service"
	"github.com/sefazor/ourphotos-gallery/pkg/utils"
)

type EventHandler struct {
	eventService *service.EventService
	validator    *utils.Validator
	log          *zap.Logger
}

func NewEventHandler(eventService *service.EventService, validator *utils.Validator, log *zap.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		validator:    validator,
		log:          log,
	}
}

// parseJSON decodes, trims and validates a JSON request body. The body is
// decoded whatever Content-Type the client sent.
func (h *EventHandler) parseJSON(c *fiber.Ctx, req normalizer) error {
	if err := c.App().Config().JSONDecoder(c.Body(), req); err != nil {
		return apperror.BadRequest("Expected JSON")
	}
	req.Normalize()
	if err := h.validator.Struct(req); err != nil {
		return apperror.BadRequest(h.validator.Message(err))
	}
	return nil
}

func (h *EventHandler) parseQuery(c *fiber.Ctx, q normalizer) error {
	if err := c.QueryParser(q); err != nil {
		return apperror.BadRequest("Invalid query")
	}
	q.Normalize()
	if err := h.validator.Struct(q); err != nil {
		return apperror.BadRequest(h.validator.Message(err))
	}
	return nil
}

func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	var req models.CreateEventRequest
	if err := h.parseJSON(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	eventID, err := h.eventService.CreateEvent(c.UserContext(), req)
	if err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(models.CreateEventResponse{OK: true, EventID: eventID})
}

func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	var q models.EventQuery
	if err := h.parseQuery(c, &q); err != nil {
		return fail(c, h.log, err)
	}

	raw, err := h.eventService.GetEvent(c.UserContext(), q.EventID)
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, "application/json; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "private, max-age=30")
	return c.Send(raw)
}

func (h *EventHandler) UpdateEvent(c *fiber.Ctx) error {
	var req models.UpdateEventRequest
	if err := h.parseJSON(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	if err := h.eventService.UpdateEvent(c.UserContext(), req); err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(models.SuccessResponse())
}

func (h *EventHandler) DeleteEvent(c *fiber.Ctx) error {
	var req models.DeleteEventRequest
	if err := h.parseJSON(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	deleted, err := h.eventService.DeleteEvent(c.UserContext(), req)
	if err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(models.DeleteEventResponse{OK: true, Deleted: deleted})
}

func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.eventService.ListEvents(c.UserContext())
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=30")
	return c.JSON(models.EventsResponse{Events: events})
}

func (h *EventHandler) SweepEvent(c *fiber.Ctx) error {
	var req models.SweepEventRequest
	if err := h.parseJSON(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	removed, err := h.eventService.SweepEvent(c.UserContext(), req.EventID, service.DefaultSweepGrace)
	if err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(models.SweepEventResponse{OK: true, Removed: removed})
}

func (h *EventHandler) EventQR(c *fiber.Ctx) error {
	var q models.EventQRQuery
	if err := h.parseQuery(c, &q); err != nil {
		return fail(c, h.log, err)
	}

	png, err := h.eventService.ShareQR(c.UserContext(), q.EventID, q.Size)
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(png)
}
