package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sefazor/ourphotos-gallery/internal/metrics"
	"github.com/sefazor/ourphotos-gallery/internal/models"
)

// RegisterRoutes mounts the gallery API on app.
func RegisterRoutes(app *fiber.App, events *EventHandler, photos *PhotoHandler, m *metrics.Metrics) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(models.SuccessResponse())
	})
	app.Get("/metrics", m.Handler())

	api := app.Group("/api")

	// Events
	api.Post("/event-create", events.CreateEvent)
	api.Get("/event", events.GetEvent)
	api.Post("/event-update", events.UpdateEvent)
	api.Post("/event-delete", events.DeleteEvent)
	api.Post("/event-sweep", events.SweepEvent)
	api.Get("/event-qr", events.EventQR)
	api.Get("/events", events.ListEvents)
	api.Post("/event-upload", photos.UploadEventPhoto)

	// Images and standalone uploads
	api.Get("/img", photos.GetImage)
	api.Get("/list", photos.ListUploads)
	api.Get("/meta", photos.Meta)
	api.Post("/upload", photos.Upload)
}
