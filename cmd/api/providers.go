package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/config"
	"github.com/sefazor/ourphotos-gallery/internal/handler"
	"github.com/sefazor/ourphotos-gallery/internal/metrics"
	"github.com/sefazor/ourphotos-gallery/internal/middleware"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/internal/repository"
	"github.com/sefazor/ourphotos-gallery/internal/service"
	"github.com/sefazor/ourphotos-gallery/pkg/qrcode"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

// Multipart overhead on top of the largest accepted photo.
const bodyLimit = service.MaxEventUploadSize + 1<<20

func provideBucket(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Bucket, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryStorage(), nil
	}
	r2, err := storage.NewCloudflareStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return r2, nil
}

func provideManifestRepository(bucket storage.Bucket, log *zap.Logger, m *metrics.Metrics) *repository.ManifestRepository {
	repo := repository.NewManifestRepository(bucket, log)
	repo.OnConflict = m.ManifestConflicts.Inc
	return repo
}

func provideQRService(cfg *config.Config) *qrcode.QRService {
	return qrcode.NewQRService(cfg.PublicURL)
}

func NewFiberApp(
	cfg *config.Config,
	log *zap.Logger,
	eventHandler *handler.EventHandler,
	photoHandler *handler.PhotoHandler,
	m *metrics.Metrics,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ourphotos-gallery",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(middleware.AccessLog(log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		AllowMethods: "GET, POST",
	}))
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c *fiber.Ctx) bool {
				// Image reads come in bursts from a single gallery page.
				return c.Path() == "/api/img" || c.Path() == "/healthz"
			},
		}))
	}

	handler.RegisterRoutes(app, eventHandler, photoHandler, m)

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	return app
}

// errorHandler renders framework errors (unknown route, body limit) in the
// API error format.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	if code == fiber.StatusRequestEntityTooLarge {
		msg = "File too large"
	}

	return c.Status(code).JSON(models.ErrorResponse(msg))
}
