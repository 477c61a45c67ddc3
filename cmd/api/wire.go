//go:build wireinject

package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/config"
	"github.com/sefazor/ourphotos-gallery/internal/handler"
	"github.com/sefazor/ourphotos-gallery/internal/metrics"
	"github.com/sefazor/ourphotos-gallery/internal/repository"
	"github.com/sefazor/ourphotos-gallery/internal/service"
	"github.com/sefazor/ourphotos-gallery/pkg/utils"
)

func InitializeAPI(ctx context.Context, cfg *config.Config, log *zap.Logger) (*fiber.App, error) {
	wire.Build(
		// Storage
		provideBucket,

		// Metrics
		metrics.New,

		// Repositories
		provideManifestRepository,
		repository.NewUploadRepository,

		// Services
		provideQRService,
		service.NewEventService,
		service.NewPhotoService,

		// Validator
		utils.NewValidator,

		// Handlers
		handler.NewEventHandler,
		handler.NewPhotoHandler,

		// App
		NewFiberApp,
	)
	return nil, nil
}
