package handler

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/internal/service"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

type PhotoHandler struct {
	photoService *service.PhotoService
	log          *zap.Logger
}

func NewPhotoHandler(photoService *service.PhotoService, log *zap.Logger) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
		log:          log,
	}
}

// formUpload reads the multipart "file" part. The returned closer must be
// called once the upload is stored.
func formUpload(c *fiber.Ctx) (models.PhotoUpload, func(), error) {
	noop := func() {}
	if !strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return models.PhotoUpload{}, noop, apperror.BadRequest("Expected multipart/form-data")
	}

	up := models.PhotoUpload{
		EventID:  strings.TrimSpace(c.FormValue("eventId")),
		UploadID: strings.TrimSpace(c.FormValue("uploadId")),
		Desc:     c.FormValue("desc"),
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		return up, noop, apperror.PayloadTooLarge("File too large")
	}
	if err != nil {
		return up, noop, nil
	}

	f, err := fh.Open()
	if err != nil {
		return up, noop, apperror.Internal("Failed to read upload", err)
	}

	up.Filename = fh.Filename
	up.ContentType = fh.Header.Get(fiber.HeaderContentType)
	up.Size = fh.Size
	up.Body = f
	return up, func() { _ = f.Close() }, nil
}

func (h *PhotoHandler) UploadEventPhoto(c *fiber.Ctx) error {
	up, done, err := formUpload(c)
	defer done()
	if err != nil {
		return fail(c, h.log, err)
	}
	up.Desc = strings.TrimSpace(up.Desc)

	res, err := h.photoService.UploadEventPhoto(c.UserContext(), up)
	if err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(res)
}

func (h *PhotoHandler) GetImage(c *fiber.Ctx) error {
	ifNoneMatch := c.Get(fiber.HeaderIfNoneMatch)

	obj, err := h.photoService.GetImage(c.UserContext(), c.Query("key"), ifNoneMatch)
	if errors.Is(err, storage.ErrNotModified) {
		c.Set(fiber.HeaderETag, ifNoneMatch)
		return c.SendStatus(fiber.StatusNotModified)
	}
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	if obj.ETag != "" {
		c.Set(fiber.HeaderETag, obj.ETag)
	}
	return c.SendStream(obj.Body, int(obj.Size))
}

func (h *PhotoHandler) Upload(c *fiber.Ctx) error {
	up, done, err := formUpload(c)
	defer done()
	if err != nil {
		return fail(c, h.log, err)
	}

	key, err := h.photoService.Upload(c.UserContext(), up)
	if err != nil {
		return fail(c, h.log, err)
	}

	return c.JSON(models.UploadResponse{OK: true, Key: key})
}

func (h *PhotoHandler) ListUploads(c *fiber.Ctx) error {
	items, err := h.photoService.ListUploads(c.UserContext())
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=60")
	return c.JSON(models.ItemsResponse{Items: items})
}

func (h *PhotoHandler) Meta(c *fiber.Ctx) error {
	meta, err := h.photoService.Meta(c.UserContext(), c.Query("key"))
	if err != nil {
		return fail(c, h.log, err)
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=60")
	return c.JSON(meta)
}
