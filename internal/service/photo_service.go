package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/metrics"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/internal/repository"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
	"github.com/sefazor/ourphotos-gallery/pkg/utils"
)

const (
	MaxEventUploadSize  = 50 << 20
	MaxLegacyUploadSize = 20 << 20
	MaxDescLength       = 500
	DefaultImageType    = "image/jpeg"
)

var errAlreadyRecorded = errors.New("upload already recorded")

type PhotoService struct {
	bucket    storage.Bucket
	manifests *repository.ManifestRepository
	uploads   *repository.UploadRepository
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewPhotoService(
	bucket storage.Bucket,
	manifests *repository.ManifestRepository,
	uploads *repository.UploadRepository,
	m *metrics.Metrics,
	log *zap.Logger,
) *PhotoService {
	return &PhotoService{
		bucket:    bucket,
		manifests: manifests,
		uploads:   uploads,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func checkImage(up models.PhotoUpload, max int64) error {
	if up.Body == nil {
		return apperror.BadRequest("Missing file")
	}
	if !isImageType(up.ContentType) {
		return apperror.BadRequest("Only image uploads allowed")
	}
	if up.Size > max {
		return apperror.PayloadTooLarge("File too large")
	}
	return nil
}

// UploadEventPhoto stores the image under the event prefix and appends it to
// the manifest. The blob goes first; if the manifest update fails the blob
// is removed again. A repeated UploadID returns the photo recorded for it.
func (s *PhotoService) UploadEventPhoto(ctx context.Context, up models.PhotoUpload) (*models.EventUploadResponse, error) {
	if !utils.IsValidEventID(up.EventID) {
		return nil, apperror.BadRequest("Invalid eventId")
	}
	if err := checkImage(up, MaxEventUploadSize); err != nil {
		return nil, err
	}

	m, _, err := s.manifests.Load(ctx, up.EventID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, apperror.NotFound("Event not found")
	}
	if err != nil {
		return nil, err
	}
	if p, ok := m.PhotoByUploadID(up.UploadID); ok {
		s.log.Debug("upload replayed", zap.String("event_id", up.EventID), zap.String("upload_id", up.UploadID))
		return eventUploadResponse(up.EventID, p.File), nil
	}

	now := s.now()
	filename, err := photoFilename(now, extension(up.ContentType, up.Filename))
	if err != nil {
		return nil, err
	}
	key := repository.PhotoKey(up.EventID, filename)

	if _, err := s.bucket.Put(ctx, key, up.Body, storage.PutOptions{
		ContentType:   up.ContentType,
		ContentLength: up.Size,
	}); err != nil {
		return nil, apperror.Internal("Failed to store photo", err)
	}

	var existing models.Photo
	_, err = s.manifests.Mutate(ctx, up.EventID, func(m *models.Manifest) error {
		if p, ok := m.PhotoByUploadID(up.UploadID); ok {
			existing = p
			return errAlreadyRecorded
		}
		m.Photos = append(m.Photos, models.Photo{
			File:       filename,
			Desc:       up.Desc,
			UploadedAt: timestamp(now),
			UploadID:   up.UploadID,
		})
		if m.Cover == "" {
			m.Cover = filename
		}
		m.UpdatedAt = timestamp(s.now())
		return nil
	})
	if err != nil {
		s.discard(ctx, key)
		if errors.Is(err, errAlreadyRecorded) {
			return eventUploadResponse(up.EventID, existing.File), nil
		}
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, apperror.NotFound("Event not found")
		}
		return nil, err
	}

	s.metrics.PhotoStored(metrics.ModeEvent, up.Size)
	s.log.Info("photo uploaded",
		zap.String("event_id", up.EventID),
		zap.String("file", filename),
		zap.Int64("size", up.Size),
	)
	return eventUploadResponse(up.EventID, filename), nil
}

// discard removes a blob whose manifest entry was never written. Failures
// leave an orphan for SweepEvent.
func (s *PhotoService) discard(ctx context.Context, key string) {
	if err := s.bucket.Delete(context.WithoutCancel(ctx), []string{key}); err != nil {
		s.log.Warn("failed to remove unreferenced photo", zap.String("key", key), zap.Error(err))
	}
}

func eventUploadResponse(eventID, file string) *models.EventUploadResponse {
	return &models.EventUploadResponse{
		OK:      true,
		Key:     repository.PhotoKey(eventID, file),
		EventID: eventID,
		File:    file,
	}
}

// GetImage opens a stored object. It returns storage.ErrNotModified when
// ifNoneMatch equals the current etag.
func (s *PhotoService) GetImage(ctx context.Context, key, ifNoneMatch string) (*storage.Object, error) {
	if key == "" {
		return nil, apperror.BadRequest("Missing key")
	}

	obj, err := s.bucket.Get(ctx, key, storage.GetOptions{IfNoneMatch: ifNoneMatch})
	switch {
	case errors.Is(err, storage.ErrNotModified):
		return nil, err
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperror.NotFound("Not found")
	case err != nil:
		return nil, apperror.Internal("Failed to read object", err)
	}

	if obj.ContentType == "" {
		obj.ContentType = DefaultImageType
	}
	return obj, nil
}

// Upload stores a standalone image under uploads/ with its description in
// a sidecar object.
func (s *PhotoService) Upload(ctx context.Context, up models.PhotoUpload) (string, error) {
	if err := checkImage(up, MaxLegacyUploadSize); err != nil {
		return "", err
	}

	key, err := uploadKey(s.now(), extension(up.ContentType, up.Filename))
	if err != nil {
		return "", err
	}

	if err := s.uploads.Put(ctx, key, up.Body, up.ContentType, up.Size); err != nil {
		return "", apperror.Internal("Failed to store upload", err)
	}
	if err := s.uploads.PutDesc(ctx, key, utils.Truncate(up.Desc, MaxDescLength)); err != nil {
		s.discard(ctx, key)
		return "", apperror.Internal("Failed to store description", err)
	}

	s.metrics.PhotoStored(metrics.ModeLegacy, up.Size)
	return key, nil
}

func (s *PhotoService) ListUploads(ctx context.Context) ([]models.Item, error) {
	items, err := s.uploads.List(ctx)
	if err != nil {
		return nil, apperror.Internal("Failed to list uploads", err)
	}
	return items, nil
}

// Meta returns the description of an existing object, "" when it has none.
func (s *PhotoService) Meta(ctx context.Context, key string) (*models.MetaResponse, error) {
	if key == "" {
		return nil, apperror.BadRequest("Missing key")
	}

	ok, err := s.uploads.Exists(ctx, key)
	if err != nil {
		return nil, apperror.Internal("Failed to read object", err)
	}
	if !ok {
		return nil, apperror.NotFound("Not found")
	}

	desc, err := s.uploads.Desc(ctx, key)
	if err != nil {
		return nil, apperror.Internal("Failed to read description", err)
	}
	return &models.MetaResponse{Key: key, Desc: desc}, nil
}
