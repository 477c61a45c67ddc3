package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sefazor/ourphotos-gallery/internal/apperror"
	"github.com/sefazor/ourphotos-gallery/internal/metrics"
	"github.com/sefazor/ourphotos-gallery/internal/models"
	"github.com/sefazor/ourphotos-gallery/internal/repository"
	"github.com/sefazor/ourphotos-gallery/pkg/qrcode"
	"github.com/sefazor/ourphotos-gallery/pkg/storage"
)

const (
	maxSampleKeys     = 12
	manifestReads     = 8
	DefaultSweepGrace = 10 * time.Minute
)

type EventService struct {
	manifests *repository.ManifestRepository
	qr        *qrcode.QRService
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewEventService(
	manifests *repository.ManifestRepository,
	qr *qrcode.QRService,
	m *metrics.Metrics,
	log *zap.Logger,
) *EventService {
	return &EventService{
		manifests: manifests,
		qr:        qr,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// CreateEvent stores a new, empty manifest and returns its generated id.
func (s *EventService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (string, error) {
	eventID, err := newEventID(req.Title, req.Date)
	if err != nil {
		return "", err
	}

	now := timestamp(s.now())
	m := &models.Manifest{
		EventID:   eventID,
		Title:     req.Title,
		Date:      req.Date,
		Note:      req.Note,
		Cover:     "",
		Photos:    []models.Photo{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.manifests.Create(ctx, m); err != nil {
		return "", err
	}

	s.metrics.EventsCreated.Inc()
	return eventID, nil
}

// GetEvent returns the stored manifest bytes unchanged.
func (s *EventService) GetEvent(ctx context.Context, eventID string) ([]byte, error) {
	return s.manifests.LoadRaw(ctx, eventID)
}

// UpdateEvent changes title, date and note. Photos and cover are carried
// over from whatever version of the manifest the write lands on.
func (s *EventService) UpdateEvent(ctx context.Context, req models.UpdateEventRequest) error {
	_, err := s.manifests.Mutate(ctx, req.EventID, func(m *models.Manifest) error {
		m.Title = req.Title
		m.Date = req.Date
		m.Note = req.Note
		m.UpdatedAt = timestamp(s.now())
		return nil
	})
	return err
}

// DeleteEvent removes every object under the event prefix. Deleting an
// unknown event succeeds with a zero count.
func (s *EventService) DeleteEvent(ctx context.Context, req models.DeleteEventRequest) (int, error) {
	if !req.Force {
		return 0, apperror.BadRequest("Missing force=true")
	}

	objects, err := s.manifests.ListObjects(ctx, req.EventID)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	deleted, err := s.manifests.DeleteKeys(ctx, storage.Keys(objects))
	if err != nil {
		return deleted, err
	}

	s.metrics.EventsDeleted.Inc()
	s.log.Info("event deleted", zap.String("event_id", req.EventID), zap.Int("objects", deleted))
	return deleted, nil
}

// ListEvents summarizes every readable manifest, newest date first.
func (s *EventService) ListEvents(ctx context.Context) ([]models.EventSummary, error) {
	keys, err := s.manifests.ListManifestKeys(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]*models.EventSummary, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(manifestReads)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			m, err := s.manifests.LoadKey(gctx, key)
			if err != nil {
				// Vanished or unparseable manifests are left out.
				s.log.Debug("skipping manifest", zap.String("key", key), zap.Error(err))
				return nil
			}
			found[i] = summarize(key, m)
			return nil
		})
	}
	// Workers skip bad manifests instead of failing the group.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := make([]models.EventSummary, 0, len(found))
	for _, e := range found {
		if e != nil {
			events = append(events, *e)
		}
	}
	SortEvents(events)
	return events, nil
}

// SortEvents orders by date descending, then title ascending.
func SortEvents(events []models.EventSummary) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date > events[j].Date
		}
		return events[i].Title < events[j].Title
	})
}

func summarize(key string, m *models.Manifest) *models.EventSummary {
	eventID := m.EventID
	if eventID == "" {
		eventID = strings.TrimSuffix(strings.TrimPrefix(key, repository.EventsPrefix), "/manifest.json")
	}

	e := &models.EventSummary{
		EventID:    eventID,
		Title:      m.Title,
		Date:       m.Date,
		Note:       m.Note,
		SampleKeys: []string{},
		Count:      len(m.Photos),
	}
	if m.Cover != "" {
		e.CoverKey = repository.PhotoKey(eventID, m.Cover)
	}

	for i := len(m.Photos) - 1; i >= 0 && len(e.SampleKeys) < maxSampleKeys; i-- {
		if f := m.Photos[i].File; f != "" {
			e.SampleKeys = append(e.SampleKeys, repository.PhotoKey(eventID, f))
		}
	}
	return e
}

// SweepEvent deletes objects under the event prefix that the manifest does
// not reference and that are older than grace. These are left behind when
// a blob was stored but the manifest update never landed.
func (s *EventService) SweepEvent(ctx context.Context, eventID string, grace time.Duration) (int, error) {
	m, _, err := s.manifests.Load(ctx, eventID)
	if err != nil {
		return 0, err
	}

	objects, err := s.manifests.ListObjects(ctx, eventID)
	if err != nil {
		return 0, err
	}

	manifestKey := repository.ManifestKey(eventID)
	cutoff := s.now().Add(-grace)
	var orphans []string
	for _, o := range objects {
		if o.Key == manifestKey {
			continue
		}
		file := strings.TrimPrefix(o.Key, repository.EventPrefix(eventID))
		if m.References(file) || o.LastModified.After(cutoff) {
			continue
		}
		orphans = append(orphans, o.Key)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	removed, err := s.manifests.DeleteKeys(ctx, orphans)
	s.metrics.ObjectsSwept.Add(float64(removed))
	if err != nil {
		return removed, err
	}

	s.log.Info("swept orphaned objects", zap.String("event_id", eventID), zap.Int("removed", removed))
	return removed, nil
}

// ShareQR renders the share link QR code of an existing event.
func (s *EventService) ShareQR(ctx context.Context, eventID string, size int) ([]byte, error) {
	if _, _, err := s.manifests.Load(ctx, eventID); err != nil {
		if apperror.IsKind(err, apperror.KindInternal) {
			// A damaged manifest still has a valid share link.
			s.log.Warn("sharing event with unreadable manifest", zap.String("event_id", eventID))
		} else {
			return nil, err
		}
	}

	png, err := s.qr.GenerateQRCode(eventID, size)
	if err != nil {
		return nil, apperror.Internal("Failed to generate QR code", err)
	}
	return png, nil
}
