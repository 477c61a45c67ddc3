package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KiB = float64(1024)
	MiB = float64(1024 * KiB)
)

const (
	ModeEvent  = "event"
	ModeLegacy = "legacy"
)

type Metrics struct {
	registry *prometheus.Registry

	EventsCreated     prometheus.Counter
	EventsDeleted     prometheus.Counter
	PhotosUploaded    *prometheus.CounterVec
	UploadSize        prometheus.Histogram
	ManifestConflicts prometheus.Counter
	ObjectsSwept      prometheus.Counter
}

// New registers the gallery collectors on a fresh registry, so several
// instances can coexist in tests.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_events_created_total",
			Help: "Number of events created",
		}),
		EventsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_events_deleted_total",
			Help: "Number of event delete calls that removed objects",
		}),
		PhotosUploaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_photos_uploaded_total",
				Help: "Number of stored photos",
			},
			[]string{"mode"},
		),
		UploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "gallery_upload_bytes",
			Help: "Sizes of uploaded photos",
			Buckets: []float64{
				512 * KiB,
				MiB,
				2 * MiB,
				4 * MiB,
				8 * MiB,
				16 * MiB,
				32 * MiB,
			},
		}),
		ManifestConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_manifest_conflicts_total",
			Help: "Number of manifest writes lost to a concurrent update",
		}),
		ObjectsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_objects_swept_total",
			Help: "Number of orphaned objects removed by sweeps",
		}),
	}

	m.registry.MustRegister(
		m.EventsCreated,
		m.EventsDeleted,
		m.PhotosUploaded,
		m.UploadSize,
		m.ManifestConflicts,
		m.ObjectsSwept,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) PhotoStored(mode string, size int64) {
	m.PhotosUploaded.WithLabelValues(mode).Inc()
	m.UploadSize.Observe(float64(size))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
