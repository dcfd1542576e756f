package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gopscope/pkg/models"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Analysis metrics
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	FramesAnalyzed   prometheus.Counter
	GOPsDetected     prometheus.Counter
	GOPSize          prometheus.Histogram
	Seekability      prometheus.Histogram
	KeyframeInterval prometheus.Histogram

	// Probe metrics
	ProbeDuration prometheus.Histogram
	ProbeErrors   prometheus.Counter

	// Upload metrics
	Uploads     prometheus.Counter
	UploadSize  prometheus.Histogram
	MediaStored prometheus.Gauge
	BytesStored prometheus.Gauge
	Subscribers prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		// Analysis metrics
		Analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gopscope_analyses_total",
				Help: "Total number of GOP analyses",
			},
			[]string{"source", "result"}, // source: frames or probe
		),
		AnalysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gopscope_analysis_duration_seconds",
				Help:    "Wall time of GOP analyses including any probe",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
			},
			[]string{"source"},
		),
		FramesAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopscope_frames_analyzed_total",
			Help: "Total number of frames grouped into GOPs",
		}),
		GOPsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopscope_gops_detected_total",
			Help: "Total number of GOPs detected",
		}),
		GOPSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopscope_gop_size_frames",
			Help:    "Number of frames per detected GOP",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512 frames
		}),
		Seekability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopscope_seekability_score",
			Help:    "Seekability score of analyzed streams",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		KeyframeInterval: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopscope_keyframe_interval_seconds",
			Help:    "Average keyframe interval of analyzed streams",
			Buckets: []float64{0.5, 1, 2, 4, 6, 8, 10, 15, 30},
		}),

		// Probe metrics
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopscope_probe_duration_seconds",
			Help:    "Duration of ffprobe runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		ProbeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopscope_probe_errors_total",
			Help: "Total number of failed ffprobe runs",
		}),

		// Upload metrics
		Uploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "gopscope_uploads_total",
			Help: "Total number of media uploads",
		}),
		UploadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gopscope_upload_size_bytes",
			Help:    "Size of uploaded media in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 2, 12), // 1MB to ~2GB
		}),
		MediaStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gopscope_media_stored",
			Help: "Number of media files currently registered",
		}),
		BytesStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gopscope_bytes_stored",
			Help: "Total bytes of registered media",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gopscope_event_subscribers",
			Help: "Number of open analysis event streams",
		}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gopscope_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gopscope_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	return m
}

// RecordAnalysis records a successful analysis and its per-GOP sizes
func (m *Metrics) RecordAnalysis(source string, result *models.GOPAnalysis, durationSeconds float64) {
	m.Analyses.WithLabelValues(source, "ok").Inc()
	m.AnalysisDuration.WithLabelValues(source).Observe(durationSeconds)
	m.FramesAnalyzed.Add(float64(result.TotalFrames))
	m.GOPsDetected.Add(float64(len(result.GOPs)))
	for _, g := range result.GOPs {
		m.GOPSize.Observe(float64(g.FrameCount))
	}
	m.Seekability.Observe(result.Stats.SeekabilityScore)
	m.KeyframeInterval.Observe(result.Stats.KeyframeIntervalSec)
}

// RecordAnalysisFailure records an analysis that returned an error
func (m *Metrics) RecordAnalysisFailure(source, reason string, durationSeconds float64) {
	m.Analyses.WithLabelValues(source, reason).Inc()
	m.AnalysisDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordProbe records an ffprobe run
func (m *Metrics) RecordProbe(durationSeconds float64, err error) {
	m.ProbeDuration.Observe(durationSeconds)
	if err != nil {
		m.ProbeErrors.Inc()
	}
}

// RecordUpload records a stored upload
func (m *Metrics) RecordUpload(sizeBytes int64) {
	m.Uploads.Inc()
	m.UploadSize.Observe(float64(sizeBytes))
	m.MediaStored.Inc()
	m.BytesStored.Add(float64(sizeBytes))
}

// RecordMediaDeleted records a media file removed from the registry
func (m *Metrics) RecordMediaDeleted(sizeBytes int64) {
	m.MediaStored.Dec()
	m.BytesStored.Sub(float64(sizeBytes))
}

// RecordSubscriberStart records an event stream opening
func (m *Metrics) RecordSubscriberStart() {
	m.Subscribers.Inc()
}

// RecordSubscriberStop records an event stream closing
func (m *Metrics) RecordSubscriberStop() {
	m.Subscribers.Dec()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// statusClass converts an HTTP status code to its class label
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
