package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Metadata cache lookups
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermgr_metadata_cache_hits_total",
			Help: "Resolutions answered from the metadata cache",
		},
		[]string{"artifact", "name"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermgr_metadata_cache_misses_total",
			Help: "Resolutions that had to consult a vendor feed",
		},
		[]string{"artifact", "name"},
	)

	// Vendor feed queries
	remoteResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermgr_remote_resolutions_total",
			Help: "Vendor feed queries by outcome",
		},
		[]string{"vendor", "outcome"},
	)

	// Materialization
	downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermgr_downloads_total",
			Help: "Artifact downloads by outcome",
		},
		[]string{"artifact", "name", "outcome"},
	)

	downloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivermgr_download_duration_seconds",
			Help:    "Time spent downloading and extracting artifacts",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"artifact"},
	)
)

// Artifact classes used as label values.
const (
	Driver  = "driver"
	Browser = "browser"
)

// Collector records resolution and provisioning activity.
type Collector struct {
	startTime time.Time
}

// NewCollector creates a metrics collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) RecordCacheHit(artifact, name string) {
	cacheHits.WithLabelValues(artifact, name).Inc()
}

func (c *Collector) RecordCacheMiss(artifact, name string) {
	cacheMisses.WithLabelValues(artifact, name).Inc()
}

// RecordRemote records one vendor feed query.
func (c *Collector) RecordRemote(vendor string, err error) {
	remoteResolutions.WithLabelValues(vendor, outcome(err)).Inc()
}

// RecordDownload records a materialization attempt that fetched an artifact.
func (c *Collector) RecordDownload(artifact, name string, duration time.Duration, err error) {
	downloads.WithLabelValues(artifact, name, outcome(err)).Inc()
	downloadDuration.WithLabelValues(artifact).Observe(duration.Seconds())
}

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// WriteTextfile dumps every registered metric in the node_exporter textfile
// format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
