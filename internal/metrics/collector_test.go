package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CacheMetrics(t *testing.T) {
	collector := NewCollector()

	initialHits := testutil.ToFloat64(cacheHits.WithLabelValues(Driver, "chromedriver"))
	initialMisses := testutil.ToFloat64(cacheMisses.WithLabelValues(Driver, "chromedriver"))

	collector.RecordCacheHit(Driver, "chromedriver")
	collector.RecordCacheHit(Driver, "chromedriver")
	collector.RecordCacheMiss(Driver, "chromedriver")

	assert.Equal(t, initialHits+2, testutil.ToFloat64(cacheHits.WithLabelValues(Driver, "chromedriver")))
	assert.Equal(t, initialMisses+1, testutil.ToFloat64(cacheMisses.WithLabelValues(Driver, "chromedriver")))
}

func TestCollector_RemoteOutcomes(t *testing.T) {
	collector := NewCollector()

	ok := testutil.ToFloat64(remoteResolutions.WithLabelValues("edge", "success"))
	failed := testutil.ToFloat64(remoteResolutions.WithLabelValues("edge", "error"))

	collector.RecordRemote("edge", nil)
	collector.RecordRemote("edge", errors.New("boom"))
	collector.RecordRemote("edge", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(remoteResolutions.WithLabelValues("edge", "success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(remoteResolutions.WithLabelValues("edge", "error")))
}

func TestCollector_Downloads(t *testing.T) {
	collector := NewCollector()

	before := testutil.ToFloat64(downloads.WithLabelValues(Browser, "firefox", "success"))
	collector.RecordDownload(Browser, "firefox", 2*time.Second, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(downloads.WithLabelValues(Browser, "firefox", "success")))
}

func TestCollector_Uptime(t *testing.T) {
	collector := NewCollector()
	collector.startTime = time.Now().Add(-time.Minute)
	assert.GreaterOrEqual(t, collector.Uptime(), time.Minute)
}

func TestWriteTextfile(t *testing.T) {
	NewCollector().RecordCacheMiss(Browser, "edge")

	path := filepath.Join(t.TempDir(), "drivermgr.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "drivermgr_metadata_cache_misses_total"))
}
