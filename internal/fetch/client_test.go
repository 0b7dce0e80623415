package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{})
	require.NoError(t, err)
	return c
}

func TestTextDecodesUTF16WithBOM(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("120.0.2210.91\r\n")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	text, err := newTestClient(t).Text(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "120.0.2210.91", text)
}

func TestDecodeTextPlainUTF8(t *testing.T) {
	text, err := DecodeText([]byte("  114.0.5735.90\n"))
	require.NoError(t, err)
	assert.Equal(t, "114.0.5735.90", text)
}

func TestFieldAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"LATEST_FIREFOX_VERSION":"121.0","builds":{"120":{"version":"120.0.6099.109"}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	v, err := c.Field(context.Background(), srv.URL, "LATEST_FIREFOX_VERSION")
	require.NoError(t, err)
	assert.Equal(t, "121.0", v)

	_, err = c.Field(context.Background(), srv.URL, "missing")
	assert.Error(t, err)

	var doc map[string]any
	require.NoError(t, c.JSON(context.Background(), srv.URL, &doc))
	assert.Equal(t, "121.0", doc["LATEST_FIREFOX_VERSION"])
}

func TestRedirectDoesNotFollow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/releases/latest" {
			http.Redirect(w, r, "/releases/tag/v0.34.0", http.StatusFound)
			return
		}
		t.Errorf("redirect was followed to %s", r.URL.Path)
	}))
	defer srv.Close()

	loc, err := newTestClient(t).Redirect(context.Background(), srv.URL+"/releases/latest")
	require.NoError(t, err)
	assert.Equal(t, "/releases/tag/v0.34.0", loc)
}

func TestStatusErrorDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t)
	for i := 0; i < 10; i++ {
		_, err := c.Bytes(context.Background(), srv.URL)
		var se *StatusError
		require.True(t, errors.As(err, &se), "attempt %d: %v", i, err)
		assert.Equal(t, http.StatusNotFound, se.Code)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t)
	for i := 0; i < 5; i++ {
		_, err := c.Bytes(context.Background(), url)
		require.Error(t, err)
	}
	_, err := c.Bytes(context.Background(), url)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerIsPerClient(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := down.URL
	down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer up.Close()

	edge, err := New(Options{Name: "edge"})
	require.NoError(t, err)
	chrome, err := New(Options{Name: "chrome"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := edge.Bytes(context.Background(), downURL)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, edge.breaker.State())
	assert.Equal(t, "edge", edge.breaker.Name())

	body, err := chrome.Bytes(context.Background(), up.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, gobreaker.StateClosed, chrome.breaker.State())
}

func TestDownloadWritesAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "sub", "driver.zip")
	c := newTestClient(t)
	require.NoError(t, c.Download(context.Background(), srv.URL+"/ok", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	failed := filepath.Join(dir, "failed.zip")
	require.Error(t, c.Download(context.Background(), srv.URL+"/missing", failed))
	_, err = os.Stat(failed)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestNewRejectsBadProxy(t *testing.T) {
	_, err := New(Options{Proxy: "://bad"})
	assert.Error(t, err)
}
