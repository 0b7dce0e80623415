package vendors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivermgr/internal/fetch"
	"drivermgr/internal/manager"
	"drivermgr/internal/platform"
)

// routes serves fixed bodies by request path; unknown paths are 404.
func routes(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := bodies[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRemote(t *testing.T) *fetch.Client {
	t.Helper()
	c, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	return c
}

func target(goos platform.OS, arch platform.Arch) manager.Target {
	return manager.Target{OS: goos, Arch: arch}
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"chrome", "edge", "firefox"}, Names())

	cases := map[string]string{
		"chrome":        "chromedriver",
		"Firefox":       "geckodriver",
		"ff":            "geckodriver",
		"msedge":        "msedgedriver",
		"MicrosoftEdge": "msedgedriver",
	}
	for name, driver := range cases {
		v, err := ByName(name, Options{})
		require.NoError(t, err, name)
		assert.Equal(t, driver, v.DriverName(), name)
	}

	_, err := ByName("safari", Options{})
	assert.ErrorContains(t, err, "chrome, edge, firefox")
}

func TestMirrorOverrides(t *testing.T) {
	ff := NewFirefox(Options{DriverMirrorURL: "https://mirror.example/geckodriver"})
	u, err := ff.DriverURL(target(platform.Linux, platform.X64), "0.34.0")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/geckodriver/download/v0.34.0/geckodriver-v0.34.0-linux64.tar.gz", u)

	edge := NewEdge(Options{DriverMirrorURL: "https://mirror.example/edge/"})
	u, err = edge.DriverURL(target(platform.Linux, platform.X64), "120.0.2210.91")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/edge/120.0.2210.91/edgedriver_linux64.zip", u)
}

func TestRecipesCoverEveryChannel(t *testing.T) {
	for _, name := range Names() {
		v, err := ByName(name, Options{})
		require.NoError(t, err)
		for _, goos := range []platform.OS{platform.Windows, platform.MacOS} {
			for _, ch := range []platform.Channel{platform.Stable, platform.Beta, platform.Dev, platform.Nightly} {
				r := v.Recipe(target(goos, platform.X64), ch)
				assert.Len(t, r.Paths, 1, "%s %s %s", name, goos, ch)
				assert.NotEmpty(t, r.RegistryKey)
				assert.NotEmpty(t, r.VersionFlag)
			}
		}
	}
}
