package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestFindTTLBoundary(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := []Entry{
		{MajorVersion: "120", Name: "chromedriver", Version: "expired", ExpiresAt: now.Add(-time.Second)},
		{MajorVersion: "120", Name: "chromedriver", Version: "boundary", ExpiresAt: now},
	}

	_, ok := Find(entries, "chromedriver", "120", now)
	assert.False(t, ok, "entries expiring at or before now must miss")

	entries = append(entries, Entry{MajorVersion: "120", Name: "chromedriver", Version: "120.0.6099.109", ExpiresAt: now.Add(time.Nanosecond)})
	v, ok := Find(entries, "chromedriver", "120", now)
	require.True(t, ok)
	assert.Equal(t, "120.0.6099.109", v)
}

func TestReplaceDropsSameKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		NewEntry("beta", "firefox", "122.0b3", time.Hour, now),
		NewEntry("120", "chromedriver", "120.0.1", time.Hour, now),
	}
	got := Replace(entries, NewEntry("beta", "firefox", "123.0b1", time.Hour, now))
	require.Len(t, got, 2)
	assert.Equal(t, "122.0b3", entries[0].Version)

	v, ok := Find(got, "firefox", "beta", now)
	require.True(t, ok)
	assert.Equal(t, "123.0b1", v)
}

func TestFindFirstMatchWins(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{MajorVersion: "121", Name: "msedgedriver", Version: "other-major", ExpiresAt: now.Add(time.Hour)},
		{MajorVersion: "120", Name: "chromedriver", Version: "other-name", ExpiresAt: now.Add(time.Hour)},
		{MajorVersion: "120", Name: "msedgedriver", Version: "first", ExpiresAt: now.Add(time.Hour)},
		{MajorVersion: "120", Name: "msedgedriver", Version: "second", ExpiresAt: now.Add(2 * time.Hour)},
	}

	v, ok := Find(entries, "msedgedriver", "120", now)
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	m := Load(filepath.Join(dir, "absent.json"), quietLogger())
	assert.Empty(t, m.Drivers)
	assert.Empty(t, m.Browsers)

	corrupt := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	m = Load(corrupt, quietLogger())
	assert.Empty(t, m.Drivers)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metadata.json")
	now := time.Now().UTC().Truncate(time.Second)
	m := Metadata{
		Drivers:  []Entry{NewEntry("0", "geckodriver", "0.34.0", time.Hour, now)},
		Browsers: []Entry{NewEntry("beta", "firefox", "122.0b3", time.Hour, now)},
	}
	require.NoError(t, Save(path, m))

	loaded := Load(path, quietLogger())
	require.Len(t, loaded.Drivers, 1)
	assert.Equal(t, "0.34.0", loaded.Drivers[0].Version)
	assert.True(t, loaded.Drivers[0].ExpiresAt.Equal(now.Add(time.Hour)))
	require.Len(t, loaded.Browsers, 1)
	assert.Equal(t, "beta", loaded.Browsers[0].MajorVersion)
}

func TestUpdateConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := Update(context.Background(), path, quietLogger(), func(m *Metadata) {
				m.Drivers = append(m.Drivers, NewEntry("1"+string(rune('0'+i)), "chromedriver", "x", time.Hour, now))
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded := Load(path, quietLogger())
	assert.Len(t, loaded.Drivers, 8)
	_, err := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock file should be released")
}
