package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"drivermgr/internal/paths"
)

// Entry records one resolved version for a (name, major version) pair.
type Entry struct {
	MajorVersion string    `json:"major_version"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Metadata is the persisted resolution cache. Entry order is significant:
// lookups return the first match.
type Metadata struct {
	Drivers  []Entry `json:"drivers"`
	Browsers []Entry `json:"browsers"`
}

// NewEntry builds an entry that expires ttl after now.
func NewEntry(major, name, version string, ttl time.Duration, now time.Time) Entry {
	return Entry{
		MajorVersion: major,
		Name:         name,
		Version:      version,
		ExpiresAt:    now.Add(ttl).UTC(),
	}
}

// Find returns the version of the first entry matching name and major whose
// expiry is strictly after now. Expired entries are skipped, not removed.
func Find(entries []Entry, name, major string, now time.Time) (string, bool) {
	for _, e := range entries {
		if e.Name != name || e.MajorVersion != major {
			continue
		}
		if e.ExpiresAt.After(now) {
			return e.Version, true
		}
	}
	return "", false
}

// Replace drops every entry for e's name and major and appends e.
func Replace(entries []Entry, e Entry) []Entry {
	out := entries[:0:0]
	for _, old := range entries {
		if old.Name == e.Name && old.MajorVersion == e.MajorVersion {
			continue
		}
		out = append(out, old)
	}
	return append(out, e)
}

// Load reads the metadata file. A missing, unreadable or malformed file
// yields empty metadata; the problem is logged and caching is forfeited.
func Load(path string, log logrus.FieldLogger) Metadata {
	m, err := read(path)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("path", path).Warn("metadata unreadable, continuing without cache")
		}
		return Metadata{}
	}
	return m
}

func read(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, nil
		}
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

// Save rewrites the whole document through a temp file and rename.
func Save(path string, m Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare metadata directory: %w", err)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// Update applies fn to the current on-disk metadata under a lock file and
// persists the result, so concurrent runs append rather than overwrite each
// other's entries.
func Update(ctx context.Context, path string, log logrus.FieldLogger, fn func(*Metadata)) error {
	unlock, err := paths.Lock(ctx, path+".lock")
	if err != nil {
		return err
	}
	defer unlock()

	m := Load(path, log)
	fn(&m)
	return Save(path, m)
}
