package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline is returned when a resolution needs the network but the
	// run is offline. No request is attempted.
	ErrOffline = errors.New("offline mode: version not in metadata cache and network access is disabled")
	// ErrNotFound means materialization finished but the expected artifact
	// is absent.
	ErrNotFound = errors.New("artifact not found after download")
	// ErrUnsupported marks requests a vendor cannot serve, such as a pinned
	// browser version its feed does not publish.
	ErrUnsupported = errors.New("not supported")
	// ErrCacheDegraded is logged when the metadata cache cannot be written.
	// It never fails a run.
	ErrCacheDegraded = errors.New("metadata cache degraded")
)

// RemoteError is a failed vendor feed query. There is no fallback.
type RemoteError struct {
	Vendor   string
	Endpoint string
	Detail   string
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s: %s", e.Vendor, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Vendor, e.Endpoint, e.Detail)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError wraps err as a RemoteError. ErrUnsupported and existing
// RemoteErrors pass through unchanged, and a nil err stays nil.
func NewRemoteError(vendor, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return &RemoteError{Vendor: vendor, Endpoint: endpoint, Detail: err.Error(), Err: err}
}
