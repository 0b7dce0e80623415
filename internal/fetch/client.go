package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"drivermgr/internal/logx"
)

const (
	defaultTimeout = 300 * time.Second
	userAgent      = "drivermgr/1.0"
)

// Options configures a Client.
type Options struct {
	// Name labels the client's circuit breaker in logs.
	Name    string
	Timeout time.Duration
	// Proxy is an optional proxy URL applied to every request.
	Proxy string
	// RequestsPerSecond paces outbound requests; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	Logger            logrus.FieldLogger
	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Client issues the GET requests vendors need against their feeds. Each
// manager owns one Client, so a failing vendor only trips its own breaker.
// A Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	noFollow *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      logrus.FieldLogger
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := opts.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != "" {
			proxyURL, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, fmt.Errorf("parse proxy %q: %w", opts.Proxy, err)
			}
			base.Proxy = http.ProxyURL(proxyURL)
		}
		transport = base
	}

	log := opts.Logger
	if log == nil {
		log = logx.Discard()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	name := opts.Name
	if name == "" {
		name = "vendor-feeds"
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker %s changed from %v to %v", name, from, to)
		},
		// Unexpected statuses are answers from a live server.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se)
		},
	}

	return &Client{
		http: &http.Client{Timeout: timeout, Transport: transport},
		noFollow: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, rawURL string, handle func(*http.Response) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		c.log.WithField("url", rawURL).Debug("GET")
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		return nil, handle(resp)
	})
	return err
}

func checkStatus(rawURL string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: rawURL, Status: resp.Status, Code: resp.StatusCode}
	}
	return nil
}

// Bytes returns the body of a successful GET.
func (c *Client) Bytes(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, c.http, rawURL, func(resp *http.Response) error {
		if err := checkStatus(rawURL, resp); err != nil {
			return err
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s: %w", rawURL, err)
		}
		body = data
		return nil
	})
	return body, err
}

// Text returns the body as trimmed text. A UTF-16 or UTF-8 byte order mark
// selects the decoding; bodies without one are read as UTF-8.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	data, err := c.Bytes(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// DecodeText converts a feed body to a trimmed UTF-8 string.
func DecodeText(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// JSON decodes the body of rawURL into out.
func (c *Client) JSON(ctx context.Context, rawURL string, out any) error {
	data, err := c.Bytes(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Field fetches a JSON document and returns the string at the gjson path.
func (c *Client) Field(ctx context.Context, rawURL, path string) (string, error) {
	data, err := c.Bytes(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("decode %s: invalid json", rawURL)
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", fmt.Errorf("field %q missing in %s", path, rawURL)
	}
	return res.String(), nil
}

// Redirect issues a GET without following redirects and returns the
// Location the server answered with.
func (c *Client) Redirect(ctx context.Context, rawURL string) (string, error) {
	var location string
	err := c.do(ctx, c.noFollow, rawURL, func(resp *http.Response) error {
		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return &StatusError{URL: rawURL, Status: resp.Status, Code: resp.StatusCode}
		}
		location = resp.Header.Get("Location")
		if location == "" {
			return fmt.Errorf("GET %s: redirect without location", rawURL)
		}
		return nil
	})
	return location, err
}

// Download streams rawURL into dest through a temp file in the same
// directory, so dest is either complete or absent.
func (c *Client) Download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	return c.do(ctx, c.http, rawURL, func(resp *http.Response) error {
		if err := checkStatus(rawURL, resp); err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer func() { _ = os.Remove(tmpPath) }()

		if _, err := io.Copy(tmpFile, resp.Body); err != nil {
			tmpFile.Close()
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := tmpFile.Close(); err != nil {
			return fmt.Errorf("close temp file: %w", err)
		}
		if err := os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("finalize download: %w", err)
		}
		return nil
	})
}
