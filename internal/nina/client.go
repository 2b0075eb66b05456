// Package nina speaks to the imaging control endpoint's HTTP API and
// models the payloads the monitor cares about.
package nina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "starwatch/pkg/logx"
)

const apiPrefix = "/v2/api"

type Config struct {
	BaseURL       string
	Timeout       time.Duration // per-request; default 30s
	RetryAttempts int           // retries after the first failed attempt; default 3
}

// Client is a thin retrying GET client. All responses are decoded as one
// JSON document, so a single malformed entry fails the whole batch.
type Client struct {
	http    *http.Client
	baseURL string
	retries int
	log     logx.Logger
}

// HTTPError is a non-2xx response. These are returned immediately, without
// retrying.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("nina: base_url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("nina: base_url must start with http:// or https://")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.RetryAttempts
	if retries < 0 {
		retries = 0
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		retries: retries,
		log:     log,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

type envelope[T any] struct {
	Response   T      `json:"Response"`
	Error      string `json:"Error"`
	StatusCode int    `json:"StatusCode"`
	Success    bool   `json:"Success"`
	Type       string `json:"Type"`
}

// getJSON fetches endpoint (under the API prefix) and decodes the whole
// body into an envelope. Network and decode failures are retried with a
// linear backoff; HTTP-level errors are not.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (envelope[T], error) {
	var zero envelope[T]

	u := c.baseURL + apiPrefix + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request",
				logx.String("endpoint", endpoint),
				logx.Int("attempt", attempt+1),
				logx.Int("max", c.retries+1))
			if err := sleepCtx(ctx, time.Duration(attempt)*time.Second); err != nil {
				return zero, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return zero, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return zero, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		var env envelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", endpoint, err)
			continue
		}
		return env, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: all attempts failed", endpoint)
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EventHistory fetches the full event history.
func (c *Client) EventHistory(ctx context.Context) ([]Event, error) {
	env, err := getJSON[[]Event](ctx, c, "/event-history", nil)
	if err != nil {
		return nil, err
	}
	return env.Response, nil
}

// AllImageHistory fetches the image history for the whole session.
func (c *Client) AllImageHistory(ctx context.Context) ([]ImageMetadata, error) {
	q := url.Values{}
	q.Set("all", "true")
	env, err := getJSON[[]ImageMetadata](ctx, c, "/image-history", q)
	if err != nil {
		return nil, err
	}
	return env.Response, nil
}

// Sequence fetches the current sequence tree.
func (c *Client) Sequence(ctx context.Context) (*SequenceSnapshot, error) {
	env, err := getJSON[[]any](ctx, c, "/sequence/json", nil)
	if err != nil {
		return nil, err
	}
	return &SequenceSnapshot{Nodes: env.Response}, nil
}

// MountInfo fetches mount telemetry. Absence or failure of this endpoint
// is routine: callers must treat an error as "no mount info".
func (c *Client) MountInfo(ctx context.Context) (*MountInfo, error) {
	env, err := getJSON[MountInfo](ctx, c, "/equipment/mount/info", nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("mount info: %s", env.Error)
	}
	return &env.Response, nil
}

// LastAutofocus fetches the most recent autofocus run.
func (c *Client) LastAutofocus(ctx context.Context) (*AutofocusReport, error) {
	env, err := getJSON[AutofocusData](ctx, c, "/equipment/focuser/last-af", nil)
	if err != nil {
		return nil, err
	}
	return &AutofocusReport{
		Data:       env.Response,
		Error:      env.Error,
		StatusCode: env.StatusCode,
		Success:    env.Success,
	}, nil
}

// Version fetches the endpoint's API version string (health check).
func (c *Client) Version(ctx context.Context) (string, error) {
	env, err := getJSON[string](ctx, c, "/version", nil)
	if err != nil {
		return "", err
	}
	return env.Response, nil
}

// Thumbnail fetches the raw JPEG thumbnail for the image at the given
// history index.
func (c *Client) Thumbnail(ctx context.Context, index int) ([]byte, error) {
	u := fmt.Sprintf("%s%s/image/thumbnail/%d", c.baseURL, apiPrefix, index)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*time.Second); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			continue
		}
		return body, nil
	}
	return nil, lastErr
}
