package deploy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/deployctl/pkg/ratelimit"
)

const (
	tracerName = "deployctl"
	userAgent  = "deployctl"

	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
)

// Client is a small REST client shared by the platform gateways, adding rate
// limiting, request counting and a bounded retry of transient failures on top
// of net/http.
type Client struct {
	BaseURL    string       // Base URL of the platform API
	Token      string       // Bearer token authenticating the requests
	HTTPClient *http.Client // Underlying HTTP client

	RateLimiter     ratelimit.Limiter        // RateLimiter paces requests to stay under the platform's API limits.
	RateCounter     *ratecounter.RateCounter // RateCounter tracks the per-second request rate for debug logging.
	RequestsCounter atomic.Uint64            // RequestsCounter counts total requests sent.

	// MaxAttempts bounds the transport-level retries of transient failures
	// (network errors, 429 and 5xx responses). Anything beyond this small
	// bound is the caller's decision.
	MaxAttempts    int
	InitialBackoff time.Duration
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	BaseURL          string
	Token            string
	UserAgentVersion string
	DisableTLSVerify bool
	RateLimiter      ratelimit.Limiter
}

// NewHTTPClient creates an HTTP client with optional TLS verification
// disabling. It clones the default transport to preserve proxy settings and
// other defaults.
func NewHTTPClient(disableTLSVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: disableTLSVerify}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// NewAPIClient creates a Client from the given configuration.
func NewAPIClient(cfg ClientConfig) *Client {
	return &Client{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		HTTPClient:     NewHTTPClient(cfg.DisableTLSVerify),
		RateLimiter:    cfg.RateLimiter,
		RateCounter:    ratecounter.NewRateCounter(time.Second),
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
	}
}

// apiError represents a non-2xx platform response.
type apiError struct {
	StatusCode int
	Body       string
}

func (e apiError) Error() string {
	return fmt.Sprintf("platform API responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// do performs one API call, retrying transient failures a bounded number of
// times with exponential backoff. The response body is decoded into out when
// non-nil. It returns the final HTTP status code.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) (int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "deploy:"+method+" "+path)
	defer span.End()

	var body []byte

	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return 0, errors.Wrap(err, "encoding request payload")
		}
	}

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	backoff := c.InitialBackoff

	var lastErr error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.WithContext(ctx).
				WithFields(log.Fields{
					"attempt": attempt,
					"backoff": backoff.String(),
					"path":    path,
				}).
				Debug("retrying platform API request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}

			backoff *= 2
		}

		status, err := c.doOnce(ctx, method, endpoint, body, out)
		if err == nil {
			return status, nil
		}

		lastErr = err

		// Only transient failures are worth another attempt.
		var apiErr apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500 {
			return apiErr.StatusCode, err
		}
	}

	return 0, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out interface{}) (int, error) {
	if c.RateLimiter != nil {
		ratelimit.Take(ctx, c.RateLimiter)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, errors.Wrap(err, "building request")
	}

	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.RequestsCounter.Add(1)
	c.RateCounter.Incr(1)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "performing request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decoding response body")
		}
	}

	return resp.StatusCode, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (int, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, query url.Values, payload, out interface{}) (int, error) {
	return c.do(ctx, http.MethodPost, path, query, payload, out)
}
