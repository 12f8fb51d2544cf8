package nameserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/firestoned/bindy/internal/metrics"
	"github.com/google/uuid"
	"k8s.io/client-go/util/flowcontrol"
)

// Zone is the payload describing a DNS zone to the management API of a BIND9 server.
type Zone struct {
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
	SOA  SOA    `json:"soa"`
}

// SOA carries the start-of-authority values of a zone.
type SOA struct {
	Primary     string `json:"primary"`
	Admin       string `json:"admin"`
	Refresh     int32  `json:"refresh"`
	Retry       int32  `json:"retry"`
	Expire      int32  `json:"expire"`
	NegativeTTL int32  `json:"negativeTTL"`
}

// Record is the payload describing a single DNS record within a zone.
type Record struct {
	Name string `json:"name"`
	Type string `json:"type"`
	TTL  int    `json:"ttl"`
	Data string `json:"data"`
}

// Client pushes zone and record configuration to a single BIND9 server. All operations are
// idempotent: ensuring an existing zone or deleting an absent record succeeds.
type Client interface {
	// EnsureZone creates or updates the given zone on the server.
	EnsureZone(ctx context.Context, zone Zone) error
	// DeleteZone removes the given zone from the server. Deleting an absent zone is not an
	// error.
	DeleteZone(ctx context.Context, name string) error
	// EnsureRecord creates or updates the given record within the zone.
	EnsureRecord(ctx context.Context, zone string, record Record) error
	// DeleteRecord removes the given record from the zone. Only the record's name and type
	// need to be set. Deleting an absent record is not an error.
	DeleteRecord(ctx context.Context, zone string, record Record) error
}

// StatusError is returned for API responses outside the 2xx range once all retries are
// exhausted or when the response code does not warrant a retry.
type StatusError struct {
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("nameserver API responded with status %d", e.Code)
}

// IsTerminal returns whether the given error is a terminal API error which must not be
// retried until the originating specification changes. Rate limiting (429) and server
// errors are transient and never terminal.
func IsTerminal(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 400 && statusErr.Code < 500 &&
			statusErr.Code != http.StatusTooManyRequests
	}
	return false
}

// Options configures the resilience behavior of all clients created by a factory.
type Options struct {
	// QPS is the sustained request rate towards a fleet of servers, Burst the ceiling.
	QPS   float32
	Burst int
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// InitialInterval is the first retry delay, subsequent delays grow exponentially with
	// jitter until MaxElapsedTime is exhausted.
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// Factory creates API clients for individual servers. All created clients share a single
// client-side rate limiter so that the sustained QPS towards the fleet stays bounded
// regardless of the number of instances.
type Factory struct {
	options Options
	limiter flowcontrol.RateLimiter
	http    *http.Client
}

// NewFactory creates a new factory with the provided options.
func NewFactory(options Options) *Factory {
	return &Factory{
		options: options,
		limiter: flowcontrol.NewTokenBucketRateLimiter(options.QPS, options.Burst),
		http:    &http.Client{Timeout: options.Timeout},
	}
}

// ClientFor returns a client for the server reachable at the given endpoint. The key is
// sent as bearer token if non-empty.
func (f *Factory) ClientFor(endpoint, key string) (Client, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return &httpClient{factory: f, base: base, key: key}, nil
}

type httpClient struct {
	factory *Factory
	base    *url.URL
	key     string
}

func (c *httpClient) EnsureZone(ctx context.Context, zone Zone) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/zones/%s", zone.Name), zone)
}

func (c *httpClient) DeleteZone(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/zones/%s", name), nil)
}

func (c *httpClient) EnsureRecord(ctx context.Context, zone string, record Record) error {
	return c.do(ctx, http.MethodPut, c.recordPath(zone, record), record)
}

func (c *httpClient) DeleteRecord(ctx context.Context, zone string, record Record) error {
	return c.do(ctx, http.MethodDelete, c.recordPath(zone, record), nil)
}

func (*httpClient) recordPath(zone string, record Record) string {
	return fmt.Sprintf("/zones/%s/records/%s/%s", zone, record.Type, record.Name)
}

// do performs a single API operation, retrying transient failures with exponentially
// growing jittered delays until the configured maximum elapsed time is exhausted.
func (c *httpClient) do(ctx context.Context, method, path string, body any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	if c.factory.options.InitialInterval > 0 {
		policy.InitialInterval = c.factory.options.InitialInterval
	}
	policy.MaxElapsedTime = c.factory.options.MaxElapsedTime

	attempts := 0
	operation := func() error {
		if attempts > 0 {
			metrics.NameserverRetries.Inc()
		}
		attempts++
		c.factory.limiter.Accept()
		if err := c.attempt(ctx, method, path, payload); err != nil {
			if IsTerminal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (c *httpClient) attempt(ctx context.Context, method, path string, payload []byte) error {
	target := *c.base
	target.Path = path
	request, err := http.NewRequestWithContext(
		ctx, method, target.String(), bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Request-Id", uuid.NewString())
	if c.key != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.key))
	}

	response, err := c.factory.http.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close() // nolint:errcheck

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return nil
	case method == http.MethodDelete && response.StatusCode == http.StatusNotFound:
		// Deleting an absent entity is a success for our purposes
		return nil
	default:
		return &StatusError{Code: response.StatusCode}
	}
}
