package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quickplate/storefront/core"
	"github.com/quickplate/storefront/resilience"
)

// IPLocation is the parsed IP-geolocation result: a coarse,
// permission-free estimate from the client's network address.
type IPLocation struct {
	City      string
	Region    string
	Country   string
	Latitude  float64
	Longitude float64
}

// Formatted renders the lookup as a display string, skipping absent parts
func (l *IPLocation) Formatted() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.Region, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Coordinates(l.Latitude, l.Longitude)
	}
	return strings.Join(parts, ", ")
}

// IPLocator looks up an approximate location from the caller's IP
type IPLocator interface {
	Lookup(ctx context.Context) (*IPLocation, error)
}

// ipAPIResponse is the wire shape of the ipapi.co JSON endpoint
type ipAPIResponse struct {
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Error       bool    `json:"error"`
	Reason      string  `json:"reason"`
}

// IPAPIClient is an IPLocator backed by an ipapi.co-compatible
// endpoint: GET, no auth, JSON body with city/region/country and
// coordinates.
type IPAPIClient struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	retryCfg   *resilience.RetryConfig
	logger     core.Logger
}

// IPAPIClientOptions configures the client
type IPAPIClientOptions struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	RetryCfg  *resilience.RetryConfig
	Logger    core.Logger
	Transport http.RoundTripper // Optional; instrumented by default
}

// NewIPAPIClient creates an IP-geolocation client
func NewIPAPIClient(opts IPAPIClientOptions) *IPAPIClient {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://ipapi.co/json/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return &IPAPIClient{
		endpoint:  opts.Endpoint,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		retryCfg: opts.RetryCfg,
		logger:   opts.Logger,
	}
}

// Lookup calls the IP-geolocation endpoint and parses the result.
// Transient failures are retried with backoff.
func (c *IPAPIClient) Lookup(ctx context.Context) (*IPLocation, error) {
	var result *IPLocation

	err := resilience.Retry(ctx, c.retryCfg, func() error {
		loc, err := c.lookupOnce(ctx)
		if err != nil {
			return err
		}
		result = loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *IPAPIClient) lookupOnce(ctx context.Context) (*IPLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("IP lookup request failed", map[string]interface{}{
			"endpoint": c.endpoint,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("IP lookup: %v: %w", err, core.ErrConnectionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("IP lookup returned non-OK status", map[string]interface{}{
			"endpoint": c.endpoint,
			"status":   resp.StatusCode,
		})
		return nil, fmt.Errorf("IP lookup returned status %d: %w", resp.StatusCode, core.ErrRequestFailed)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("IP lookup decode: %v: %w", err, core.ErrRequestFailed)
	}

	// ipapi.co reports quota and lookup errors inside a 200 body
	if body.Error {
		return nil, fmt.Errorf("IP lookup rejected: %s: %w", body.Reason, core.ErrRequestFailed)
	}

	return &IPLocation{
		City:      body.City,
		Region:    body.Region,
		Country:   body.CountryName,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	}, nil
}
