package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quickplate/storefront/core"
	"github.com/quickplate/storefront/resilience"
)

// Place is a geocoding result: a display name, coordinates, and the
// structured address components that were available.
type Place struct {
	DisplayName string
	Latitude    float64
	Longitude   float64
	Address     Address
}

// Geocoder converts between coordinates and human-readable addresses
type Geocoder interface {
	// Reverse converts latitude/longitude into a structured address
	Reverse(ctx context.Context, lat, lon float64) (*Place, error)
	// Search resolves a free-text query to its best-matching place
	Search(ctx context.Context, query string) (*Place, error)
}

// nominatimResponse is the wire shape of Nominatim search/reverse
// results. Coordinates arrive as strings; the address object is
// entirely optional fields.
type nominatimResponse struct {
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Address     Address `json:"address"`
}

func (r *nominatimResponse) toPlace() *Place {
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lon, _ := strconv.ParseFloat(r.Lon, 64)
	return &Place{
		DisplayName: r.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Address:     r.Address,
	}
}

// NominatimClient is a Geocoder backed by a Nominatim-compatible
// endpoint. Nominatim requires a valid User-Agent; requests without
// one are rejected.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	retryCfg   *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
	logger     core.Logger
}

// NominatimClientOptions configures the client
type NominatimClientOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RetryCfg  *resilience.RetryConfig
	Breaker   *resilience.CircuitBreaker
	Logger    core.Logger
	Transport http.RoundTripper // Optional; instrumented by default
}

// NewNominatimClient creates a geocoding client
func NewNominatimClient(opts NominatimClientOptions) *NominatimClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "quickplate-storefront/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:   "nominatim",
			Logger: opts.Logger,
		})
	}
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return &NominatimClient{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		retryCfg: opts.RetryCfg,
		breaker:  opts.Breaker,
		logger:   opts.Logger,
	}
}

// Reverse converts coordinates into a structured address
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range (%f, %f): %w", lat, lon, core.ErrRequestFailed)
	}

	reqURL := fmt.Sprintf("%s/reverse?lat=%f&lon=%f&format=jsonv2&addressdetails=1",
		c.baseURL, lat, lon)

	var result *Place
	err := resilience.RetryWithCircuitBreaker(ctx, c.retryCfg, c.breaker, func() error {
		var body nominatimResponse
		if err := c.get(ctx, reqURL, &body); err != nil {
			return err
		}
		if body.DisplayName == "" {
			return fmt.Errorf("reverse geocode (%f, %f): %w", lat, lon, core.ErrNoResults)
		}
		result = body.toPlace()
		// Reverse responses may omit coordinates; keep the inputs
		if result.Latitude == 0 && result.Longitude == 0 {
			result.Latitude = lat
			result.Longitude = lon
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Reverse geocode succeeded", map[string]interface{}{
		"lat":          lat,
		"lon":          lon,
		"display_name": result.DisplayName,
	})
	return result, nil
}

// Search resolves a free-text query; the first result wins
func (c *NominatimClient) Search(ctx context.Context, query string) (*Place, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", core.ErrNoResults)
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1&addressdetails=1",
		c.baseURL, url.QueryEscape(query))

	var result *Place
	err := resilience.RetryWithCircuitBreaker(ctx, c.retryCfg, c.breaker, func() error {
		var body []nominatimResponse
		if err := c.get(ctx, reqURL, &body); err != nil {
			return err
		}
		if len(body) == 0 {
			return fmt.Errorf("no match for %q: %w", query, core.ErrNoResults)
		}
		result = body[0].toPlace()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Forward geocode succeeded", map[string]interface{}{
		"query":        query,
		"display_name": result.DisplayName,
	})
	return result, nil
}

// get performs one GET and decodes the JSON body into out
func (c *NominatimClient) get(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Geocoder request failed", map[string]interface{}{
			"url":   reqURL,
			"error": err.Error(),
		})
		return fmt.Errorf("geocoder: %v: %w", err, core.ErrConnectionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("geocoder rate limited: %w", core.ErrRequestFailed)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Geocoder returned non-OK status", map[string]interface{}{
			"url":    reqURL,
			"status": resp.StatusCode,
		})
		return fmt.Errorf("geocoder returned status %d: %w", resp.StatusCode, core.ErrRequestFailed)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geocoder decode: %v: %w", err, core.ErrRequestFailed)
	}
	return nil
}
