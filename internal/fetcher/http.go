package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"coinwatch/internal/metrics"
)

// DefaultTimeout bounds every individual provider call.
const DefaultTimeout = 8 * time.Second

// maxBodyBytes guards against runaway upstream payloads.
const maxBodyBytes = 4 << 20

// HTTPError reports a non-2xx provider response.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api error (%d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from a provider.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}

// clientOptions are shared between the provider clients.
type clientOptions struct {
	provider     string
	baseURL      string
	timeout      time.Duration
	userAgent    string
	ratePerMin   int
	extraHeaders map[string]string
}

// jsonClient issues rate-limited, individually time-bounded GET requests.
type jsonClient struct {
	opts    clientOptions
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func newJSONClient(opts clientOptions, logger zerolog.Logger) *jsonClient {
	if opts.timeout <= 0 {
		opts.timeout = DefaultTimeout
	}
	opts.baseURL = strings.TrimRight(opts.baseURL, "/")

	var limiter *rate.Limiter
	if opts.ratePerMin > 0 {
		limit := rate.Limit(float64(opts.ratePerMin) / 60.0)
		limiter = rate.NewLimiter(limit, burstForLimit(limit))
	}

	return &jsonClient{
		opts:    opts,
		client:  &http.Client{},
		limiter: limiter,
		logger:  logger,
	}
}

func burstForLimit(limit rate.Limit) int {
	if limit <= 1.0 {
		return 1
	}
	return int(math.Ceil(float64(limit)))
}

// getJSON performs one GET and decodes the body into dst. The timeout covers
// limiter wait, transport and body read.
func (c *jsonClient) getJSON(ctx context.Context, endpoint, path string, query url.Values, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	start := time.Now()
	status := "error"
	defer func() {
		metrics.ProviderRequestsTotal.WithLabelValues(c.opts.provider, endpoint, status).Inc()
		metrics.ProviderLatency.WithLabelValues(c.opts.provider, endpoint).Observe(time.Since(start).Seconds())
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			status = "rate_limited"
			return fmt.Errorf("%s rate limiter: %w", c.opts.provider, err)
		}
	}

	endpointURL := c.opts.baseURL + path
	if len(query) > 0 {
		endpointURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	for k, v := range c.opts.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = strconv.Itoa(resp.StatusCode)
		return &HTTPError{Provider: c.opts.provider, Status: resp.StatusCode, Body: strings.TrimSpace(truncate(string(payload), 256))}
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		status = "malformed"
		return fmt.Errorf("decode %s %s: %w", c.opts.provider, endpoint, err)
	}

	status = "success"
	c.logger.Debug().Str("endpoint", endpoint).Dur("elapsed", time.Since(start)).Msg("provider call completed")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
