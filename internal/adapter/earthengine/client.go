// Package earthengine runs assessment computations on Google Earth Engine
// through its REST API. Computations are expressed as serialized expression
// graphs and evaluated with value:compute and image:computePixels.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Earth Engine REST endpoint.
const DefaultBaseURL = "https://earthengine.googleapis.com/v1"

// Scopes requested for service account credentials.
var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

const (
	methodCompute = "compute"
	methodPixels  = "pixels"

	maxBackoff = 30 * time.Second
)

// APIError is a non-2xx response from Earth Engine.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("earth engine API error: status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("earth engine API error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client calls the Earth Engine REST API for one Cloud project.
type Client struct {
	httpClient *http.Client
	baseURL    string
	project    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewHTTPClient returns an OAuth2 client for the service account key in
// credentialsFile, or for Application Default Credentials when it is empty.
func NewHTTPClient(ctx context.Context, credentialsFile string, timeout time.Duration) (*http.Client, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if credentialsFile != "" {
		data, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read credentials: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, Scopes...)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, Scopes...)
	}
	if err != nil {
		return nil, fmt.Errorf("load google credentials: %w", err)
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	return client, nil
}

// NewClient creates an Earth Engine client. rps limits request throughput
// across every caller sharing the client.
func NewClient(httpClient *http.Client, baseURL, project string, rps float64, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		project:    project,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		backoff:    time.Second,
		metrics:    metrics,
		logger:     logger,
	}
}

// ComputeValue evaluates a graph and returns its JSON result.
func (c *Client) ComputeValue(ctx context.Context, root *Expr) (json.RawMessage, error) {
	expr, err := Encode(root)
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, methodCompute, "value:compute", map[string]any{"expression": expr})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode compute response: %w", err)
	}
	return resp.Result, nil
}

// ComputePixels renders an image graph in the given file format.
func (c *Client) ComputePixels(ctx context.Context, root *Expr, format string) ([]byte, error) {
	expr, err := Encode(root)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, methodPixels, "image:computePixels", map[string]any{
		"expression": expr,
		"fileFormat": format,
	})
}

// post sends a JSON request, retrying rate limits and server errors with
// exponential backoff.
func (c *Client) post(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	url := fmt.Sprintf("%s/projects/%s/%s", c.baseURL, c.project, endpoint)

	var lastErr error
	wait := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.EERequests.WithLabelValues(method, "retry").Inc()
			c.logger.Debug("retrying earth engine request", "method", method, "attempt", attempt, "wait", wait, "error", lastErr)
			if !retry.SleepWithContext(ctx, wait) {
				return nil, ctx.Err()
			}
			wait = retry.NextBackoff(wait, maxBackoff)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.do(ctx, method, url, data)
		if err == nil {
			c.metrics.EERequests.WithLabelValues(method, "success").Inc()
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.metrics.EERequests.WithLabelValues(method, "error").Inc()
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, url string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.EEAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("earth engine %s request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// parseAPIError reads the Google API error envelope, falling back to the raw body.
func parseAPIError(code int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{StatusCode: code, Status: envelope.Error.Status, Message: envelope.Error.Message}
	}
	return &APIError{StatusCode: code, Message: string(bytes.TrimSpace(body))}
}
