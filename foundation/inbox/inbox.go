// Package inbox provides a client for the hosted notification inbox: the keys
// server used to register identity keys and the notify server used to manage
// subscriptions and deliver notifications.
package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 512

// APIError is returned when the remote service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAPIError checks if an error of type APIError exists.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// =============================================================================

// Config represents the settings needed to talk to the inbox services.
type Config struct {
	ProjectID    string
	AppDomain    string
	NotifyURL    string
	KeysURL      string
	NotifySecret string
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int
	JWTTTL       time.Duration
}

// Client provides access to the keys and notify servers.
type Client struct {
	cfg        Config
	notifyURL  *url.URL
	keysURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient constructs a client for the inbox services.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.AppDomain == "" {
		return nil, errors.New("project id and app domain are required")
	}

	notifyURL, err := url.Parse(cfg.NotifyURL)
	if err != nil || notifyURL.Host == "" {
		return nil, fmt.Errorf("invalid notify url %q", cfg.NotifyURL)
	}

	keysURL, err := url.Parse(cfg.KeysURL)
	if err != nil || keysURL.Host == "" {
		return nil, fmt.Errorf("invalid keys url %q", cfg.KeysURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = time.Hour
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := Client{
		cfg:        cfg,
		notifyURL:  notifyURL,
		keysURL:    keysURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
	}

	return &c, nil
}

// appDID returns the decentralized identifier of the application.
func (c *Client) appDID() string {
	return "did:web:" + c.cfg.AppDomain
}

// projectPath returns the notify server path for the project endpoint.
func (c *Client) projectPath(endpoint string) string {
	return "/" + url.PathEscape(c.cfg.ProjectID) + "/" + endpoint
}

// doRequest performs the request against the base url and decodes the
// response into respBody when provided.
func (c *Client) doRequest(ctx context.Context, base *url.URL, method string, path string, headers map[string]string, reqBody any, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting on rate limit: %w", err)
	}

	fullURL := *base
	fullURL.Path = strings.TrimSuffix(base.Path, "/") + path

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if respBody == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// errorMessage extracts a human readable message from an error response.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Error != "":
			return body.Error
		case body.Reason != "":
			return body.Reason
		}
	}

	return strings.TrimSpace(string(data))
}
