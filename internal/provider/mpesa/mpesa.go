// internal/provider/mpesa/mpesa.go
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dukastore/config"
	"dukastore/internal/domain"

	"go.uber.org/zap"
)

// tokenRefreshMargin keeps the cached token from being used right at the edge
// of its advertised lifetime.
const tokenRefreshMargin = 60 * time.Second

// errTransport marks a request that failed in flight: no status line came
// back, so the gateway may or may not have processed it.
var errTransport = errors.New("transport failure")

// Client talks to the Daraja API. It caches the OAuth bearer token for its
// advertised lifetime and transparently refetches on expiry or on a 401 from
// a downstream call.
type Client struct {
	cfg        config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.MpesaConfig, logger *zap.Logger) *Client {
	baseURL := "https://sandbox.safaricom.co.ke"
	if cfg.Environment == "production" {
		baseURL = "https://api.safaricom.co.ke"
	}

	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.GatewayCallTimeout},
		logger:     logger,
	}
}

// APIError is a non-200 answer from the gateway after the request was
// delivered. Receiving one means the gateway saw the request, so it is never
// ambiguous.
type APIError struct {
	StatusCode   int
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

// HTTPStatus exposes the status class so the error classifier can tell a
// gateway-side failure from an unclassifiable one.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// AccessToken returns the cached bearer token, fetching a fresh one via
// client-credentials exchange when none is held or the lifetime has lapsed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrAuthRejected, resp.StatusCode, string(body))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}

	lifetime := time.Hour
	if secs, err := strconv.Atoi(res.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	c.token = res.AccessToken
	c.tokenExpiry = time.Now().Add(lifetime - tokenRefreshMargin)

	c.logger.Debug("fetched gateway access token",
		zap.Time("expiry", c.tokenExpiry))

	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// timestamp renders the current time in the gateway's fixed-width 14-digit
// form. The width check guards against clock misconfiguration; a failure here
// is a build error, not a gateway condition.
func (c *Client) timestamp() (string, error) {
	ts := time.Now().Format("20060102150405")
	if len(ts) != 14 {
		return "", fmt.Errorf("%w: %q", domain.ErrBadTimestamp, ts)
	}
	return ts, nil
}

// password is the single-use signed credential for a request:
// base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

// postJSON sends an authenticated POST and decodes the 200 response into out.
// A 401 invalidates the token cache and surfaces as domain.ErrTokenExpired so
// callers can refetch and retry.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway response read: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return fmt.Errorf("%w: %s", domain.ErrTokenExpired, string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("gateway response decode: %w", err)
	}
	return nil
}
