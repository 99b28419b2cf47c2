// pkg/client/client.go
package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StoreClient posts signed notifications to the store's internal
// services. Every request carries an HMAC signature over the payload
// and timestamp so receivers can verify origin.
type StoreClient struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewStoreClient(apiKey, apiSecret string, logger *zap.Logger) *StoreClient {
	return &StoreClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *StoreClient) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	timestamp := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", timestamp))
	req.Header.Set("X-Signature", generateSignature(payload, timestamp, c.apiSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("store service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return nil
}

func generateSignature(payload []byte, timestamp int64, secret string) string {
	message := fmt.Sprintf("%s.%d", string(payload), timestamp)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
