// pkg/client/fulfillment.go
package client

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FulfillmentClient asks the fulfillment service to start processing a
// paid order.
type FulfillmentClient struct {
	*StoreClient
	url string
}

func NewFulfillmentClient(url, apiKey, apiSecret string, logger *zap.Logger) *FulfillmentClient {
	return &FulfillmentClient{
		StoreClient: NewStoreClient(apiKey, apiSecret, logger),
		url:         url,
	}
}

type fulfillmentRequest struct {
	OrderID     string `json:"order_id"`
	RequestedAt int64  `json:"requested_at"`
}

func (c *FulfillmentClient) ProcessOrder(ctx context.Context, orderID string) error {
	c.logger.Info("requesting order fulfillment", zap.String("order_id", orderID))

	err := c.post(ctx, c.url, fulfillmentRequest{
		OrderID:     orderID,
		RequestedAt: time.Now().Unix(),
	})
	if err != nil {
		c.logger.Error("fulfillment request failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return err
	}

	c.logger.Info("fulfillment requested", zap.String("order_id", orderID))
	return nil
}
