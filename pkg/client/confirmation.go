// pkg/client/confirmation.go
package client

import (
	"context"
	"time"

	"dukastore/internal/domain"

	"go.uber.org/zap"
)

// ConfirmationClient asks the notification service to send the customer
// a payment confirmation.
type ConfirmationClient struct {
	*StoreClient
	url string
}

func NewConfirmationClient(url, apiKey, apiSecret string, logger *zap.Logger) *ConfirmationClient {
	return &ConfirmationClient{
		StoreClient: NewStoreClient(apiKey, apiSecret, logger),
		url:         url,
	}
}

type confirmationRequest struct {
	OrderID     string   `json:"order_id"`
	PhoneNumber string   `json:"phone_number"`
	Amount      *float64 `json:"amount,omitempty"`
	ReceiptID   *string  `json:"receipt_id,omitempty"`
	PaidAt      int64    `json:"paid_at"`
}

func (c *ConfirmationClient) SendConfirmation(ctx context.Context, order *domain.Order, tx *domain.Transaction) error {
	c.logger.Info("sending payment confirmation",
		zap.String("order_id", order.ID),
		zap.String("checkout_ref", tx.CheckoutRef))

	phone := tx.PhoneNumber
	if tx.ConfirmedPhone != nil {
		phone = *tx.ConfirmedPhone
	}

	paidAt := time.Now().Unix()
	if tx.ResolvedAt != nil {
		paidAt = tx.ResolvedAt.Unix()
	}

	err := c.post(ctx, c.url, confirmationRequest{
		OrderID:     order.ID,
		PhoneNumber: phone,
		Amount:      tx.ConfirmedAmount,
		ReceiptID:   tx.ReceiptID,
		PaidAt:      paidAt,
	})
	if err != nil {
		c.logger.Error("confirmation request failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return err
	}

	c.logger.Info("confirmation sent", zap.String("order_id", order.ID))
	return nil
}
