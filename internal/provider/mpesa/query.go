// internal/provider/mpesa/query.go
package mpesa

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// stillProcessingCode is the distinguished error body the query endpoint
// answers with while the payer has not yet acted on the prompt.
const stillProcessingCode = "500.001.1001"

// ErrStillProcessing means the push is neither settled nor failed yet. It is
// not a failure; the poller retries after a fixed delay.
var ErrStillProcessing = errors.New("transaction still being processed")

// STKQueryRequest is the active status-query payload.
type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse reports the final result of a push once one exists. The
// query API renders ResultCode as a string, unlike the callback.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QueryStatus asks the gateway for the current state of a push attempt.
// While the payer has not acted it returns ErrStillProcessing.
func (c *Client) QueryStatus(ctx context.Context, checkoutRef string) (*STKQueryResponse, error) {
	ts, err := c.timestamp()
	if err != nil {
		return nil, err
	}

	request := STKQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRef,
	}

	var response STKQueryResponse
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", request, &response); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == stillProcessingCode {
			return nil, ErrStillProcessing
		}
		return nil, err
	}

	c.logger.Debug("STK status query answered",
		zap.String("checkout_request_id", checkoutRef),
		zap.String("result_code", response.ResultCode),
		zap.String("result_desc", response.ResultDesc))

	return &response, nil
}
