// internal/provider/mpesa/stk.go
package mpesa

import (
	"context"
	"errors"
	"fmt"

	"dukastore/internal/domain"

	"go.uber.org/zap"
)

// STKPushRequest is the push-payment submit payload.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse carries the gateway-assigned correlation handles.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiateSTKPush submits a push-payment request that prompts the payer's
// handset. The outcome arrives later on the callback URL; the returned
// CheckoutRequestID is the correlation key for both the callback and the
// status query.
//
// A transport failure on this call is wrapped in domain.ErrSubmitAmbiguous:
// the charge may already be in flight, so callers must not resubmit.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int, accountRef, desc string) (*STKPushResponse, error) {
	ts, err := c.timestamp()
	if err != nil {
		return nil, err
	}

	request := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.cfg.CallbackBaseURL + "/api/v1/callbacks/mpesa/stk",
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	}

	var response STKPushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", request, &response); err != nil {
		if errors.Is(err, errTransport) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSubmitAmbiguous, err)
		}
		return nil, err
	}

	if response.ResponseCode != "0" {
		return nil, &domain.PaymentError{
			Kind:      domain.KindUpstreamInternal,
			Message:   fmt.Sprintf("gateway refused push: %s", response.ResponseDescription),
			Retryable: false,
		}
	}

	c.logger.Info("STK push accepted",
		zap.String("checkout_request_id", response.CheckoutRequestID),
		zap.String("merchant_request_id", response.MerchantRequestID),
		zap.String("account_ref", accountRef),
		zap.Int("amount", amount))

	return &response, nil
}
