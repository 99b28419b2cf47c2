// internal/provider/mpesa/callback.go
package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// STKCallbackRequest is the nested webhook payload the gateway POSTs when a
// push attempt resolves.
type STKCallbackRequest struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackResult is the flattened view of a callback delivery.
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Success           bool

	// Present only on success.
	Amount      *float64
	ReceiptID   *string
	PhoneNumber *string
}

// ParseSTKCallback unwraps the Body.stkCallback envelope and extracts the
// metadata items a successful resolution carries.
func ParseSTKCallback(payload []byte) (*CallbackResult, error) {
	var callback STKCallbackRequest
	if err := json.Unmarshal(payload, &callback); err != nil {
		return nil, fmt.Errorf("parse callback: %w", err)
	}

	stk := callback.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return nil, fmt.Errorf("parse callback: missing CheckoutRequestID")
	}

	result := &CallbackResult{
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		ResultCode:        stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
		Success:           stk.ResultCode == 0,
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if val, ok := item.Value.(float64); ok {
				result.Amount = &val
			}
		case "MpesaReceiptNumber":
			if val, ok := item.Value.(string); ok {
				result.ReceiptID = &val
			}
		case "PhoneNumber":
			// The sandbox sends the MSISDN as a number, production as a
			// string. Accept both.
			switch val := item.Value.(type) {
			case string:
				result.PhoneNumber = &val
			case float64:
				s := strconv.FormatFloat(val, 'f', -1, 64)
				result.PhoneNumber = &s
			}
		}
	}

	return result, nil
}
