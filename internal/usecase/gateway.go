// internal/usecase/gateway.go
package usecase

import (
	"context"

	"dukastore/internal/provider/mpesa"
)

// Gateway is the slice of the push-payment provider the usecases need.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount int, accountRef, desc string) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRef string) (*mpesa.STKQueryResponse, error)
}
