package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxPaymentID ContextKey = "ctx_payment_id"

	HeaderRequestID = "X-Request-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// SetRequestID sets the request ID in the context
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

func GetPaymentID(ctx context.Context) string {
	if paymentID, ok := ctx.Value(CtxPaymentID).(string); ok {
		return paymentID
	}
	return ""
}

// SetPaymentID sets the payment ID of the notification being processed in the context
func SetPaymentID(ctx context.Context, paymentID string) context.Context {
	return context.WithValue(ctx, CtxPaymentID, paymentID)
}
