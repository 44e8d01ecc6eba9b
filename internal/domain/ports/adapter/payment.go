package adapter

import "context"

// PushAck is the provider's acknowledgment that a payment push was accepted
// for processing. It is not a payment outcome; the outcome arrives later on
// the callback, if at all.
type PushAck struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseDesc      string
}

// PaymentGateway initiates provider-side payment pushes. Implementations
// submit money-movement requests to a live external system; tests must
// intercept this boundary.
type PaymentGateway interface {
	Name() string
	// NormalizePhone converts a raw subscriber number to the provider's
	// canonical form, or fails with domain.ErrInvalidPhone.
	NormalizePhone(raw string) (string, error)
	// RequestPush asks the provider to prompt the subscriber for payment.
	// phone must already be normalized; reference is the merchant-supplied
	// correlation key the provider echoes back on the callback.
	RequestPush(ctx context.Context, phone string, amount int64, reference string) (*PushAck, error)
}
