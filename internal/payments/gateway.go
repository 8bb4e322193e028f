package payments

import "context"

// PaymentGateway defines the handshake every redirect-and-verify provider implements
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req CheckoutRequest) (PaymentRequest, error)
	VerifyPayment(ctx context.Context, cb Callback, orig Original) (PaymentVerification, error)
	// FormAction is the URL the browser form is posted to.
	FormAction() string
}
