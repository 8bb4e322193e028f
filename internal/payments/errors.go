package payments

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidOrderID       = errors.New("order id is required")
	ErrMissingField         = errors.New("required field is missing")
	ErrInvalidField         = errors.New("field contains a reserved character")
	ErrCryptoUnavailable    = errors.New("sha512 digest is not available on this platform")
	ErrGatewayNotRegistered = errors.New("gateway not registered")
)
