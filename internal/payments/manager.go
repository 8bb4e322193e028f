package payments

import (
	"context"
	"fmt"
)

const ProviderPayU = "payu"

type PaymentManager struct {
	gateways map[string]PaymentGateway
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{gateways: make(map[string]PaymentGateway)}
}

func (m *PaymentManager) RegisterGateway(name string, gateway PaymentGateway) {
	m.gateways[name] = gateway
}

func (m *PaymentManager) gateway(name string) (PaymentGateway, error) {
	g, ok := m.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotRegistered, name)
	}
	return g, nil
}

func (m *PaymentManager) InitiatePayment(ctx context.Context, method string, req CheckoutRequest) (PaymentRequest, error) {
	g, err := m.gateway(method)
	if err != nil {
		return PaymentRequest{}, err
	}
	return g.InitiatePayment(ctx, req)
}

func (m *PaymentManager) VerifyPayment(ctx context.Context, method string, cb Callback, orig Original) (PaymentVerification, error) {
	g, err := m.gateway(method)
	if err != nil {
		return PaymentVerification{}, err
	}
	return g.VerifyPayment(ctx, cb, orig)
}

func (m *PaymentManager) FormAction(method string) (string, error) {
	g, err := m.gateway(method)
	if err != nil {
		return "", err
	}
	return g.FormAction(), nil
}
