package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReceipt(t *testing.T) {
	subject, body, err := render(ReceiptTemplate, Receipt{
		OrderID:     "ORD1",
		TxnID:       "TXN_ORD1_1700000000000",
		GatewayRef:  "403993715521",
		Amount:      "100",
		ProductInfo: "Order Payment",
		FirstName:   "Jane",
		From:        FromName,
	})
	require.NoError(t, err)

	assert.Equal(t, "Payment received for order ORD1", subject)
	assert.Contains(t, body, "Hi Jane")
	assert.Contains(t, body, "TXN_ORD1_1700000000000")
	assert.Contains(t, body, "403993715521")
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{FromEmail: "shop@example.com"})
	assert.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025, FromEmail: "shop@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
