package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Amount is the textual form of a charge. The gateway hashes the string, so
// the exact text the caller supplied is kept ("100" stays "100").
type Amount string

// UnmarshalJSON accepts both a JSON number and a JSON string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(b)
	return nil
}

func (a Amount) String() string { return string(a) }

// CheckoutRequest is what the checkout sends to start a payment attempt.
type CheckoutRequest struct {
	OrderID     string
	Amount      Amount
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	SuccessURL  string
	FailureURL  string
}

// PaymentRequest is a signed request ready to be posted to the gateway.
// Changing any field after Hash was computed invalidates it.
type PaymentRequest struct {
	Key         string `json:"key"`
	TxnID       string `json:"txnid"`
	Amount      string `json:"amount"`
	ProductInfo string `json:"productinfo"`
	FirstName   string `json:"firstname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	SuccessURL  string `json:"surl"`
	FailureURL  string `json:"furl"`
	Hash        string `json:"hash"`
	Action      string `json:"action"`
}

// FormFields returns every field the browser form must post, i.e. all of
// them except the submission target itself.
func (p PaymentRequest) FormFields() map[string]string {
	return map[string]string{
		"key":         p.Key,
		"txnid":       p.TxnID,
		"amount":      p.Amount,
		"productinfo": p.ProductInfo,
		"firstname":   p.FirstName,
		"email":       p.Email,
		"phone":       p.Phone,
		"surl":        p.SuccessURL,
		"furl":        p.FailureURL,
		"hash":        p.Hash,
	}
}

// Callback holds the fields that legitimately originate from the gateway.
type Callback struct {
	GatewayTxnID string // mihpayid
	Status       string
	TxnID        string
	Amount       string
	Hash         string
}

// Original holds the values of the stored request needed to rebuild the
// reverse digest.
type Original struct {
	Email       string
	FirstName   string
	ProductInfo string
}

// PaymentVerification is the terminal result of checking one callback.
type PaymentVerification struct {
	GatewayTxnID string `json:"gatewayTransactionId,omitempty"`
	TxnID        string `json:"transactionId"`
	Status       string `json:"status"`
	PaidAmount   string `json:"paidAmount"`
	Verified     bool   `json:"verified"`
	Success      bool   `json:"success"`
}
