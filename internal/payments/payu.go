package payments

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	payuSandboxURL    = "https://test.payu.in/_payment"
	payuProductionURL = "https://secure.payu.in/_payment"

	// StatusSuccess is the only callback status that means the customer paid.
	StatusSuccess = "success"
)

var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

type PayUConfig struct {
	MerchantKey  string
	Salt         string
	IsProduction bool
	// StrictFields rejects checkouts that omit phone or callback URLs instead
	// of filling in the sandbox defaults below.
	StrictFields bool
	DefaultPhone string
	SuccessURL   string
	FailureURL   string
}

type PayUAdapter struct {
	cfg  PayUConfig
	txns *TxnIDGenerator
}

func NewPayUAdapter(cfg PayUConfig) (*PayUAdapter, error) {
	if strings.TrimSpace(cfg.MerchantKey) == "" || strings.TrimSpace(cfg.Salt) == "" {
		return nil, fmt.Errorf("payu: merchant key and salt are required")
	}
	return &PayUAdapter{cfg: cfg, txns: NewTxnIDGenerator()}, nil
}

func (p *PayUAdapter) FormAction() string {
	if p.cfg.IsProduction {
		return payuProductionURL
	}
	return payuSandboxURL
}

// ValidateAmount reports whether a is a finite, positive plain decimal.
// Exponent forms such as 1e3 are refused because the text is signed as-is.
func ValidateAmount(a Amount) error {
	s := a.String()
	if !plainDecimal.MatchString(s) {
		return fmt.Errorf("%w: %q must be plain decimal text such as 100 or 100.50, without sign, exponent or spaces", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, s)
	}
	return nil
}

// SameAmount reports whether two amount texts denote the same value. The
// gateway may echo "100.00" for a request signed with "100".
func SameAmount(a, b string) bool {
	if !plainDecimal.MatchString(a) || !plainDecimal.MatchString(b) {
		return false
	}
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}

func (p *PayUAdapter) InitiatePayment(ctx context.Context, req CheckoutRequest) (PaymentRequest, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return PaymentRequest{}, ErrInvalidOrderID
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return PaymentRequest{}, err
	}
	if req.ProductInfo == "" || req.FirstName == "" || req.Email == "" {
		return PaymentRequest{}, fmt.Errorf("%w: productinfo, firstname and email are hashed and cannot be empty", ErrMissingField)
	}
	// "|" separates hashed fields, so "a|b"+"c" would sign the same as "a"+"b|c"
	for name, v := range map[string]string{
		"orderId":     orderID,
		"productinfo": req.ProductInfo,
		"firstname":   req.FirstName,
		"email":       req.Email,
	} {
		if strings.Contains(v, "|") {
			return PaymentRequest{}, fmt.Errorf("%w: %s must not contain %q", ErrInvalidField, name, "|")
		}
	}

	phone, surl, furl := req.Phone, req.SuccessURL, req.FailureURL
	if p.cfg.StrictFields {
		if phone == "" || surl == "" || furl == "" {
			return PaymentRequest{}, fmt.Errorf("%w: phone, successUrl and failureUrl are required", ErrMissingField)
		}
	} else {
		// Sandbox leniency only; production runs with StrictFields.
		if phone == "" {
			phone = p.cfg.DefaultPhone
		}
		if surl == "" {
			surl = p.cfg.SuccessURL
		}
		if furl == "" {
			furl = p.cfg.FailureURL
		}
	}

	out := PaymentRequest{
		Key:         p.cfg.MerchantKey,
		TxnID:       p.txns.Next(orderID),
		Amount:      req.Amount.String(),
		ProductInfo: req.ProductInfo,
		FirstName:   req.FirstName,
		Email:       req.Email,
		Phone:       phone,
		SuccessURL:  surl,
		FailureURL:  furl,
		Action:      p.FormAction(),
	}

	hash, err := Digest(requestHashParts(p.cfg.MerchantKey, p.cfg.Salt, out)...)
	if err != nil {
		return PaymentRequest{}, err
	}
	out.Hash = hash

	return out, nil
}

// VerifyPayment recomputes the reverse digest. A mismatch is reported through
// Verified=false, never as an error.
func (p *PayUAdapter) VerifyPayment(ctx context.Context, cb Callback, orig Original) (PaymentVerification, error) {
	res := PaymentVerification{
		GatewayTxnID: cb.GatewayTxnID,
		TxnID:        cb.TxnID,
		Status:       cb.Status,
		PaidAmount:   cb.Amount,
	}

	want, err := Digest(responseHashParts(p.cfg.MerchantKey, p.cfg.Salt, cb, orig)...)
	if err != nil {
		return res, err
	}

	res.Verified = cb.Hash != "" && hashEqual(want, cb.Hash)
	res.Success = res.Verified && cb.Status == StatusSuccess
	return res, nil
}

// SignCallback builds the hash the gateway would send for cb, which lets
// tests produce genuine callbacks.
func (p *PayUAdapter) SignCallback(cb Callback, orig Original) (string, error) {
	return Digest(responseHashParts(p.cfg.MerchantKey, p.cfg.Salt, cb, orig)...)
}
