package paymentsrepo

import (
	"context"
	"time"
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	// StatusSuspect marks a gateway-signed success for an amount other than
	// the one requested; the attempt needs manual review. Unsigned callbacks
	// never change the stored status.
	StatusSuspect = "suspect"
)

// Payment is the server-side copy of a signed gateway request.
type Payment struct {
	ID          int64     `json:"id"`
	OrderID     string    `json:"order_id"`
	Provider    string    `json:"provider"`
	TxnID       string    `json:"txn_id"`
	MerchantKey string    `json:"-"`
	Amount      string    `json:"amount"` // exact text that was hashed
	ProductInfo string    `json:"product_info"`
	FirstName   string    `json:"first_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	SuccessURL  string    `json:"surl"`
	FailureURL  string    `json:"furl"`
	Hash        string    `json:"-"`
	Status      string    `json:"status"` // pending, paid, failed, suspect
	GatewayRef  *string   `json:"gateway_ref"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Store interface {
	Create(ctx context.Context, p *Payment) (*Payment, error)
	GetByTxnID(ctx context.Context, txnID string) (*Payment, error)
	// RecordOutcome stores the verification result. A paid payment is never
	// moved to another status. paidNow is true only for the call that moved
	// the payment to paid.
	RecordOutcome(ctx context.Context, txnID, status, gatewayRef string) (p *Payment, paidNow bool, err error)
	List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error)
}
