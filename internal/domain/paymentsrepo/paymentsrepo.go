package paymentsrepo

import (
	"context"
	"errors"
	"fmt"

	"bazaar/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, order_id, provider, txn_id, merchant_key, amount, product_info, first_name, email, phone,
		       surl, furl, hash, status, gateway_ref, created_at, updated_at`

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

func scanPayment(row pgx.Row, extra ...any) (*Payment, error) {
	var p Payment
	dest := []any{
		&p.ID, &p.OrderID, &p.Provider, &p.TxnID, &p.MerchantKey, &p.Amount, &p.ProductInfo, &p.FirstName, &p.Email, &p.Phone,
		&p.SuccessURL, &p.FailureURL, &p.Hash, &p.Status, &p.GatewayRef, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	if err := r.q.QueryRow(ctx, `
		INSERT INTO payments (order_id, provider, txn_id, merchant_key, amount, product_info, first_name, email,
		                      phone, surl, furl, hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE(NULLIF($13, ''), 'pending'))
		RETURNING id, status, created_at, updated_at
	`, p.OrderID, p.Provider, p.TxnID, p.MerchantKey, p.Amount, p.ProductInfo, p.FirstName, p.Email, p.Phone,
		p.SuccessURL, p.FailureURL, p.Hash, p.Status).
		Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByTxnID(ctx context.Context, txnID string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE txn_id = $1
	`, txnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by txn_id: %w", err)
	}
	return p, nil
}

// RecordOutcome relies on the row lock taken by UPDATE: a concurrent caller
// blocks until the first commits, then re-checks status <> 'paid' and
// matches nothing, so only one caller sees paidNow.
func (r *Repository) RecordOutcome(ctx context.Context, txnID, status, gatewayRef string) (*Payment, bool, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `
		UPDATE payments
		   SET status = $2,
		       gateway_ref = COALESCE(NULLIF($3, ''), gateway_ref),
		       updated_at = now()
		 WHERE txn_id = $1 AND status <> 'paid'
		RETURNING `+paymentColumns, txnID, status, gatewayRef))
	if err == nil {
		return p, status == StatusPaid, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("record payment outcome: %w", err)
	}

	// either unknown or already paid
	p, err = r.GetByTxnID(ctx, txnID)
	return p, false, err
}

// List returns payments newest first, optionally filtered by status, together
// with the total count for pagination.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx, `
SELECT `+paymentColumns+`,
       COUNT(*) OVER() AS total_count
FROM payments
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Payment
		total int
	)
	for rows.Next() {
		var t int
		p, err := scanPayment(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		total = t
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return out, total, nil
}
