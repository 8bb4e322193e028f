package paymentsrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps payments in process memory. It backs sandbox runs without
// a database and the handler tests; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	byTxn   map[string]*Payment
	order   []string
	logs    []PaymentLog
	nextID  int64
	nextLog int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTxn: make(map[string]*Payment),
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, p *Payment) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byTxn[p.TxnID]; exists {
		return nil, fmt.Errorf("create payment: txn_id %s already exists", p.TxnID)
	}

	m.nextID++
	p.ID = m.nextID
	if p.Status == "" {
		p.Status = StatusPending
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt

	cp := *p
	m.byTxn[p.TxnID] = &cp
	m.order = append(m.order, p.TxnID)
	return p, nil
}

func (m *MemoryStore) GetByTxnID(ctx context.Context, txnID string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byTxn[txnID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) RecordOutcome(ctx context.Context, txnID, status, gatewayRef string) (*Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byTxn[txnID]
	if !ok {
		return nil, false, nil
	}
	var paidNow bool
	if p.Status != StatusPaid {
		paidNow = status == StatusPaid
		p.Status = status
		if gatewayRef != "" {
			ref := gatewayRef
			p.GatewayRef = &ref
		}
		p.UpdatedAt = m.now()
	}
	cp := *p
	return &cp, paidNow, nil
}

func (m *MemoryStore) List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Payment
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.byTxn[m.order[i]]
		if status != "" && p.Status != status {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *MemoryStore) InsertPaymentLog(ctx context.Context, paymentID int64, logType string, payload any) error {
	var stored any
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s log payload: %w", logType, err)
		}
		stored = json.RawMessage(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLog++
	m.logs = append(m.logs, PaymentLog{
		ID:        m.nextLog,
		PaymentID: paymentID,
		LogType:   logType,
		Payload:   stored,
		CreatedAt: m.now(),
	})
	return nil
}

// Logs returns the audit entries written for one payment, oldest first.
func (m *MemoryStore) Logs(paymentID int64) []PaymentLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PaymentLog
	for _, l := range m.logs {
		if l.PaymentID == paymentID {
			out = append(out, l)
		}
	}
	return out
}
