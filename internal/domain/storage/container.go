package storage

import (
	"context"
	"fmt"
	"sync"

	"bazaar/internal/domain/paymentsrepo"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool *pgxpool.Pool // nil in memory mode
	mem  *paymentsrepo.MemoryStore
	// serialises memory-mode units of work
	memTx sync.Mutex

	Payments paymentsrepo.Store
	PayLogs  paymentsrepo.LogsStore
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:     db,
		Payments: paymentsrepo.NewRepository(db),
		PayLogs:  paymentsrepo.NewLogsRepository(db),
	}
}

// NewMemoryContainer backs the container with process memory (sandbox, tests).
func NewMemoryContainer() *Container {
	mem := paymentsrepo.NewMemoryStore()
	return &Container{
		mem:      mem,
		Payments: mem,
		PayLogs:  mem,
	}
}

// Memory returns the in-memory store, or nil when backed by Postgres.
func (c *Container) Memory() *paymentsrepo.MemoryStore { return c.mem }

// PaymentsTx is a tx-scoped set of repos for atomic units of work.
type PaymentsTx struct {
	Payments paymentsrepo.Store
	PayLogs  paymentsrepo.LogsStore
}

// WithTx runs a payments unit-of-work atomically.
func (c *Container) WithTx(ctx context.Context, fn func(s *PaymentsTx) error) error {
	if c.mem != nil {
		c.memTx.Lock()
		defer c.memTx.Unlock()
		return fn(&PaymentsTx{Payments: c.mem, PayLogs: c.mem})
	}
	if c.pool == nil {
		return fmt.Errorf("storage container has neither a pool nor a memory store")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	s := &PaymentsTx{
		Payments: paymentsrepo.NewRepository(tx),
		PayLogs:  paymentsrepo.NewLogsRepository(tx),
	}
	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
