package payments

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TxnIDGenerator mints TXN_<orderId>_<epochMillis> ids. The millisecond stamp
// is strictly increasing for the life of the generator, so retries of the
// same order never collide even inside one millisecond.
type TxnIDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewTxnIDGenerator() *TxnIDGenerator {
	return &TxnIDGenerator{now: time.Now}
}

func (g *TxnIDGenerator) Next(orderID string) string {
	return fmt.Sprintf("TXN_%s_%d", orderID, g.stamp())
}

func (g *TxnIDGenerator) stamp() int64 {
	for {
		now := g.now().UnixMilli()
		prev := g.last.Load()
		if now <= prev {
			now = prev + 1
		}
		if g.last.CompareAndSwap(prev, now) {
			return now
		}
	}
}
