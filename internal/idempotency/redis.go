package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pendingMarker = "pending"

var ErrInFlight = errors.New("an identical callback is still being processed")

type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// Cache remembers the outcome of processed gateway callbacks so a replayed
// callback gets the first answer back instead of being processed twice.
type Cache struct {
	rdb       *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.SugaredLogger
}

func New(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infow("connected to redis", "addr", cfg.Addr)
	return NewWithClient(rdb, cfg.TTL, cfg.KeyPrefix, logger), nil
}

func NewWithClient(rdb *redis.Client, ttl time.Duration, keyPrefix string, logger *zap.SugaredLogger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{rdb: rdb, ttl: ttl, keyPrefix: keyPrefix, logger: logger}
}

func (c *Cache) key(k string) string {
	return c.keyPrefix + k
}

// Claim reserves k. It returns (nil, nil) when the caller now owns k, the
// cached result when k was completed earlier, or ErrInFlight.
func (c *Cache) Claim(ctx context.Context, k string) ([]byte, error) {
	key := c.key(k)

	set, err := c.rdb.SetNX(ctx, key, pendingMarker, c.ttl).Result()
	if err != nil {
		return nil, err
	}
	if set {
		return nil, nil
	}

	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the claim
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	if val == pendingMarker {
		return nil, ErrInFlight
	}
	return []byte(val), nil
}

func (c *Cache) Complete(ctx context.Context, k string, result []byte) error {
	return c.rdb.Set(ctx, c.key(k), result, c.ttl).Err()
}

// Release drops a claim so the callback can be processed again.
func (c *Cache) Release(ctx context.Context, k string) error {
	return c.rdb.Del(ctx, c.key(k)).Err()
}

func (c *Cache) Close() error {
	c.logger.Info("closing redis client connection")
	return c.rdb.Close()
}
