// Package journal records handler outcomes in Redis.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-relay/internal/domain"
)

const DefaultPrefix = "voice-relay:"

type Config struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	MaxEntries int64
	TTL        time.Duration
}

// Redis keeps the most recent outcomes in a capped list and a counter per
// status in a hash.
type Redis struct {
	client     *redis.Client
	outcomes   string
	stats      string
	maxEntries int64
	ttl        time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(rdb, cfg), nil
}

func NewWithClient(rdb *redis.Client, cfg Config) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	return &Redis{
		client:     rdb,
		outcomes:   cfg.Prefix + "outcomes",
		stats:      cfg.Prefix + "stats",
		maxEntries: cfg.MaxEntries,
		ttl:        cfg.TTL,
	}
}

func (r *Redis) Record(ctx context.Context, outcome domain.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.outcomes, data)
	pipe.LTrim(ctx, r.outcomes, 0, r.maxEntries-1)
	pipe.HIncrBy(ctx, r.stats, outcome.Status(), 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.outcomes, r.ttl)
		pipe.Expire(ctx, r.stats, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

func (r *Redis) Stats(ctx context.Context) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.stats).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	stats := make(map[string]int64, len(raw))
	for status, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing counter %s: %w", status, err)
		}
		stats[status] = n
	}
	return stats, nil
}

// Recent returns up to n of the latest outcomes, newest first.
func (r *Redis) Recent(ctx context.Context, n int64) ([]domain.Outcome, error) {
	items, err := r.client.LRange(ctx, r.outcomes, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading outcomes: %w", err)
	}

	outcomes := make([]domain.Outcome, 0, len(items))
	for _, item := range items {
		var o domain.Outcome
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			return nil, fmt.Errorf("decoding outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
