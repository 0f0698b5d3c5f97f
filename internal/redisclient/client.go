package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/record_attempt.lua
var recordAttemptScript string

type Client struct {
	rdb           *redis.Client
	attemptScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		attemptScript: redis.NewScript(recordAttemptScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// RecordPaymentAttempt atomically increments the rolling attempt counter for
// a user and returns the count inside the current window. The risk scorer
// reads this for the burst factor.
func (c *Client) RecordPaymentAttempt(ctx context.Context, userID int64, window time.Duration) (int, error) {
	key := fmt.Sprintf("payment:attempts:%d", userID)

	result, err := c.attemptScript.Run(ctx, c.rdb, []string{key}, int(window.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("record attempt script failed: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}

	return int(count), nil
}

func webhookSeenKey(provider, paymentID, eventType, eventID string) string {
	return fmt.Sprintf("webhook:seen:%s:%s:%s:%s", provider, paymentID, eventType, eventID)
}

// WasWebhookSeen reports whether the fast-path dedup marker exists, without
// setting it.
func (c *Client) WasWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, webhookSeenKey(provider, paymentID, eventType, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkWebhookSeen sets the fast-path dedup marker for a webhook event.
// Returns false if the event was already seen. The database dedup table is
// authoritative; this only short-circuits gateway retry storms.
func (c *Client) MarkWebhookSeen(ctx context.Context, provider, paymentID, eventType, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, webhookSeenKey(provider, paymentID, eventType, eventID), "1", ttl).Result()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
