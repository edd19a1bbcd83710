package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace-service/internal/session"
	"marketplace-service/internal/wizard"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

var _ session.Store = (*Client)(nil)

// NewClient creates a new Redis client and checks connectivity
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

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }
func wizardKey(id string) string  { return fmt.Sprintf("wizard:%s", id) }

// LoadSession reads a session hash. A missing key yields nil, nil.
func (c *Client) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	result, err := c.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	collapsed, _ := strconv.ParseBool(result["sidebar_collapsed"])
	return &session.Session{
		ID:               id,
		Token:            result["token"],
		SidebarCollapsed: collapsed,
	}, nil
}

// SaveSession writes a session hash and refreshes its TTL
func (c *Client) SaveSession(ctx context.Context, s *session.Session, ttl time.Duration) error {
	key := sessionKey(s.ID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"token", s.Token,
		"sidebar_collapsed", strconv.FormatBool(s.SidebarCollapsed),
	)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// LoadWizard reads wizard state. A missing key yields nil, nil.
func (c *Client) LoadWizard(ctx context.Context, id string) (*wizard.Wizard, error) {
	raw, err := c.rdb.Get(ctx, wizardKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var w wizard.Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("corrupt wizard state %s: %w", id, err)
	}
	return &w, nil
}

// SaveWizard stores wizard state with a TTL
func (c *Client) SaveWizard(ctx context.Context, w *wizard.Wizard, ttl time.Duration) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard: %w", err)
	}
	return c.rdb.Set(ctx, wizardKey(w.ID), raw, ttl).Err()
}

// DeleteWizard drops wizard state
func (c *Client) DeleteWizard(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, wizardKey(id)).Err()
}

func idempotencyKey(key string) string { return fmt.Sprintf("idempotency:%s", key) }

// idempotencyPending marks a key claimed by a request that has not finished
const idempotencyPending = "pending"

// ReserveIdempotencyKey claims a key with SETNX. When the key is taken it
// returns the stored order id, or "" while the first request is running.
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	ok, err := c.rdb.SetNX(ctx, idempotencyKey(key), idempotencyPending, ttl).Result()
	if err != nil || ok {
		return "", ok, err
	}
	orderID, err := c.GetIdempotencyKey(ctx, key)
	if err != nil || orderID == idempotencyPending {
		return "", false, err
	}
	return orderID, false, nil
}

// ReleaseIdempotencyKey drops a claim so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// SetIdempotencyKey stores the order created for an idempotency key
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the value stored for a key, or "" if none
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	orderID, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return orderID, err
}

// MarkEventProcessed records an event id. It returns false when the event
// was already recorded.
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("processed:%s", eventID), "1", ttl).Result()
}

// UnmarkEventProcessed removes an event id so the event can be retried
func (c *Client) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("processed:%s", eventID)).Err()
}
