package redis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/config"
)

// Client mirrors presence state into Redis so UI surfaces can read online
// flags and last-seen stamps without hitting the relational store. The mirror
// is best-effort: a failed write is logged and never rolls anything back.
type Client struct {
	client *redis.Client
	logger *slog.Logger
}

// NewClient connects using the configured options.
func NewClient(cfg config.RedisConfig) *Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	return &Client{
		client: client,
		logger: slog.Default(),
	}
}

// MarkOnline adds the user to the online set.
func (c *Client) MarkOnline(ctx context.Context, userId int64) error {
	err := c.client.SAdd(ctx, OnlineSetKey, userId).Err()
	if err != nil {
		c.logger.Warn("Failed to mirror online state", "userId", userId, "error", err)
	}
	return err
}

// MarkOffline removes the user from the online set and stamps last-seen.
func (c *Client) MarkOffline(ctx context.Context, userId int64, lastSeen time.Time) error {
	pipe := c.client.Pipeline()
	pipe.SRem(ctx, OnlineSetKey, userId)
	pipe.Set(ctx, BuildLastSeenKey(userId), lastSeen.UnixMilli(), LastSeenTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		c.logger.Warn("Failed to mirror offline state", "userId", userId, "error", err)
	}
	return err
}

// Reset clears the online set. Called on startup: the registry is empty after
// a restart, so every user is offline until they reconnect.
func (c *Client) Reset(ctx context.Context) error {
	return c.client.Del(ctx, OnlineSetKey).Err()
}

// LastSeen returns the mirrored last-seen stamp, zero when absent.
func (c *Client) LastSeen(ctx context.Context, userId int64) (time.Time, error) {
	val, err := c.client.Get(ctx, BuildLastSeenKey(userId)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Raw exposes the underlying client (health checks).
func (c *Client) Raw() *redis.Client {
	return c.client
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}
