/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for user planning profiles.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/taskslot/internal/slotengine"
	"github.com/friendsincode/taskslot/internal/telemetry"
)

// DefaultProfileTTL bounds how stale a cached profile may be.
const DefaultProfileTTL = 5 * time.Minute

// KeyProfile prefixes cached user profiles; the user id is appended.
const KeyProfile = "taskslot:cache:profile:"

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProfileTTL    time.Duration

	// DisableOnError turns the cache off after the first Redis failure.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ProfileTTL:     DefaultProfileTTL,
		DisableOnError: true,
	}
}

// Profile is the cached form of a user's planning settings.
type Profile struct {
	Preferences slotengine.Preferences `json:"preferences"`
	AllowSplit  bool                   `json:"allow_split"`
	Timezone    string                 `json:"timezone,omitempty"`
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// behaves like an unavailable one.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. An unreachable server yields a disabled cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = DefaultProfileTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config, logger zerolog.Logger) *Cache {
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = DefaultProfileTTL
	}
	return &Cache{client: client, logger: logger, config: cfg}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// GetProfile returns the cached profile for userID.
func (c *Cache) GetProfile(ctx context.Context, userID string) (*Profile, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	data, err := c.client.Get(ctx, KeyProfile+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheRequestsTotal.WithLabelValues("profile", "miss").Inc()
		return nil, false
	}
	if err != nil {
		telemetry.CacheRequestsTotal.WithLabelValues("profile", "error").Inc()
		c.handleError(err, "get")
		return nil, false
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Debug().Err(err).Str("user_id", userID).Msg("discarding unreadable cached profile")
		return nil, false
	}
	telemetry.CacheRequestsTotal.WithLabelValues("profile", "hit").Inc()
	return &p, true
}

// SetProfile stores p for userID.
func (c *Cache) SetProfile(ctx context.Context, userID string, p Profile) error {
	if !c.IsAvailable() {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, KeyProfile+userID, data, c.config.ProfileTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateProfile drops the cached profile for userID.
func (c *Cache) InvalidateProfile(ctx context.Context, userID string) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Del(ctx, KeyProfile+userID).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}
