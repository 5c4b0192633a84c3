/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/taskslot/internal/telemetry"
)

const (
	DefaultKey = "taskslot:leader:reminders"

	defaultLeaseDuration = 15 * time.Second
	defaultRetryInterval = 2 * time.Second
)

// Config configures the reminder dispatcher lease.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Key holds the current leader's instance ID.
	Key string

	// LeaseDuration is how long the lease lives without renewal.
	LeaseDuration time.Duration

	// RetryInterval is how often the lease is acquired or renewed.
	RetryInterval time.Duration

	InstanceID string
}

// DefaultConfig returns a local Redis setup with a random instance ID.
func DefaultConfig() Config {
	return Config{
		RedisAddr:     "localhost:6379",
		Key:           DefaultKey,
		LeaseDuration: defaultLeaseDuration,
		RetryInterval: defaultRetryInterval,
		InstanceID:    uuid.NewString(),
	}
}

func (c Config) withDefaults() Config {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	return c
}

// Election keeps a Redis lease so only one instance dispatches reminders.
type Election struct {
	client *redis.Client
	cfg    Config
	logger zerolog.Logger

	mu       sync.RWMutex
	isLeader bool
	leaderCh chan bool
}

// NewElection connects to Redis and fails when the server is unreachable.
func NewElection(cfg Config, logger zerolog.Logger) (*Election, error) {
	cfg = cfg.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info().
		Str("redis_addr", cfg.RedisAddr).
		Str("instance_id", cfg.InstanceID).
		Msg("connected to Redis for leader election")
	return NewElectionWithClient(client, cfg, logger), nil
}

// NewElectionWithClient uses an existing client. The election owns it after this call.
func NewElectionWithClient(client *redis.Client, cfg Config, logger zerolog.Logger) *Election {
	cfg = cfg.withDefaults()
	return &Election{
		client:   client,
		cfg:      cfg,
		logger:   logger.With().Str("component", "leader_election").Str("instance_id", cfg.InstanceID).Logger(),
		leaderCh: make(chan bool, 1),
	}
}

// Run campaigns until ctx is cancelled, then releases the lease if held.
func (e *Election) Run(ctx context.Context) {
	e.logger.Info().Dur("lease", e.cfg.LeaseDuration).Msg("starting leader election")

	ticker := time.NewTicker(e.cfg.RetryInterval)
	defer ticker.Stop()

	e.attempt(ctx)
	for {
		select {
		case <-ctx.Done():
			e.resign()
			return
		case <-ticker.C:
			e.attempt(ctx)
		}
	}
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// LeaderCh receives leadership changes. Changes are dropped when nobody reads.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// Leader returns the instance ID holding the lease, or "" when none does.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.cfg.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

// Close releases the Redis client.
func (e *Election) Close() error {
	return e.client.Close()
}

func (e *Election) attempt(ctx context.Context) {
	acquired, err := e.acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("leader lease failed")
		}
		e.setLeader(false)
		return
	}
	e.setLeader(acquired)
}

// acquire takes the lease with SETNX or renews it when this instance owns it.
func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.cfg.Key, e.cfg.InstanceID, e.cfg.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := e.Leader(ctx)
	if err != nil || current != e.cfg.InstanceID {
		return false, err
	}
	if err := e.client.Expire(ctx, e.cfg.Key, e.cfg.LeaseDuration).Err(); err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return true, nil
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

func (e *Election) resign() {
	if !e.IsLeader() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.Eval(ctx, releaseScript, []string{e.cfg.Key}, e.cfg.InstanceID).Err(); err != nil {
		e.logger.Error().Err(err).Msg("failed to release leader lease")
	} else {
		e.logger.Info().Msg("released leader lease")
	}
	e.setLeader(false)
}

func (e *Election) setLeader(leader bool) {
	e.mu.Lock()
	changed := e.isLeader != leader
	e.isLeader = leader
	e.mu.Unlock()
	if !changed {
		return
	}

	if leader {
		e.logger.Info().Msg("acquired leadership")
		telemetry.LeaderStatus.Set(1)
	} else {
		e.logger.Warn().Msg("lost leadership")
		telemetry.LeaderStatus.Set(0)
	}

	select {
	case e.leaderCh <- leader:
	default:
	}
}
