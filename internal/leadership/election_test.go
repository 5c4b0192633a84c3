/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Key != DefaultKey {
		t.Fatalf("key = %q", cfg.Key)
	}
	if cfg.LeaseDuration != defaultLeaseDuration || cfg.RetryInterval != defaultRetryInterval {
		t.Fatalf("unexpected timings %v/%v", cfg.LeaseDuration, cfg.RetryInterval)
	}
	if cfg.InstanceID == "" {
		t.Fatal("expected generated instance ID")
	}
}

func TestNewElectionUnreachableRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestElectionWithoutRedisStaysFollower(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	e := NewElectionWithClient(client, Config{RetryInterval: 10 * time.Millisecond}, zerolog.Nop())
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	if e.IsLeader() {
		t.Fatal("instance without redis must not lead")
	}
}
