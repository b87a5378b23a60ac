// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: September 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package persistence provides the durable backing-store adapters for the
// document engine and credential store. The in-memory default lives in
// core; this package holds the Redis adapter and the factory that selects
// between them.
package persistence

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrNoValue is returned by RedisCommander.Get when the key is absent.
var ErrNoValue = errors.New("no value")

// RedisCommander abstracts the minimal surface the Redis store needs.
// Implementations may wrap github.com/redis/go-redis/v9 or any
// equivalent; tests use an in-process fake.
type RedisCommander interface {
	// Eval runs a Lua script. All conditional writes go through Eval so
	// they execute atomically on the server.
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)

	// Get fetches a string value, or ErrNoValue when absent.
	Get(ctx context.Context, key string) (string, error)

	// SMembers fetches a set's members.
	SMembers(ctx context.Context, key string) ([]string, error)

	// Wait blocks until numReplicas replicas acknowledge all preceding
	// writes on this connection, or the timeout expires.
	Wait(ctx context.Context, numReplicas int, timeout time.Duration) error
}

// GoRedisCommander is the production RedisCommander over go-redis.
type GoRedisCommander struct{ c *redis.Client }

// NewGoRedisCommander connects to addr, e.g. "127.0.0.1:6379".
func NewGoRedisCommander(addr string) *GoRedisCommander {
	return &GoRedisCommander{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisCommander) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *GoRedisCommander) Get(ctx context.Context, key string) (string, error) {
	v, err := g.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoValue
	}
	return v, err
}

func (g *GoRedisCommander) SMembers(ctx context.Context, key string) ([]string, error) {
	return g.c.SMembers(ctx, key).Result()
}

func (g *GoRedisCommander) Wait(ctx context.Context, numReplicas int, timeout time.Duration) error {
	return g.c.Do(ctx, "WAIT", numReplicas, timeout.Milliseconds()).Err()
}
