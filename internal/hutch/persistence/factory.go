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

package persistence

import (
	"fmt"

	"hutch/internal/hutch/core"
)

// Config selects and parameterizes a backing store.
type Config struct {
	// RedisAddr is required by the redis adapter, e.g. "127.0.0.1:6379".
	RedisAddr string
	Options
}

// BuildStore constructs a backing store by adapter name:
//   - "memory" (default): in-process store, volatile, no external deps
//   - "redis": Redis-backed store with Lua conditional writes and
//     WAIT-based majority durability
func BuildStore(adapter string, cfg Config) (core.Store, error) {
	switch adapter {
	case "", "memory":
		return core.NewMemoryStore(cfg.CommitLogBytes), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis adapter requires an address")
		}
		return NewRedisStore(NewGoRedisCommander(cfg.RedisAddr), cfg.Options), nil
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", adapter)
	}
}
