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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"hutch/internal/hutch/core"
)

// Key layout under the namespace prefix:
//
//	<ns>:hist:<collection>:<id>  history record, JSON
//	<ns>:user:<username>         credential record, JSON
//	<ns>:users                   set of usernames
//	<ns>:commits                 replication log, list of JSON entries
//	<ns>:commits:bytes           running byte total of the log
//
// Conditional writes run as Lua scripts, so the compare and the write are
// one atomic server-side step.

// insertScript stores a new history only if the key is unused.
const insertScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`

// casScript replaces a history only while its stored version counter still
// equals the expected value. This is the engine's only concurrency guard.
const casScript = `
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
local rec = cjson.decode(cur)
if rec['version'] ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`

// upsertUserScript writes the credential record and indexes the username
// in one step.
const upsertUserScript = `
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`

// appendScript pushes one log entry and trims oldest-first back to the
// byte budget. The newest entry always survives.
const appendScript = `
redis.call('RPUSH', KEYS[1], ARGV[1])
local total = redis.call('INCRBY', KEYS[2], string.len(ARGV[1]))
local budget = tonumber(ARGV[2])
while total > budget and redis.call('LLEN', KEYS[1]) > 1 do
  local old = redis.call('LPOP', KEYS[1])
  total = redis.call('DECRBY', KEYS[2], string.len(old))
end
return total
`

// Options configures the Redis store.
type Options struct {
	// Namespace prefixes every key; defaults to "hutch".
	Namespace string
	// Replicas is how many replicas must acknowledge a write before it
	// counts as accepted. Zero disables the wait (standalone Redis).
	Replicas int
	// WaitTimeout bounds each durability wait; defaults to 5s.
	WaitTimeout time.Duration
	// CommitLogBytes is the replication-log budget; defaults to
	// core.DefaultCommitLogBytes.
	CommitLogBytes int64
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = "hutch"
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 5 * time.Second
	}
	if o.CommitLogBytes <= 0 {
		o.CommitLogBytes = core.DefaultCommitLogBytes
	}
	return o
}

// RedisStore implements the full backing-store contract on Redis.
type RedisStore struct {
	client RedisCommander
	opts   Options
}

var _ core.Store = (*RedisStore)(nil)

// NewRedisStore builds a store over the given client.
func NewRedisStore(client RedisCommander, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func (r *RedisStore) histKey(collection, id string) string {
	return fmt.Sprintf("%s:hist:%s:%s", r.opts.Namespace, collection, id)
}

func (r *RedisStore) userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", r.opts.Namespace, username)
}

func (r *RedisStore) usersKey() string   { return r.opts.Namespace + ":users" }
func (r *RedisStore) commitsKey() string { return r.opts.Namespace + ":commits" }
func (r *RedisStore) bytesKey() string   { return r.opts.Namespace + ":commits:bytes" }

// waitDurable blocks until the configured replica count has acknowledged,
// which is what "accepted" means for every write below.
func (r *RedisStore) waitDurable(ctx context.Context) error {
	if r.opts.Replicas <= 0 {
		return nil
	}
	if err := r.client.Wait(ctx, r.opts.Replicas, r.opts.WaitTimeout); err != nil {
		return fmt.Errorf("durability wait: %w", err)
	}
	return nil
}

// FindHistory implements core.HistoryStore.
func (r *RedisStore) FindHistory(ctx context.Context, collection, id string) (*core.History, error) {
	raw, err := r.client.Get(ctx, r.histKey(collection, id))
	if errors.Is(err, ErrNoValue) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis find history: %w", err)
	}
	var h core.History
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("redis history decode: %w", err)
	}
	return &h, nil
}

// InsertHistory implements core.HistoryStore.
func (r *RedisStore) InsertHistory(ctx context.Context, collection string, h *core.History) error {
	encoded, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("redis history encode: %w", err)
	}
	res, err := r.client.Eval(ctx, insertScript, []string{r.histKey(collection, h.ID)}, string(encoded))
	if err != nil {
		return fmt.Errorf("redis insert history: %w", err)
	}
	if n, _ := res.(int64); n != 1 {
		return core.ErrPrimaryKey(h.ID)
	}
	return r.waitDurable(ctx)
}

// UpdateHistory implements core.HistoryStore.
func (r *RedisStore) UpdateHistory(ctx context.Context, collection string, expectVersion int64, h *core.History) (bool, error) {
	encoded, err := json.Marshal(h)
	if err != nil {
		return false, fmt.Errorf("redis history encode: %w", err)
	}
	res, err := r.client.Eval(ctx, casScript, []string{r.histKey(collection, h.ID)}, expectVersion, string(encoded))
	if err != nil {
		return false, fmt.Errorf("redis update history: %w", err)
	}
	if n, _ := res.(int64); n != 1 {
		return false, nil
	}
	return true, r.waitDurable(ctx)
}

// FindCredential implements core.CredentialBackend.
func (r *RedisStore) FindCredential(ctx context.Context, username string) (*core.Credential, error) {
	raw, err := r.client.Get(ctx, r.userKey(username))
	if errors.Is(err, ErrNoValue) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis find credential: %w", err)
	}
	var c core.Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("redis credential decode: %w", err)
	}
	return &c, nil
}

// UpsertCredential implements core.CredentialBackend.
func (r *RedisStore) UpsertCredential(ctx context.Context, c *core.Credential) error {
	encoded, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis credential encode: %w", err)
	}
	keys := []string{r.userKey(c.Username), r.usersKey()}
	if _, err := r.client.Eval(ctx, upsertUserScript, keys, string(encoded), c.Username); err != nil {
		return fmt.Errorf("redis upsert credential: %w", err)
	}
	return r.waitDurable(ctx)
}

// ListCredentials implements core.CredentialBackend.
func (r *RedisStore) ListCredentials(ctx context.Context, limit int) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.usersKey())
	if err != nil {
		return nil, fmt.Errorf("redis list credentials: %w", err)
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// AppendCommit implements core.CommitLog.
func (r *RedisStore) AppendCommit(ctx context.Context, collection string, doc core.Document) error {
	encoded, err := json.Marshal(core.CommitEntry{Collection: collection, Doc: doc})
	if err != nil {
		return fmt.Errorf("redis commit encode: %w", err)
	}
	keys := []string{r.commitsKey(), r.bytesKey()}
	if _, err := r.client.Eval(ctx, appendScript, keys, string(encoded), r.opts.CommitLogBytes); err != nil {
		return fmt.Errorf("redis commit append: %w", err)
	}
	return r.waitDurable(ctx)
}
