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

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is the in-process implementation of the full backing-store
// contract. It is the default adapter for demos and the workhorse for
// tests; durability is whatever the process lifetime gives you.
//
// Values are deep-copied on the way in and out, so callers can never
// mutate stored state behind the store's back.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*History
	credentials map[string]*Credential

	logBudget int64
	logBytes  int64
	commits   []CommitEntry
	sizes     []int64
}

// NewMemoryStore builds an empty store. A non-positive logBudgetBytes
// selects DefaultCommitLogBytes.
func NewMemoryStore(logBudgetBytes int64) *MemoryStore {
	if logBudgetBytes <= 0 {
		logBudgetBytes = DefaultCommitLogBytes
	}
	return &MemoryStore{
		collections: make(map[string]map[string]*History),
		credentials: make(map[string]*Credential),
		logBudget:   logBudgetBytes,
	}
}

// FindHistory implements HistoryStore.
func (m *MemoryStore) FindHistory(ctx context.Context, collection, id string) (*History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collections[collection][id].Clone(), nil
}

// InsertHistory implements HistoryStore.
func (m *MemoryStore) InsertHistory(ctx context.Context, collection string, h *History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collections[collection]
	if coll == nil {
		coll = make(map[string]*History)
		m.collections[collection] = coll
	}
	if _, exists := coll[h.ID]; exists {
		return ErrPrimaryKey(h.ID)
	}
	coll[h.ID] = h.Clone()
	return nil
}

// UpdateHistory implements HistoryStore. The version comparison and the
// replacement happen under one lock, which is the atomicity the engine's
// optimistic-concurrency protocol leans on.
func (m *MemoryStore) UpdateHistory(ctx context.Context, collection string, expectVersion int64, h *History) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.collections[collection][h.ID]
	if !ok || cur.Version != expectVersion {
		return false, nil
	}
	m.collections[collection][h.ID] = h.Clone()
	return true, nil
}

// FindCredential implements CredentialBackend.
func (m *MemoryStore) FindCredential(ctx context.Context, username string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credentials[username].Clone(), nil
}

// UpsertCredential implements CredentialBackend.
func (m *MemoryStore) UpsertCredential(ctx context.Context, c *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[c.Username] = c.Clone()
	return nil
}

// ListCredentials implements CredentialBackend.
func (m *MemoryStore) ListCredentials(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.credentials))
	for name := range m.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// AppendCommit implements CommitLog. Entries are sized by their JSON
// encoding; once the byte budget is exceeded the oldest entries are
// evicted first. The newest entry is never evicted, even if it alone
// exceeds the budget.
func (m *MemoryStore) AppendCommit(ctx context.Context, collection string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := CommitEntry{Collection: collection, Doc: doc.Clone()}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("commit entry encode: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.commits = append(m.commits, entry)
	m.sizes = append(m.sizes, int64(len(encoded)))
	m.logBytes += int64(len(encoded))
	for m.logBytes > m.logBudget && len(m.commits) > 1 {
		m.logBytes -= m.sizes[0]
		m.commits = m.commits[1:]
		m.sizes = m.sizes[1:]
	}
	return nil
}

// Commits returns a copy of the retained replication-log entries, oldest
// first. The core exposes no wire-level read API for the log; this
// accessor exists for tests and in-process consumers.
func (m *MemoryStore) Commits() []CommitEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CommitEntry, len(m.commits))
	for i, e := range m.commits {
		out[i] = CommitEntry{Collection: e.Collection, Doc: e.Doc.Clone()}
	}
	return out
}
