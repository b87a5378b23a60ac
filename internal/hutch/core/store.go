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

import "context"

// The backing collection store is abstract: the engine only requires
// atomic find/insert/conditional-update with majority-durable
// acknowledgment, plus an append-only byte-capped commit log. A write is
// "accepted" exactly when the store acknowledges it.

// HistoryStore is the document-history side of the backing store.
type HistoryStore interface {
	// FindHistory returns the history for id in collection, or nil when
	// none exists.
	FindHistory(ctx context.Context, collection, id string) (*History, error)

	// InsertHistory stores a brand-new history record with majority
	// durability. An existing record for the same id yields an error with
	// code CodePrimaryKey.
	InsertHistory(ctx context.Context, collection string, h *History) error

	// UpdateHistory replaces the history for h.ID only if the stored
	// version still equals expectVersion, with majority durability. It
	// reports whether the conditional update matched; a false return is
	// the optimistic-concurrency guard firing, not an error.
	UpdateHistory(ctx context.Context, collection string, expectVersion int64, h *History) (bool, error)
}

// CredentialBackend is the credential side of the backing store.
type CredentialBackend interface {
	// FindCredential returns the record for username, or nil when the
	// username has never been created.
	FindCredential(ctx context.Context, username string) (*Credential, error)

	// UpsertCredential creates or replaces the record with majority
	// durability.
	UpsertCredential(ctx context.Context, c *Credential) error

	// ListCredentials returns at most limit usernames, sorted.
	ListCredentials(ctx context.Context, limit int) ([]string, error)
}

// CommitLog is the append-only replication log: one entry per accepted
// write, byte-capped with oldest-first eviction, no read API in this core.
type CommitLog interface {
	AppendCommit(ctx context.Context, collection string, doc Document) error
}

// Store aggregates the full backing-store contract. Concrete adapters live
// in internal/hutch/persistence; NewMemoryStore in this package provides
// the in-process default.
type Store interface {
	HistoryStore
	CredentialBackend
	CommitLog
}

// CommitEntry is the persisted shape of one replication-log record.
type CommitEntry struct {
	Collection string   `json:"collection"`
	Doc        Document `json:"doc"`
}

// DefaultCommitLogBytes is the replication log's default storage budget.
const DefaultCommitLogBytes int64 = 100 << 20
