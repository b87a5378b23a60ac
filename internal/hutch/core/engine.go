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
	"fmt"
)

// Engine owns per-document revision histories: it generates revisions,
// detects lost-update conflicts by walking the lineage, prunes history,
// and appends every accepted write to the replication log.
//
// The engine holds no locks across a save; the only concurrency guard is
// the version-matched conditional update at the store. Two connections
// racing to save the same document therefore resolve to exactly one
// acceptance and one lineage conflict.
type Engine struct {
	histories  HistoryStore
	log        CommitLog
	maxHistory int
}

// NewEngine builds an engine over the given history store and replication
// log (a Store satisfies both).
func NewEngine(histories HistoryStore, log CommitLog) *Engine {
	return &Engine{
		histories:  histories,
		log:        log,
		maxHistory: MaxHistory,
	}
}

// Save stores a new revision of doc in collection and returns the freshly
// generated revision id.
//
// A document with no prior history must not carry a revision field; it is
// stored at version 0. A document with history must carry the revision it
// was edited from; if that revision is no longer the leaf the save fails
// with a lineage conflict whose payload is the full chain of revisions the
// caller has not seen. The caller's map is not mutated.
func (e *Engine) Save(ctx context.Context, collection string, doc Document) (string, error) {
	id, ok := doc.ID()
	if !ok {
		return "", ErrInvalidDocument("no id", doc)
	}

	history, err := e.histories.FindHistory(ctx, collection, id)
	if err != nil {
		return "", fmt.Errorf("save %s/%s: find: %w", collection, id, err)
	}

	if history == nil {
		return e.saveFirst(ctx, collection, doc)
	}
	return e.saveNext(ctx, collection, doc, history)
}

func (e *Engine) saveFirst(ctx context.Context, collection string, doc Document) (string, error) {
	if doc.HasRevision() {
		return "", ErrInvalidDocument("document has revision, but no known parent", doc)
	}

	rev := NewRevision()
	snap := doc.Clone()
	snap[FieldRevision] = rev
	snap[FieldParent] = nil

	id, _ := snap.ID()
	err := e.histories.InsertHistory(ctx, collection, &History{
		ID:        id,
		Version:   0,
		Revisions: map[string]Document{rev: snap},
		Leaf:      snap,
	})
	if err != nil {
		return "", err
	}

	if err := e.commit(ctx, collection, snap); err != nil {
		return "", err
	}
	recordWrite()
	return rev, nil
}

func (e *Engine) saveNext(ctx context.Context, collection string, doc Document, history *History) (string, error) {
	base, ok := doc.Revision()
	if !ok {
		return "", ErrInvalidDocument("missing revision", doc)
	}

	leafRev := history.LeafRevision()
	if base != leafRev {
		return "", e.conflict(history, base)
	}

	rev := NewRevision()
	snap := doc.Clone()
	snap[FieldParent] = base
	snap[FieldRevision] = rev

	next := history.Clone()
	next.Version++
	for _, old := range pruneSet(history, e.maxHistory) {
		delete(next.Revisions, old)
	}
	next.Revisions[rev] = snap
	next.Leaf = snap

	matched, err := e.histories.UpdateHistory(ctx, collection, history.Version, next)
	if err != nil {
		return "", fmt.Errorf("save %s/%s: update: %w", collection, history.ID, err)
	}
	if !matched {
		// A concurrent writer advanced the history between our read and
		// the conditional update. Re-read and report what we lost to,
		// never a silent acceptance.
		current, err := e.histories.FindHistory(ctx, collection, history.ID)
		if err != nil {
			return "", fmt.Errorf("save %s/%s: reread after conflict: %w", collection, history.ID, err)
		}
		if current == nil {
			return "", ErrNotFound(history.ID)
		}
		return "", e.conflict(current, base)
	}

	if err := e.commit(ctx, collection, snap); err != nil {
		return "", err
	}
	recordWrite()
	return rev, nil
}

// conflict counts the refusal before the delta walk, so the metric
// matches refused writes even when the chain cannot be materialized.
func (e *Engine) conflict(history *History, base string) error {
	recordConflict()
	delta, err := LineageDelta(history.Revisions, base, history.LeafRevision())
	if err != nil {
		return err
	}
	return ErrLineage(delta)
}

// Get returns the current leaf snapshot for id in collection.
func (e *Engine) Get(ctx context.Context, collection, id string) (Document, error) {
	history, err := e.histories.FindHistory(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if history == nil {
		return nil, ErrNotFound(id)
	}
	return history.Leaf, nil
}

// commit appends the accepted snapshot to the replication log. The write
// is not reported accepted until the log acknowledges.
func (e *Engine) commit(ctx context.Context, collection string, snap Document) error {
	if err := e.log.AppendCommit(ctx, collection, snap); err != nil {
		return fmt.Errorf("commit log append: %w", err)
	}
	recordCommitAppend()
	return nil
}
