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

import "testing"

// chain builds a linear history of n revisions r0 -> r1 -> ... and
// returns the revision map plus the ordered revision ids.
func chain(n int) (map[string]Document, []string) {
	revs := make(map[string]Document, n)
	ids := make([]string, n)
	parent := any(nil)
	for i := 0; i < n; i++ {
		rev := NewRevision()
		revs[rev] = Document{
			FieldID:       "doc1",
			FieldRevision: rev,
			FieldParent:   parent,
			"step":        i,
		}
		ids[i] = rev
		parent = rev
	}
	return revs, ids
}

// TestLineageDelta_OrderAndEndpoints verifies the conflict-resolution
// primitive: the delta reads oldest to newest and includes both the
// ancestor and the leaf snapshots.
func TestLineageDelta_OrderAndEndpoints(t *testing.T) {
	revs, ids := chain(5)

	delta, err := LineageDelta(revs, ids[1], ids[4])
	if err != nil {
		t.Fatalf("LineageDelta: %v", err)
	}
	if len(delta) != 4 {
		t.Fatalf("expected 4 snapshots (r1..r4), got %d", len(delta))
	}
	for i, want := range ids[1:5] {
		got, _ := delta[i].Revision()
		if got != want {
			t.Fatalf("delta[%d] = %s, want %s", i, got, want)
		}
	}
}

// TestLineageDelta_LeafToItself returns just the leaf.
func TestLineageDelta_LeafToItself(t *testing.T) {
	revs, ids := chain(3)
	delta, err := LineageDelta(revs, ids[2], ids[2])
	if err != nil {
		t.Fatalf("LineageDelta: %v", err)
	}
	if len(delta) != 1 {
		t.Fatalf("expected single snapshot, got %d", len(delta))
	}
}

// TestLineageDelta_PrunedAncestorTruncates verifies the walk bottoms out
// gracefully when the requested ancestor fell outside the retained
// window, yielding the truncated chain rather than failing.
func TestLineageDelta_PrunedAncestorTruncates(t *testing.T) {
	revs, ids := chain(4)
	delete(revs, ids[0]) // ancestor pruned away

	delta, err := LineageDelta(revs, ids[0], ids[3])
	if err != nil {
		t.Fatalf("LineageDelta: %v", err)
	}
	if len(delta) != 3 {
		t.Fatalf("expected truncated chain of 3, got %d", len(delta))
	}
	got, _ := delta[0].Revision()
	if got != ids[1] {
		t.Fatalf("truncated chain should start at oldest retained %s, got %s", ids[1], got)
	}
}

// TestLineageDelta_UnknownLeaf rejects a walk from a revision that is not
// in the history at all.
func TestLineageDelta_UnknownLeaf(t *testing.T) {
	revs, _ := chain(2)
	if _, err := LineageDelta(revs, "whatever", "missing"); err == nil {
		t.Fatal("expected an error for an unknown leaf revision")
	}
}

// TestPruneSet_UnderBound leaves small histories alone.
func TestPruneSet_UnderBound(t *testing.T) {
	revs, ids := chain(10)
	h := &History{ID: "doc1", Revisions: revs, Leaf: revs[ids[9]]}
	if evict := pruneSet(h, MaxHistory); len(evict) != 0 {
		t.Fatalf("no eviction expected under the bound, got %v", evict)
	}
}

// TestPruneSet_KeepsLeafChainEvictsOldest verifies the selection rule:
// the newest max-1 chain entries survive (so the bound holds once the new
// leaf lands) and the leaf plus its immediate ancestor are never evicted.
func TestPruneSet_KeepsLeafChainEvictsOldest(t *testing.T) {
	const n = MaxHistory + 5
	revs, ids := chain(n)
	h := &History{ID: "doc1", Revisions: revs, Leaf: revs[ids[n-1]]}

	evict := pruneSet(h, MaxHistory)
	if want := n - (MaxHistory - 1); len(evict) != want {
		t.Fatalf("expected %d evictions, got %d", want, len(evict))
	}

	evicted := make(map[string]bool, len(evict))
	for _, rev := range evict {
		evicted[rev] = true
	}
	if evicted[ids[n-1]] || evicted[ids[n-2]] {
		t.Fatal("leaf or its immediate ancestor marked for eviction")
	}
	// Evictions must be exactly the oldest prefix of the chain.
	for _, rev := range ids[:len(evict)] {
		if !evicted[rev] {
			t.Fatalf("expected oldest revision %s to be evicted", rev)
		}
	}
}

// TestPruneSet_EvictsUnreachable verifies entries no longer reachable
// from the leaf are evicted once the history hits the bound.
func TestPruneSet_EvictsUnreachable(t *testing.T) {
	revs, ids := chain(MaxHistory)
	orphan := NewRevision()
	revs[orphan] = Document{FieldID: "doc1", FieldRevision: orphan, FieldParent: "gone"}
	h := &History{ID: "doc1", Revisions: revs, Leaf: revs[ids[MaxHistory-1]]}

	evict := pruneSet(h, MaxHistory)
	found := false
	for _, rev := range evict {
		if rev == orphan {
			found = true
		}
	}
	if !found {
		t.Fatal("unreachable revision survived pruning")
	}
}
