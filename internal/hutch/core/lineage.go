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

import "fmt"

// MaxHistory bounds the number of revisions retained per document, so a
// history cannot grow until the stored record itself becomes the problem.
const MaxHistory = 25

// LineageDelta materializes what happened to a document between two
// revisions: it walks the parent chain backward from leafRev until
// ancestorRev and returns every snapshot visited, oldest to newest,
// including both endpoints.
//
// If the ancestor has been pruned out of the retained window the walk
// bottoms out and the result is the truncated chain from the oldest
// retained ancestor through the leaf.
func LineageDelta(revisions map[string]Document, ancestorRev, leafRev string) ([]Document, error) {
	cur, ok := revisions[leafRev]
	if !ok {
		return nil, fmt.Errorf("lineage: unknown leaf revision %q", leafRev)
	}

	var delta []Document
	for {
		delta = append(delta, cur)
		rev, _ := cur.Revision()
		if rev == ancestorRev {
			break
		}
		next, ok := revisions[cur.Parent()]
		if !ok {
			// Chain bottomed out before the ancestor: it was pruned.
			break
		}
		cur = next
	}

	for i, j := 0, len(delta)-1; i < j; i, j = i+1, j-1 {
		delta[i], delta[j] = delta[j], delta[i]
	}
	return delta, nil
}

// pruneSet decides which revisions to evict before a new leaf is added to
// the history. The policy: keep the newest max-1 revisions along the leaf's
// parent chain (so the chain is at most max entries once the new leaf
// lands), evict everything older plus anything no longer reachable from
// the leaf. The leaf and its immediate ancestor always survive, so a
// conflict against the current leaf can always be explained.
func pruneSet(h *History, max int) []string {
	if len(h.Revisions) < max {
		return nil
	}

	keep := make(map[string]struct{}, max)
	rev := h.LeafRevision()
	for len(keep) < max-1 {
		doc, ok := h.Revisions[rev]
		if !ok {
			break
		}
		keep[rev] = struct{}{}
		rev = doc.Parent()
		if rev == "" {
			break
		}
	}

	var evict []string
	for rev := range h.Revisions {
		if _, ok := keep[rev]; !ok {
			evict = append(evict, rev)
		}
	}
	return evict
}
