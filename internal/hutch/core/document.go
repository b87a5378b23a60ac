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

// Reserved field names on a document snapshot. Everything else belongs to
// the caller.
const (
	// FieldID is the caller-supplied document identifier, unique within
	// its collection.
	FieldID = "id"
	// FieldRevision is the server-generated revision id of a snapshot.
	FieldRevision = "revision"
	// FieldParent is the revision id this snapshot was derived from; nil
	// for the first revision of a document.
	FieldParent = "parentRevision"
)

// Document is one snapshot of a document: the caller's fields plus the
// reserved id/revision/parentRevision fields.
type Document map[string]any

// ID returns the document identifier, if present and well-formed.
func (d Document) ID() (string, bool) {
	s, ok := d[FieldID].(string)
	return s, ok && s != ""
}

// Revision returns the revision field, if present and well-formed.
func (d Document) Revision() (string, bool) {
	s, ok := d[FieldRevision].(string)
	return s, ok && s != ""
}

// HasRevision reports whether a revision field is present at all,
// regardless of its type. First writes must not carry one in any form.
func (d Document) HasRevision() bool {
	_, ok := d[FieldRevision]
	return ok
}

// Parent returns the parent revision id, or "" for a first revision.
func (d Document) Parent() string {
	s, _ := d[FieldParent].(string)
	return s
}

// Clone returns a deep copy of the document. Nested JSON-shaped values
// (maps and slices) are copied; anything else is assumed immutable.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Document:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// History is the stored record for one document identifier: its full
// retained revision set, the monotonic version counter used as the
// optimistic-concurrency token, and the current leaf snapshot.
type History struct {
	ID        string              `json:"id"`
	Version   int64               `json:"version"`
	Revisions map[string]Document `json:"revisions"`
	Leaf      Document            `json:"leaf"`
}

// LeafRevision returns the revision id of the current leaf.
func (h *History) LeafRevision() string {
	rev, _ := h.Leaf.Revision()
	return rev
}

// Clone returns a deep copy of the history record.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	out := &History{
		ID:        h.ID,
		Version:   h.Version,
		Revisions: make(map[string]Document, len(h.Revisions)),
		Leaf:      h.Leaf.Clone(),
	}
	for rev, doc := range h.Revisions {
		out.Revisions[rev] = doc.Clone()
	}
	return out
}

// Credential is the stored record for one username. A revoked user keeps
// its record with the hash and salt cleared and roles emptied, preserving
// the audit trail.
type Credential struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"passwordHash,omitempty"`
	Salt         []byte `json:"salt,omitempty"`
	Roles        []Role `json:"roles"`
}

// Revoked reports whether the credential has been revoked.
func (c *Credential) Revoked() bool {
	return len(c.PasswordHash) == 0 || len(c.Salt) == 0
}

// Clone returns a copy of the credential record.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := &Credential{Username: c.Username}
	out.PasswordHash = append([]byte(nil), c.PasswordHash...)
	out.Salt = append([]byte(nil), c.Salt...)
	out.Roles = append([]Role(nil), c.Roles...)
	return out
}
