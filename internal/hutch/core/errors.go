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

// Package core implements the versioned document engine and its security
// boundary: revision lineage tracking, optimistic-concurrency writes, the
// append-only commit log contract, credential management, and role-based
// access control. The wire protocol on top lives in internal/hutch/api.
package core

import (
	"errors"
	"fmt"
)

// Code is the wire-level status code a failure maps onto. Clients receive
// the code (and, for some codes, a structured payload) but never internal
// diagnostics.
type Code string

const (
	CodeOK             Code = "ok"
	CodeUnknown        Code = "unknown"
	CodePrimaryKey     Code = "pkey"
	CodeLineage        Code = "lineage"
	CodeNotFound       Code = "notfound"
	CodeDenied         Code = "denied"
	CodeInvalid        Code = "invalid"
	CodeNotImplemented Code = "notimpl"
)

// Error is a domain failure carrying its wire code and an optional payload
// that is serialized into the response's "doc" field.
type Error struct {
	code    Code
	msg     string
	payload any
	revoked bool
}

func (e *Error) Error() string {
	if e.msg == "" {
		return string(e.code)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Code returns the wire code for this failure.
func (e *Error) Code() Code { return e.code }

// Payload returns the structured error payload, or nil when the code alone
// is the whole story.
func (e *Error) Payload() any { return e.payload }

// ErrInvalidDocument reports a malformed document. The payload echoes the
// offending document back to the caller together with a short reason.
func ErrInvalidDocument(msg string, doc Document) *Error {
	return &Error{
		code:    CodeInvalid,
		msg:     msg,
		payload: map[string]any{"doc": doc, "msg": msg},
	}
}

// ErrBadPassword reports a password that fails the minimal quality check.
func ErrBadPassword(msg string) *Error {
	return &Error{code: CodeInvalid, msg: msg}
}

// ErrLineage reports an optimistic-concurrency conflict. The payload is the
// ordered chain of revisions (oldest to newest) between the caller's base
// revision and the current leaf, so the caller can merge and resubmit.
func ErrLineage(delta []Document) *Error {
	return &Error{
		code:    CodeLineage,
		msg:     "document has diverged from the submitted revision",
		payload: map[string]any{"lineage": delta},
	}
}

// ErrNotFound reports that no history exists for the requested identifier.
func ErrNotFound(id string) *Error {
	return &Error{code: CodeNotFound, msg: fmt.Sprintf("no document %q", id)}
}

// ErrPrimaryKey reports an identifier collision on insert. Under the
// find-then-insert write protocol this is only reachable when two first
// writes race.
func ErrPrimaryKey(id string) *Error {
	return &Error{code: CodePrimaryKey, msg: fmt.Sprintf("document %q already exists", id)}
}

// ErrDenied reports an authorization failure for the given identity.
func ErrDenied(who Identity, need []Role) *Error {
	name := "(unauthenticated)"
	if who.Authenticated {
		name = who.Username
	}
	return &Error{code: CodeDenied, msg: fmt.Sprintf("%s lacks %v", name, need)}
}

// ErrRevoked reports an authentication attempt against a revoked username.
// It shares the denied wire code but stays distinguishable in-process so
// callers never conflate revocation with a wrong password.
func ErrRevoked(username string) *Error {
	return &Error{
		code:    CodeDenied,
		msg:     fmt.Sprintf("user %q has been revoked", username),
		revoked: true,
	}
}

// ErrNotImplemented reports a reserved wire method that is part of the
// protocol surface but has no behavior yet.
func ErrNotImplemented(method string) *Error {
	return &Error{code: CodeNotImplemented, msg: fmt.Sprintf("%s is not implemented", method)}
}

// CodeOf maps any error onto its wire code. Non-domain errors collapse to
// CodeUnknown; the caller is expected to log them before reporting.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeUnknown
}

// PayloadOf returns the structured payload for a domain error, or nil.
func PayloadOf(err error) any {
	var de *Error
	if errors.As(err, &de) {
		return de.payload
	}
	return nil
}

// IsRevoked reports whether err is a revoked-user authentication failure.
func IsRevoked(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.revoked
}
