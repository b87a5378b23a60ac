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

// Package api implements the session protocol: one websocket per client,
// JSON request envelopes dispatched against the engine and credential
// store under access control, responses correlated by the envelope's "i"
// field.
package api

import (
	"encoding/json"
	"fmt"

	"hutch/internal/hutch/core"
)

// Wire method names.
const (
	MethodSave       = "save"
	MethodGet        = "get"
	MethodAuth       = "auth"
	MethodCreateUser = "create-user"
	MethodRevokeUser = "revoke-user"
	MethodListUsers  = "list-users"

	// Reserved for a future change-feed surface; answered with an
	// explicit not-implemented status.
	MethodWatch = "watch"
	MethodDump  = "dump"
)

// StatusOK is the wire status of a successful response.
const StatusOK = string(core.CodeOK)

// methodRoles is the capability set each method requires. Auth itself
// requires none; the reserved methods never reach an access check.
var methodRoles = map[string][]core.Role{
	MethodSave:       {core.RoleWrite},
	MethodGet:        {core.RoleRead},
	MethodAuth:       {},
	MethodCreateUser: {core.RoleUsers},
	MethodRevokeUser: {core.RoleUsers},
	MethodListUsers:  {core.RoleUsers},
}

// metricMethod maps a wire method onto a fixed metric label value. A
// method outside the protocol surface collapses to a sentinel, so client
// input can never mint new label values.
func metricMethod(method string) string {
	switch method {
	case MethodSave, MethodGet, MethodAuth,
		MethodCreateUser, MethodRevokeUser, MethodListUsers,
		MethodWatch, MethodDump:
		return method
	}
	return "unknown"
}

// Request is one decoded envelope: `{"<method>": [args...], "i": n}`.
type Request struct {
	ID     int64
	Method string
	Args   []json.RawMessage
}

// ParseRequest decodes an envelope. The correlation id is extracted first:
// without a usable id no response can be correlated, so the caller drops
// the frame. With an id present, any malformation is reported against it.
func ParseRequest(frame []byte) (*Request, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}

	idRaw, ok := raw["i"]
	if !ok {
		return nil, fmt.Errorf("envelope: missing correlation id")
	}
	var id int64
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return nil, fmt.Errorf("envelope: correlation id: %w", err)
	}
	delete(raw, "i")

	req := &Request{ID: id}
	if len(raw) != 1 {
		return req, fmt.Errorf("envelope: expected exactly one method key, got %d", len(raw))
	}
	for method, argsRaw := range raw {
		req.Method = method
		if err := json.Unmarshal(argsRaw, &req.Args); err != nil {
			return req, fmt.Errorf("envelope: %s args: %w", method, err)
		}
	}
	return req, nil
}

// StringArg decodes positional argument n as a string.
func (r *Request) StringArg(n int) (string, error) {
	if n >= len(r.Args) {
		return "", fmt.Errorf("%s: missing argument %d", r.Method, n)
	}
	var s string
	if err := json.Unmarshal(r.Args[n], &s); err != nil {
		return "", fmt.Errorf("%s: argument %d: %w", r.Method, n, err)
	}
	return s, nil
}

// DocArg decodes positional argument n as a document.
func (r *Request) DocArg(n int) (core.Document, error) {
	if n >= len(r.Args) {
		return nil, fmt.Errorf("%s: missing argument %d", r.Method, n)
	}
	var doc core.Document
	if err := json.Unmarshal(r.Args[n], &doc); err != nil {
		return nil, fmt.Errorf("%s: argument %d: %w", r.Method, n, err)
	}
	return doc, nil
}

// StringsArg decodes positional argument n as a list of strings.
func (r *Request) StringsArg(n int) ([]string, error) {
	if n >= len(r.Args) {
		return nil, fmt.Errorf("%s: missing argument %d", r.Method, n)
	}
	var list []string
	if err := json.Unmarshal(r.Args[n], &list); err != nil {
		return nil, fmt.Errorf("%s: argument %d: %w", r.Method, n, err)
	}
	return list, nil
}

// Response is one outbound envelope. Doc is omitted when there is no
// result payload.
type Response struct {
	ID     int64  `json:"i"`
	Status string `json:"status"`
	Doc    any    `json:"doc,omitempty"`
}

func okResponse(id int64, doc any) Response {
	return Response{ID: id, Status: StatusOK, Doc: doc}
}

// errorResponse maps err onto the wire taxonomy. Domain errors carry
// their code and optional payload; everything else is the opaque generic
// code with no detail, the caller logs the real failure.
func errorResponse(id int64, err error) Response {
	return Response{
		ID:     id,
		Status: string(core.CodeOf(err)),
		Doc:    core.PayloadOf(err),
	}
}
