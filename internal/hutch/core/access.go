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

// Mode selects how access checks behave.
type Mode int

const (
	// ModeNormal requires an authenticated identity whose role set
	// covers the operation.
	ModeNormal Mode = iota
	// ModeAdminBypass skips authentication but permits only user
	// management. A narrow bootstrap/operator mode: an operator can mint
	// the first credentials, and nothing else.
	ModeAdminBypass
)

// Identity is a session's authentication state: either anonymous or a
// username proven by a successful auth.
type Identity struct {
	Username      string
	Authenticated bool
}

// Anonymous is the identity of a session before any successful auth.
func Anonymous() Identity { return Identity{} }

// Authenticated returns the identity for a proven username.
func Authenticated(username string) Identity {
	return Identity{Username: username, Authenticated: true}
}

// Guard evaluates an identity against the capability set an operation
// requires.
type Guard struct {
	creds *Credentials
	mode  Mode
}

// NewGuard builds a guard in the given mode.
func NewGuard(creds *Credentials, mode Mode) *Guard {
	return &Guard{creds: creds, mode: mode}
}

// Require fails with a denied error unless who may perform an operation
// needing the given roles. Roles are read from the credential store on
// every call, never cached: a revocation must bite on the very next
// request.
func (g *Guard) Require(ctx context.Context, who Identity, need ...Role) error {
	if g.mode == ModeAdminBypass {
		if len(need) == 1 && need[0] == RoleUsers {
			return nil
		}
		return ErrDenied(who, need)
	}

	if !who.Authenticated {
		return ErrDenied(who, need)
	}
	roles, err := g.creds.Roles(ctx, who.Username)
	if err != nil {
		return err
	}
	if !NewRoleSet(roles...).HasAll(need...) {
		return ErrDenied(who, need)
	}
	return nil
}
