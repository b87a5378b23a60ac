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

// Role is a capability a credentialed user may hold.
type Role string

const (
	// RoleRead permits document reads.
	RoleRead Role = "read"
	// RoleWrite permits document writes.
	RoleWrite Role = "write"
	// RoleUsers permits user management (create, revoke, list).
	RoleUsers Role = "users"
)

// ParseRole validates a role name received off the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRead, RoleWrite, RoleUsers:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseRoles validates a list of role names received off the wire.
func ParseRoles(names []string) ([]Role, error) {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// HasAll reports whether the set is a superset of need.
func (s RoleSet) HasAll(need ...Role) bool {
	for _, r := range need {
		if _, ok := s[r]; !ok {
			return false
		}
	}
	return true
}
