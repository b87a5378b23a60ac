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
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

const (
	// MinPasswordLen is the minimal standard of password quality.
	MinPasswordLen = 8

	saltLen = 16

	// listPageSize bounds a single list-users response.
	listPageSize = 100
)

// Credentials manages usernames, salted password hashes, and role sets.
// It is independent of document logic; hashing runs on the shared pool.
type Credentials struct {
	backend CredentialBackend
	pool    *HashPool
}

// NewCredentials builds a credential manager over the given backend and
// hash pool.
func NewCredentials(backend CredentialBackend, pool *HashPool) *Credentials {
	return &Credentials{backend: backend, pool: pool}
}

// Create upserts the credential record for username: fresh 16-byte salt,
// argon2id hash computed off the request path, majority-durable write.
// Calling it for an existing username resets the password and roles, which
// also restores a revoked user.
func (c *Credentials) Create(ctx context.Context, username, password string, roles []Role) error {
	if len(password) < MinPasswordLen {
		return ErrBadPassword("too short")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("create user %q: salt: %w", username, err)
	}
	digest, err := c.pool.Hash(ctx, password, salt)
	if err != nil {
		return fmt.Errorf("create user %q: hash: %w", username, err)
	}

	cred := &Credential{
		Username:     username,
		PasswordHash: digest,
		Salt:         salt,
		Roles:        append([]Role(nil), roles...),
	}
	if err := c.backend.UpsertCredential(ctx, cred); err != nil {
		return fmt.Errorf("create user %q: %w", username, err)
	}
	return nil
}

// Authenticate verifies a password attempt. Unknown usernames report
// false; revoked usernames fail with a revocation-specific error so
// callers never conflate the two; otherwise the hash is recomputed with
// the stored salt and compared in constant time, leaking nothing about
// where a mismatch occurs.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (bool, error) {
	cred, err := c.backend.FindCredential(ctx, username)
	if err != nil {
		return false, fmt.Errorf("authenticate %q: %w", username, err)
	}
	if cred == nil {
		return false, nil
	}
	if cred.Revoked() {
		return false, ErrRevoked(username)
	}

	digest, err := c.pool.Hash(ctx, password, cred.Salt)
	if err != nil {
		return false, fmt.Errorf("authenticate %q: hash: %w", username, err)
	}
	return subtle.ConstantTimeCompare(digest, cred.PasswordHash) == 1, nil
}

// Revoke clears the password hash, salt, and roles for username while
// keeping the record itself: revocation is a state transition, not a
// deletion, so the audit trail survives. Unknown usernames are a no-op.
func (c *Credentials) Revoke(ctx context.Context, username string) error {
	cred, err := c.backend.FindCredential(ctx, username)
	if err != nil {
		return fmt.Errorf("revoke %q: %w", username, err)
	}
	if cred == nil {
		return nil
	}

	cleared := &Credential{Username: username, Roles: []Role{}}
	if err := c.backend.UpsertCredential(ctx, cleared); err != nil {
		return fmt.Errorf("revoke %q: %w", username, err)
	}
	return nil
}

// List returns known usernames, sorted, capped at one page.
func (c *Credentials) List(ctx context.Context) ([]string, error) {
	names, err := c.backend.ListCredentials(ctx, listPageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return names, nil
}

// Exists reports whether a record (active or revoked) exists for
// username.
func (c *Credentials) Exists(ctx context.Context, username string) (bool, error) {
	cred, err := c.backend.FindCredential(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", username, err)
	}
	return cred != nil, nil
}

// Roles returns the current role set for username; unknown or revoked
// usernames have none. Looked up fresh on every access check so that role
// changes take effect immediately.
func (c *Credentials) Roles(ctx context.Context, username string) ([]Role, error) {
	cred, err := c.backend.FindCredential(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("roles %q: %w", username, err)
	}
	if cred == nil {
		return nil, nil
	}
	return cred.Roles, nil
}
