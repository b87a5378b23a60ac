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
	"crypto/rand"
	"encoding/hex"
)

// revisionBytes is the entropy behind one revision id. At 128 bits the
// collision probability is treated as negligible and is not guarded
// against.
const revisionBytes = 16

// NewRevision returns a fresh, opaque revision id: hex encoding of 16
// random bytes. Revision ids are always server-generated; clients never
// choose them.
func NewRevision() string {
	b := make([]byte, revisionBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; no sensible degraded mode exists.
		panic(err)
	}
	return hex.EncodeToString(b)
}
