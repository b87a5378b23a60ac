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
	"errors"
	"runtime"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for credential hashing. Memory-hard on purpose: a
// single hash is expensive, which is exactly why hashing runs on the pool
// below instead of the session-handling path.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
)

// ErrPoolStopped is returned by Hash once Stop has begun.
var ErrPoolStopped = errors.New("hash pool stopped")

type hashTask struct {
	password string
	salt     []byte
	out      chan []byte
}

// HashPool computes argon2id digests on a bounded set of worker
// goroutines. One pool is created at process start, shared by every
// session, and drained on teardown; a deliberately slow CPU-bound hash
// never stalls connection handling.
type HashPool struct {
	tasks chan hashTask
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewHashPool starts a pool with the given number of workers. A
// non-positive count selects GOMAXPROCS.
func NewHashPool(workers int) *HashPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &HashPool{
		// A small queue absorbs bursts; beyond it, submitters block,
		// which is the backpressure we want for a CPU-bound stage.
		tasks: make(chan hashTask, workers),
		done:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *HashPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			task.out <- argon2.IDKey([]byte(task.password), task.salt, argonTime, argonMemory, argonThreads, argonKeyLen)
		}
	}
}

// Hash computes the digest of (password, salt) on a pool worker,
// suspending the caller until the result is ready, ctx is done, or the
// pool stops.
func (p *HashPool) Hash(ctx context.Context, password string, salt []byte) ([]byte, error) {
	task := hashTask{password: password, salt: salt, out: make(chan []byte, 1)}
	select {
	case p.tasks <- task:
		// The gauge is paired entirely inside this call, so a submission
		// abandoned by Stop or a cancelled context still drains it.
		hashQueueDepth.Inc()
		defer hashQueueDepth.Dec()
	case <-p.done:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case digest := <-task.out:
		return digest, nil
	case <-p.done:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		// A worker that already picked the task up still finishes it;
		// the buffered out channel lets it complete without a receiver.
		return nil, ctx.Err()
	}
}

// Stop shuts the pool down and returns once every worker has exited.
// Hashes already being computed finish; queued-but-unclaimed work is
// abandoned and its submitters get ErrPoolStopped. Safe to call more than
// once.
func (p *HashPool) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
