// Copyright 2025 The axfor Authors
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

package kvstore

import (
	"hash/fnv"
	"sync"
)

const (
	// numShards defines the number of lock shards
	// Power of 2 for efficient modulo operation using bitwise AND
	numShards = 512
	shardMask = numShards - 1
)

// shardedLocks serializes operations on the same key while letting
// operations on keys in different shards run in parallel
type shardedLocks struct {
	shards [numShards]sync.Mutex
}

// shardFor returns the shard index for an encoded key
// Uses FNV-1a hash for good distribution
func shardFor(key []byte) uint32 {
	h := fnv.New32a()
	h.Write(key)
	return h.Sum32() & shardMask
}

// lock acquires the lock guarding key and returns its release function
func (l *shardedLocks) lock(key []byte) func() {
	mu := &l.shards[shardFor(key)]
	mu.Lock()
	return mu.Unlock
}
