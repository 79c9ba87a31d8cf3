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

// Package storage provides the byte-level storage engines behind the typed
// stores. Every engine keeps values in named buckets and iterates keys in
// byte order.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voteStore/pkg/config"
	"voteStore/pkg/log"
)

// Bucket names used by the service
const (
	BucketExam          = "exam"
	BucketParticipation = "participation"
	BucketProposal      = "proposal"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("storage: backend closed")

// Backend is a bucketed, ordered key/value engine.
//
// Implementations must be safe for concurrent use. Values passed in and
// returned are owned by the caller: engines copy where the underlying
// library would alias memory.
type Backend interface {
	// Get returns the value stored under key, or ok=false if absent.
	Get(bucket string, key []byte) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any existing value.
	Put(bucket string, key, value []byte) error

	// Ascend calls fn for every key >= from in byte order until fn returns false.
	Ascend(bucket string, from []byte, fn func(key, value []byte) bool) error

	// Len returns the number of keys in bucket.
	Len(bucket string) (int, error)

	// Ping verifies the engine is usable.
	Ping() error

	// Name returns the engine name.
	Name() string

	Close() error
}

// Open opens the engine selected by cfg
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Engine {
	case config.EngineMemory, "":
		return NewMemory(), nil
	case config.EngineBolt:
		if err := ensureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		return OpenBolt(filepath.Join(cfg.DataDir, cfg.Bolt.FileName), cfg.Bolt)
	case config.EngineRocksDB:
		if err := ensureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		return OpenRocksDB(filepath.Join(cfg.DataDir, "rocksdb"), cfg.RocksDB)
	case config.EngineSQLite:
		if err := ensureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		return OpenSQLite(filepath.Join(cfg.DataDir, cfg.SQLite.FileName))
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("Failed to create data directory", log.String("dir", dir), log.Err(err))
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// ascendBatchSize 每批从引擎读取的条目数
const ascendBatchSize = 64

// scanFunc returns at most n entries with key >= from, in key order
type scanFunc func(from []byte, n int) ([]item, error)

// ascendBatched drives fn over scan in bounded batches. No engine lock or
// transaction is held while fn runs, and nothing past the entry where fn
// returns false is read.
func ascendBatched(from []byte, scan scanFunc, fn func(key, value []byte) bool) error {
	next := from
	for {
		batch, err := scan(next, ascendBatchSize)
		if err != nil {
			return err
		}
		for _, it := range batch {
			if !fn(it.key, it.value) {
				return nil
			}
		}
		if len(batch) < ascendBatchSize {
			return nil
		}
		next = keySuccessor(batch[len(batch)-1].key)
	}
}

// keySuccessor 返回字节序上紧随 key 的最小 key
func keySuccessor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
