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

package storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"voteStore/pkg/config"
)

// btreeDegree B-tree 的度数
const btreeDegree = 32

type item struct {
	key   []byte
	value []byte
}

func itemLess(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Memory 内存存储引擎，每个 bucket 一棵有序 B-tree
// 进程退出后数据丢失
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTreeG[item]
	closed  bool
}

// NewMemory 创建内存引擎
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*btree.BTreeG[item])}
}

func (m *Memory) Name() string { return config.EngineMemory }

func (m *Memory) Get(bucket string, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}

	tree, ok := m.buckets[bucket]
	if !ok {
		return nil, false, nil
	}
	it, ok := tree.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(it.value), true, nil
}

func (m *Memory) Put(bucket string, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	tree, ok := m.buckets[bucket]
	if !ok {
		tree = btree.NewG(btreeDegree, itemLess)
		m.buckets[bucket] = tree
	}
	tree.ReplaceOrInsert(item{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (m *Memory) Ascend(bucket string, from []byte, fn func(key, value []byte) bool) error {
	return ascendBatched(from, func(from []byte, n int) ([]item, error) {
		return m.scan(bucket, from, n)
	}, fn)
}

// scan 持读锁复制至多 n 条记录，回调在锁外执行
func (m *Memory) scan(bucket string, from []byte, n int) ([]item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	tree, ok := m.buckets[bucket]
	if !ok {
		return nil, nil
	}
	items := make([]item, 0, min(n, tree.Len()))
	tree.AscendGreaterOrEqual(item{key: from}, func(it item) bool {
		items = append(items, item{key: cloneBytes(it.key), value: cloneBytes(it.value)})
		return len(items) < n
	})
	return items, nil
}

func (m *Memory) Len(bucket string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	if tree, ok := m.buckets[bucket]; ok {
		return tree.Len(), nil
	}
	return 0, nil
}

func (m *Memory) Ping() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.buckets = nil
	return nil
}
