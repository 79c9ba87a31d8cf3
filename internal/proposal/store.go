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


// Package proposal stores proposal records ordered by id.
//
// Only the ballot engine mutates records, through Mutate.
package proposal

import (
	"errors"

	"voteStore/internal/kvstore"
	"voteStore/internal/storage"
)

var (
	// ErrNotFound no proposal under the id
	ErrNotFound = errors.New("proposal: not found")
	// ErrExists a proposal already exists under the id
	ErrExists = errors.New("proposal: already exists")
)

// ID 提案 ID，由调用方指定
type ID uint64

// Tally 每个选项的票数
type Tally struct {
	Approve uint64 `json:"approve"`
	Reject  uint64 `json:"reject"`
	Pass    uint64 `json:"pass"`
}

// Total 总票数
func (t Tally) Total() uint64 {
	return t.Approve + t.Reject + t.Pass
}

// Proposal 提案
type Proposal struct {
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Tally       Tally  `json:"tally"`
}

// Entry 带 ID 的提案，用于列表
type Entry struct {
	ID       ID       `json:"id"`
	Proposal Proposal `json:"proposal"`
}

// Store 提案存储，记录只增不删
type Store struct {
	kv *kvstore.Store[ID, Proposal]
}

// NewStore 创建提案存储
func NewStore(backend storage.Backend, opts ...kvstore.Option) *Store {
	return &Store{kv: kvstore.New[ID, Proposal](backend, storage.BucketProposal, opts...)}
}

// Get 返回提案副本
func (s *Store) Get(id ID) (Proposal, bool, error) {
	return s.kv.Get(id)
}

// Create 创建 Active、零票数的提案；id 已存在时返回 ErrExists
func (s *Store) Create(id ID, description string) error {
	return s.kv.Update(id, func(_ Proposal, ok bool) (Proposal, error) {
		if ok {
			return Proposal{}, ErrExists
		}
		return Proposal{Description: description, IsActive: true}, nil
	})
}

// Mutate applies fn to the record under id while holding its lock.
// fn works on a copy: if it returns an error the stored record is untouched.
func (s *Store) Mutate(id ID, fn func(p *Proposal) error) error {
	return s.kv.Update(id, func(current Proposal, ok bool) (Proposal, error) {
		if !ok {
			return Proposal{}, ErrNotFound
		}
		if err := fn(&current); err != nil {
			return Proposal{}, err
		}
		return current, nil
	})
}

// Len 提案数量
func (s *Store) Len() (int, error) {
	return s.kv.Len()
}

// List 返回 id >= from 的最多 limit 条提案，按 id 升序
func (s *Store) List(from ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries := make([]Entry, 0, min(limit, 64))
	err := s.kv.Ascend(from, func(id ID, p Proposal) bool {
		entries = append(entries, Entry{ID: id, Proposal: p})
		return len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
