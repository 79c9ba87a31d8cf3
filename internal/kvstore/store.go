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

// Package kvstore provides a typed, upsert-only key/value store over one
// storage bucket.
package kvstore

import (
	"time"

	"voteStore/internal/storage"
	"voteStore/pkg/reliability"
)

// Observer is notified after every backend operation
type Observer func(op, bucket string, d time.Duration, err error)

// Option configures a Store
type Option func(*options)

type options struct {
	validator *reliability.DataValidator
	observer  Observer
}

// WithValidator 设置值校验器（CRC）
func WithValidator(v *reliability.DataValidator) Option {
	return func(o *options) { o.validator = v }
}

// WithObserver 设置操作观察者（metrics）
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Store is a persisted mapping from K to V stored in a single bucket.
//
// Keys are stored big-endian so iteration order is numeric order. Every
// operation on one key holds that key's shard lock from read to write, so
// Insert and Update observe and replace a consistent value. There is no delete.
type Store[K ~uint64, V any] struct {
	backend storage.Backend
	bucket  string
	locks   shardedLocks
	opts    options
}

// New creates a Store over bucket of backend
func New[K ~uint64, V any](backend storage.Backend, bucket string, opts ...Option) *Store[K, V] {
	s := &Store[K, V]{backend: backend, bucket: bucket}
	for _, opt := range opts {
		opt(&s.opts)
	}
	if s.opts.validator == nil {
		s.opts.validator = reliability.NewDataValidator(false)
	}
	return s
}

// Bucket returns the backend bucket name
func (s *Store[K, V]) Bucket() string {
	return s.bucket
}

// Get returns the current value for key, or ok=false if absent
func (s *Store[K, V]) Get(key K) (value V, ok bool, err error) {
	k := EncodeKey(key)
	unlock := s.locks.lock(k)
	defer unlock()

	return s.get(k)
}

// Insert stores value under key unconditionally and returns the value it
// replaced. existed reports whether there was one.
func (s *Store[K, V]) Insert(key K, value V) (prev V, existed bool, err error) {
	k := EncodeKey(key)
	unlock := s.locks.lock(k)
	defer unlock()

	prev, existed, err = s.get(k)
	if err != nil {
		return prev, false, err
	}
	if err := s.put(k, value); err != nil {
		var zero V
		return zero, false, err
	}
	return prev, existed, nil
}

// Update atomically reads the value under key, passes it to fn and writes
// back what fn returns. fn receives ok=false when the key is absent. If fn
// returns an error nothing is written and the error is returned unchanged.
func (s *Store[K, V]) Update(key K, fn func(current V, ok bool) (V, error)) error {
	k := EncodeKey(key)
	unlock := s.locks.lock(k)
	defer unlock()

	current, ok, err := s.get(k)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	return s.put(k, next)
}

// Len returns the number of keys
func (s *Store[K, V]) Len() (int, error) {
	start := time.Now()
	n, err := s.backend.Len(s.bucket)
	s.observe("len", start, err)
	return n, err
}

// Ascend calls fn for each key >= from in ascending order until fn returns
// false. Values are decoded lazily; a corrupt value aborts the iteration.
func (s *Store[K, V]) Ascend(from K, fn func(key K, value V) bool) error {
	start := time.Now()
	var iterErr error
	err := s.backend.Ascend(s.bucket, EncodeKey(from), func(k, v []byte) bool {
		key, err := DecodeKey[K](k)
		if err != nil {
			iterErr = err
			return false
		}
		value, err := decodeValue[V](v, s.opts.validator)
		if err != nil {
			iterErr = err
			return false
		}
		return fn(key, value)
	})
	if err == nil {
		err = iterErr
	}
	s.observe("ascend", start, err)
	return err
}

func (s *Store[K, V]) get(k []byte) (V, bool, error) {
	var zero V
	start := time.Now()
	data, ok, err := s.backend.Get(s.bucket, k)
	s.observe("get", start, err)
	if err != nil || !ok {
		return zero, false, err
	}

	v, err := decodeValue[V](data, s.opts.validator)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (s *Store[K, V]) put(k []byte, value V) error {
	data, err := encodeValue(value, s.opts.validator)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.backend.Put(s.bucket, k, data)
	s.observe("put", start, err)
	return err
}

func (s *Store[K, V]) observe(op string, start time.Time, err error) {
	if s.opts.observer != nil {
		s.opts.observer(op, s.bucket, time.Since(start), err)
	}
}
