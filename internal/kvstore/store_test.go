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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/storage"
	"voteStore/pkg/reliability"
)

type record struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newStore(t *testing.T, opts ...Option) (*Store[uint64, record], storage.Backend) {
	t.Helper()
	backend := storage.NewMemory()
	t.Cleanup(func() { backend.Close() })
	return New[uint64, record](backend, "test", opts...), backend
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newStore(t)

	for _, k := range []uint64{0, 1, 42, ^uint64(0)} {
		_, ok, err := s.Get(k)
		require.NoError(t, err)
		assert.False(t, ok, "key %d", k)
	}
}

func TestStore_InsertReturnsPrevious(t *testing.T) {
	s, _ := newStore(t)

	prev, existed, err := s.Insert(1, record{Name: "a", Score: 1})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, record{}, prev)

	prev, existed, err = s.Insert(1, record{Name: "b", Score: 2})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, record{Name: "a", Score: 1}, prev)

	got, ok, err := s.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record{Name: "b", Score: 2}, got)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_UpdateErrorWritesNothing(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.Insert(5, record{Name: "keep"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(5, func(cur record, ok bool) (record, error) {
		cur.Name = "changed"
		return cur, boom
	})
	assert.ErrorIs(t, err, boom)

	got, _, err := s.Get(5)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Name)
}

func TestStore_UpdateAbsent(t *testing.T) {
	s, _ := newStore(t)

	err := s.Update(9, func(cur record, ok bool) (record, error) {
		assert.False(t, ok)
		return record{Name: "created"}, nil
	})
	require.NoError(t, err)

	got, ok, err := s.Get(9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "created", got.Name)
}

func TestStore_ConcurrentUpdatesSameKey(t *testing.T) {
	s, _ := newStore(t)
	_, _, err := s.Insert(1, record{})
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := s.Update(1, func(cur record, _ bool) (record, error) {
					cur.Score++
					return cur, nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, _, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, got.Score)
}

func TestStore_Ascend(t *testing.T) {
	s, _ := newStore(t)
	for _, k := range []uint64{10, 3, 256, 7} {
		_, _, err := s.Insert(k, record{Score: int(k)})
		require.NoError(t, err)
	}

	var keys []uint64
	err := s.Ascend(4, func(k uint64, v record) bool {
		assert.Equal(t, int(k), v.Score)
		keys = append(keys, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 10, 256}, keys)
}

func TestStore_CRC(t *testing.T) {
	s, backend := newStore(t, WithValidator(reliability.NewDataValidator(true)))

	_, _, err := s.Insert(1, record{Name: "checked"})
	require.NoError(t, err)

	got, ok, err := s.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "checked", got.Name)

	// Flip a byte behind the store's back
	raw, _, err := backend.Get("test", EncodeKey(uint64(1)))
	require.NoError(t, err)
	raw[0] ^= 0xff
	require.NoError(t, backend.Put("test", EncodeKey(uint64(1)), raw))

	_, _, err = s.Get(1)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_Observer(t *testing.T) {
	var mu sync.Mutex
	ops := map[string]int{}
	s, _ := newStore(t, WithObserver(func(op, bucket string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "test", bucket)
		assert.NoError(t, err)
		ops[op]++
	}))

	_, _, err := s.Insert(1, record{})
	require.NoError(t, err)
	_, _, err = s.Get(1)
	require.NoError(t, err)

	assert.Equal(t, 2, ops["get"])
	assert.Equal(t, 1, ops["put"])
}

func TestDecodeKey(t *testing.T) {
	k, err := DecodeKey[uint64](EncodeKey(uint64(1234567890123)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567890123), k)

	_, err = DecodeKey[uint64]([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}
