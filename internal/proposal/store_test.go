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


package proposal

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend := storage.NewMemory()
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend)
}

func TestStore_Create(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create(0, "first"))

	p, ok, err := s.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Proposal{Description: "first", IsActive: true}, p)

	assert.ErrorIs(t, s.Create(0, "again"), ErrExists)

	p, _, err = s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "first", p.Description)
}

func TestStore_Mutate(t *testing.T) {
	s := newTestStore(t)

	err := s.Mutate(99, func(p *Proposal) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(1, "desc"))
	require.NoError(t, s.Mutate(1, func(p *Proposal) error {
		p.Tally.Approve++
		return nil
	}))

	stop := errors.New("stop")
	err = s.Mutate(1, func(p *Proposal) error {
		p.Tally.Reject += 10
		p.Description = "mangled"
		return stop
	})
	assert.ErrorIs(t, err, stop)

	p, _, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Tally{Approve: 1}, p.Tally)
	assert.Equal(t, "desc", p.Description)
}

func TestStore_ListAndLen(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []ID{5, 1, 3, 2, 4} {
		require.NoError(t, s.Create(id, "p"))
	}

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	entries, err := s.List(2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ID(2), entries[0].ID)
	assert.Equal(t, ID(3), entries[1].ID)

	entries, err = s.List(0, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	entries, err = s.List(0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListReadsOnlyWhatItReturns(t *testing.T) {
	s := newTestStore(t)
	desc := strings.Repeat("d", 1024)
	const n = 5000
	for id := ID(0); id < n; id++ {
		require.NoError(t, s.Create(id, desc))
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	entries, err := s.List(0, 1)
	runtime.ReadMemStats(&after)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ID(0), entries[0].ID)
	// 整个 bucket 约 5MB；只应读取一个批次
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(512<<10))
}

func TestTally_Total(t *testing.T) {
	assert.Equal(t, uint64(6), Tally{Approve: 1, Reject: 2, Pass: 3}.Total())
}
