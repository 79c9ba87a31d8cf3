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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/pkg/config"
)

func u64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func openEngines(t *testing.T) map[string]Backend {
	t.Helper()

	engines := make(map[string]Backend)
	for _, engine := range []string{config.EngineMemory, config.EngineBolt, config.EngineRocksDB, config.EngineSQLite} {
		cfg := config.DefaultConfig(":0").Server.Storage
		cfg.Engine = engine
		cfg.DataDir = t.TempDir()

		b, err := Open(cfg)
		require.NoError(t, err, engine)
		t.Cleanup(func() { b.Close() })
		engines[engine] = b
	}
	return engines
}

func TestBackend_GetPut(t *testing.T) {
	for name, b := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, b.Name())

			_, ok, err := b.Get(BucketExam, u64(1))
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Put(BucketExam, u64(1), []byte("v1")))
			require.NoError(t, b.Put(BucketExam, u64(1), []byte("v2")))

			v, ok, err := b.Get(BucketExam, u64(1))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v2"), v)

			// Buckets are independent
			_, ok, err = b.Get(BucketParticipation, u64(1))
			require.NoError(t, err)
			assert.False(t, ok)

			n, err := b.Len(BucketExam)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			require.NoError(t, b.Ping())
		})
	}
}

func TestBackend_ReturnedValueIsCopy(t *testing.T) {
	for name, b := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			value := []byte("abc")
			require.NoError(t, b.Put(BucketProposal, u64(7), value))
			value[0] = 'x'

			got, _, err := b.Get(BucketProposal, u64(7))
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), got)

			got[0] = 'y'
			again, _, err := b.Get(BucketProposal, u64(7))
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), again)
		})
	}
}

func TestBackend_AscendOrdered(t *testing.T) {
	for name, b := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			// Insert out of order, including a key past 255 to check byte order
			for _, id := range []uint64{300, 2, 0, 17, 1} {
				require.NoError(t, b.Put(BucketProposal, u64(id), u64(id)))
			}
			require.NoError(t, b.Put(BucketExam, u64(5), []byte("other bucket")))

			var seen []uint64
			err := b.Ascend(BucketProposal, nil, func(k, v []byte) bool {
				assert.Equal(t, k, v)
				seen = append(seen, binary.BigEndian.Uint64(k))
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, []uint64{0, 1, 2, 17, 300}, seen)

			seen = nil
			err = b.Ascend(BucketProposal, u64(2), func(k, _ []byte) bool {
				seen = append(seen, binary.BigEndian.Uint64(k))
				return len(seen) < 2
			})
			require.NoError(t, err)
			assert.Equal(t, []uint64{2, 17}, seen)
		})
	}
}

func TestBackend_Closed(t *testing.T) {
	for name, b := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Close())

			_, _, err := b.Get(BucketExam, u64(1))
			assert.Error(t, err)
			assert.Error(t, b.Put(BucketExam, u64(1), []byte("x")))
			assert.Error(t, b.Ping())
		})
	}
}

func TestOpen_UnknownEngine(t *testing.T) {
	cfg := config.DefaultConfig(":0").Server.Storage
	cfg.Engine = "leveldb"
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestBackend_AscendAcrossBatches(t *testing.T) {
	const total = 3*ascendBatchSize + 5
	for name, b := range openEngines(t) {
		t.Run(name, func(t *testing.T) {
			for id := uint64(0); id < total; id++ {
				require.NoError(t, b.Put(BucketProposal, u64(id), u64(id)))
			}

			var seen []uint64
			err := b.Ascend(BucketProposal, nil, func(k, _ []byte) bool {
				seen = append(seen, binary.BigEndian.Uint64(k))
				return true
			})
			require.NoError(t, err)
			require.Len(t, seen, total)
			for i, id := range seen {
				assert.Equal(t, uint64(i), id)
			}

			// 回调期间不持有引擎锁，可以写同一个引擎
			calls := 0
			err = b.Ascend(BucketProposal, u64(ascendBatchSize-1), func(k, _ []byte) bool {
				calls++
				require.NoError(t, b.Put(BucketExam, k, []byte("x")))
				return calls < 3
			})
			require.NoError(t, err)
			assert.Equal(t, 3, calls)
		})
	}
}

func TestAscendBatched_StopsReading(t *testing.T) {
	const size = 10 * ascendBatchSize
	scans, read := 0, 0
	scan := func(from []byte, n int) ([]item, error) {
		scans++
		start := binary.BigEndian.Uint64(from[:8])
		if len(from) > 8 {
			start++
		}
		var items []item
		for id := start; id < size && len(items) < n; id++ {
			items = append(items, item{key: u64(id), value: u64(id)})
		}
		read += len(items)
		return items, nil
	}

	var got []uint64
	err := ascendBatched(u64(0), scan, func(k, _ []byte) bool {
		got = append(got, binary.BigEndian.Uint64(k))
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, got)
	assert.Equal(t, 1, scans)
	assert.LessOrEqual(t, read, ascendBatchSize)

	scans, read = 0, 0
	err = ascendBatched(u64(0), scan, func(k, _ []byte) bool {
		return binary.BigEndian.Uint64(k) < ascendBatchSize
	})
	require.NoError(t, err)
	assert.Equal(t, 2, scans)
	assert.Equal(t, 2*ascendBatchSize, read)
}

func TestKeySuccessor(t *testing.T) {
	key := u64(7)
	next := keySuccessor(key)
	assert.Equal(t, append(u64(7), 0), next)
	assert.Equal(t, u64(7), key)
}
