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
	"fmt"
	"sync"

	"github.com/linxGnu/grocksdb"

	"voteStore/pkg/config"
	"voteStore/pkg/log"
)

// RocksDB 基于 RocksDB 的持久化引擎
// bucket 通过 key 前缀 "<bucket>/" 区分
type RocksDB struct {
	mu     sync.RWMutex // 保护 closed，关闭后的 DB 句柄不可再使用
	closed bool

	db   *grocksdb.DB
	opts *grocksdb.Options
	wo   *grocksdb.WriteOptions
	ro   *grocksdb.ReadOptions
}

// OpenRocksDB 打开 RocksDB 数据库
func OpenRocksDB(path string, cfg config.RocksDBConfig) (*RocksDB, error) {
	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	bbto.SetBlockCache(grocksdb.NewLRUCache(cfg.BlockCacheSize))
	bbto.SetFilterPolicy(grocksdb.NewBloomFilter(float64(cfg.BloomFilterBitsPerKey)))
	defer bbto.Destroy()

	opts := grocksdb.NewDefaultOptions()
	opts.SetBlockBasedTableFactory(bbto)
	opts.SetCreateIfMissing(true)

	// WAL 默认开启
	opts.SetManualWALFlush(false)
	opts.SetUseFsync(cfg.UseFsync)

	// 性能参数
	opts.SetMaxBackgroundJobs(cfg.MaxBackgroundJobs)
	opts.SetMaxOpenFiles(cfg.MaxOpenFiles)
	opts.SetWriteBufferSize(cfg.WriteBufferSize)
	opts.SetMaxWriteBufferNumber(cfg.MaxWriteBufferNumber)

	opts.SetCompression(grocksdb.SnappyCompression)

	db, err := grocksdb.OpenDb(opts, path)
	if err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("failed to open RocksDB at %s: %w", path, err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(!cfg.DisableSync)

	log.Info("Opened RocksDB storage",
		log.Engine(config.EngineRocksDB),
		log.String("path", path),
		log.Bool("sync", !cfg.DisableSync))

	return &RocksDB{
		db:   db,
		opts: opts,
		wo:   wo,
		ro:   grocksdb.NewDefaultReadOptions(),
	}, nil
}

func (r *RocksDB) Name() string { return config.EngineRocksDB }

func bucketPrefix(bucket string) []byte {
	return []byte(bucket + "/")
}

func bucketKey(bucket string, key []byte) []byte {
	prefix := bucketPrefix(bucket)
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func (r *RocksDB) Get(bucket string, key []byte) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, false, ErrClosed
	}

	data, err := r.db.Get(r.ro, bucketKey(bucket, key))
	if err != nil {
		return nil, false, err
	}
	defer data.Free()

	if !data.Exists() {
		return nil, false, nil
	}
	return cloneBytes(data.Data()), true, nil
}

func (r *RocksDB) Put(bucket string, key, value []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return r.db.Put(r.wo, bucketKey(bucket, key), value)
}

func (r *RocksDB) Ascend(bucket string, from []byte, fn func(key, value []byte) bool) error {
	return ascendBatched(from, func(from []byte, n int) ([]item, error) {
		return r.scan(bucket, from, n)
	}, fn)
}

func (r *RocksDB) scan(bucket string, from []byte, n int) ([]item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	prefix := bucketPrefix(bucket)
	it := r.db.NewIterator(r.ro)
	defer it.Close()

	var items []item
	for it.Seek(bucketKey(bucket, from)); it.ValidForPrefix(prefix) && len(items) < n; it.Next() {
		k := it.Key()
		v := it.Value()
		items = append(items, item{key: cloneBytes(k.Data()[len(prefix):]), value: cloneBytes(v.Data())})
		k.Free()
		v.Free()
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RocksDB) Len(bucket string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}

	prefix := bucketPrefix(bucket)
	it := r.db.NewIterator(r.ro)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, it.Err()
}

func (r *RocksDB) Ping() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	data, err := r.db.Get(r.ro, []byte("__ping__"))
	if err != nil {
		return err
	}
	data.Free()
	return nil
}

func (r *RocksDB) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.wo.Destroy()
	r.ro.Destroy()
	r.db.Close()
	r.opts.Destroy()
	return nil
}
