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
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"voteStore/pkg/config"
	"voteStore/pkg/log"
)

// Bolt is a single-file engine backed by bbolt. Each bucket maps to a bolt bucket.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bolt file at path and creates the service buckets.
func OpenBolt(path string, cfg config.BoltConfig) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: cfg.OpenTimeout,
		NoSync:  cfg.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketExam, BucketParticipation, BucketProposal} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	log.Info("Opened bolt storage", log.Engine(config.EngineBolt), log.String("path", path))
	return &Bolt{db: db}, nil
}

func (b *Bolt) Name() string { return config.EngineBolt }

func (b *Bolt) Get(bucket string, key []byte) ([]byte, bool, error) {
	var value []byte
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		v := bkt.Get(key)
		if v == nil {
			return nil
		}
		// bolt 的切片只在事务内有效
		value = cloneBytes(v)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, mapBoltErr(err)
	}
	return value, found, nil
}

func (b *Bolt) Put(bucket string, key, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return bkt.Put(key, value)
	})
	return mapBoltErr(err)
}

func (b *Bolt) Ascend(bucket string, from []byte, fn func(key, value []byte) bool) error {
	return ascendBatched(from, func(from []byte, n int) ([]item, error) {
		return b.scan(bucket, from, n)
	}, fn)
}

// scan 在一个只读事务内读取至多 n 条记录
func (b *Bolt) scan(bucket string, from []byte, n int) ([]item, error) {
	var items []item
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		c := bkt.Cursor()
		for k, v := c.Seek(from); k != nil && len(items) < n; k, v = c.Next() {
			items = append(items, item{key: cloneBytes(k), value: cloneBytes(v)})
		}
		return nil
	})
	if err != nil {
		return nil, mapBoltErr(err)
	}
	return items, nil
}

func (b *Bolt) Len(bucket string) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt == nil {
			return nil
		}
		n = bkt.Stats().KeyN
		return nil
	})
	return n, mapBoltErr(err)
}

func (b *Bolt) Ping() error {
	return mapBoltErr(b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketProposal)) == nil {
			return fmt.Errorf("bucket %s missing", BucketProposal)
		}
		return nil
	}))
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func mapBoltErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
