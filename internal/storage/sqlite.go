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
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"voteStore/pkg/config"
	"voteStore/pkg/log"
)

// entry is one row of the entries table
type entry struct {
	Bucket string `gorm:"column:bucket;primaryKey;size:64"`
	Key    []byte `gorm:"column:k;primaryKey"`
	Value  []byte `gorm:"column:v;not null"`
}

func (entry) TableName() string { return "entries" }

// SQLite stores every bucket in a single table keyed by (bucket, k)
type SQLite struct {
	db     *gorm.DB
	closed atomic.Bool
}

// OpenSQLite opens the database file at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 只允许单写者
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&entry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	log.Info("Opened sqlite storage", log.Engine(config.EngineSQLite), log.String("path", path))
	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return config.EngineSQLite }

func (s *SQLite) Get(bucket string, key []byte) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	var e entry
	err := s.db.Where("bucket = ? AND k = ?", bucket, nonNil(key)).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

func (s *SQLite) Put(bucket string, key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	e := entry{Bucket: bucket, Key: cloneBytes(nonNil(key)), Value: cloneBytes(nonNil(value))}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}, {Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&e).Error
}

func (s *SQLite) Ascend(bucket string, from []byte, fn func(key, value []byte) bool) error {
	return ascendBatched(from, func(from []byte, n int) ([]item, error) {
		return s.scan(bucket, from, n)
	}, fn)
}

func (s *SQLite) scan(bucket string, from []byte, n int) ([]item, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	// BLOB 比较按字节序，与其他引擎一致
	var rows []entry
	err := s.db.Where("bucket = ? AND k >= ?", bucket, nonNil(from)).
		Order("k ASC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]item, len(rows))
	for i, e := range rows {
		items[i] = item{key: e.Key, value: e.Value}
	}
	return items, nil
}

func (s *SQLite) Len(bucket string) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int64
	err := s.db.Model(&entry{}).Where("bucket = ?", bucket).Count(&n).Error
	return int(n), err
}

func (s *SQLite) Ping() error {
	if s.closed.Load() {
		return ErrClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *SQLite) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nonNil 将 nil 转为空切片，否则 sqlite 会绑定为 NULL
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
