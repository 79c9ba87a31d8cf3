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

// Package registry holds the exam definitions and per-exam participation
// counts.
package registry

import (
	"errors"
	"fmt"
	"math"

	"voteStore/internal/kvstore"
	"voteStore/internal/storage"
)

// ErrInvalidExam exam 数值字段不是有限数
var ErrInvalidExam = errors.New("registry: exam fields must be finite numbers")

// ExamID 考试 ID，由调用方指定
type ExamID uint64

// Count 参与人数
type Count uint64

// Exam 考试评分参数
type Exam struct {
	OutOf  float64 `json:"out_of"`
	Curve  float64 `json:"curve"`
	Course string  `json:"course"`
}

// Validate 检查 OutOf/Curve 为有限数，不做范围限制
func (e Exam) Validate() error {
	for name, v := range map[string]float64{"out_of": e.OutOf, "curve": e.Curve} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidExam, name, v)
		}
	}
	return nil
}

// ExamRegistry ExamID -> Exam
type ExamRegistry struct {
	store *kvstore.Store[ExamID, Exam]
}

// NewExamRegistry 创建考试注册表
func NewExamRegistry(backend storage.Backend, opts ...kvstore.Option) *ExamRegistry {
	return &ExamRegistry{store: kvstore.New[ExamID, Exam](backend, storage.BucketExam, opts...)}
}

// Get 返回考试定义
func (r *ExamRegistry) Get(id ExamID) (Exam, bool, error) {
	return r.store.Get(id)
}

// Insert 覆盖写入，返回旧值
func (r *ExamRegistry) Insert(id ExamID, exam Exam) (Exam, bool, error) {
	if err := exam.Validate(); err != nil {
		return Exam{}, false, err
	}
	return r.store.Insert(id, exam)
}

// ParticipationRegistry ExamID -> Count
type ParticipationRegistry struct {
	store *kvstore.Store[ExamID, Count]
}

// NewParticipationRegistry 创建参与人数注册表
func NewParticipationRegistry(backend storage.Backend, opts ...kvstore.Option) *ParticipationRegistry {
	return &ParticipationRegistry{store: kvstore.New[ExamID, Count](backend, storage.BucketParticipation, opts...)}
}

// Get 返回参与人数
func (r *ParticipationRegistry) Get(id ExamID) (Count, bool, error) {
	return r.store.Get(id)
}

// Insert 整体替换（不是累加），返回旧值
func (r *ParticipationRegistry) Insert(id ExamID, count Count) (Count, bool, error) {
	return r.store.Insert(id, count)
}
