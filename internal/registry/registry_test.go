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


package registry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/storage"
)

func TestExamRegistry_ReinsertReturnsOriginal(t *testing.T) {
	backend := storage.NewMemory()
	defer backend.Close()
	r := NewExamRegistry(backend)

	_, ok, err := r.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)

	first := Exam{OutOf: 100, Curve: 5, Course: "CS101"}
	prev, existed, err := r.Insert(1, first)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, Exam{}, prev)

	got, ok, err := r.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, got)

	prev, existed, err = r.Insert(1, Exam{OutOf: 100, Curve: 10, Course: "CS101"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first, prev)

	got, _, err = r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Curve)
}

func TestExamRegistry_RejectsNonFinite(t *testing.T) {
	backend := storage.NewMemory()
	defer backend.Close()
	r := NewExamRegistry(backend)

	for _, exam := range []Exam{
		{OutOf: math.NaN()},
		{OutOf: 1, Curve: math.Inf(1)},
		{OutOf: math.Inf(-1)},
	} {
		_, _, err := r.Insert(3, exam)
		assert.ErrorIs(t, err, ErrInvalidExam)
	}

	_, ok, err := r.Get(3)
	require.NoError(t, err)
	assert.False(t, ok)

	// Negative and zero values carry no range restriction
	_, _, err = r.Insert(3, Exam{OutOf: -5, Curve: 0})
	assert.NoError(t, err)
}

func TestParticipationRegistry_ReplacesNotIncrements(t *testing.T) {
	backend := storage.NewMemory()
	defer backend.Close()
	r := NewParticipationRegistry(backend)

	_, _, err := r.Insert(7, 30)
	require.NoError(t, err)

	prev, existed, err := r.Insert(7, 12)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, Count(30), prev)

	got, ok, err := r.Get(7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Count(12), got)

	// Exams and participation live in separate buckets
	exams := NewExamRegistry(backend)
	_, ok, err = exams.Get(7)
	require.NoError(t, err)
	assert.False(t, ok)
}
