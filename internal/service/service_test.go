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

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/storage"
	"voteStore/pkg/reliability"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	backend := storage.NewMemory()
	t.Cleanup(func() { backend.Close() })
	return NewFromBackend(backend, cfg, nil, nil)
}

func TestService_Exams(t *testing.T) {
	s := newTestService(t, Config{})

	got, err := s.GetExam(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	prev, err := s.InsertExam(1, registry.Exam{OutOf: 100, Curve: 5, Course: "CS101"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	got, err = s.GetExam(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "CS101", got.Course)

	prev, err = s.InsertExam(1, registry.Exam{OutOf: 100, Curve: 10, Course: "CS101"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 5.0, prev.Curve)
}

func TestService_Participation(t *testing.T) {
	s := newTestService(t, Config{})

	prev, err := s.InsertParticipation(4, 10)
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = s.InsertParticipation(4, 11)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, registry.Count(10), *prev)

	got, err := s.GetParticipation(4)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, registry.Count(11), *got)

	got, err = s.GetParticipation(5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_EditIgnoresClientActiveFlag(t *testing.T) {
	s := newTestService(t, Config{})
	require.NoError(t, s.CreateProposal(0, "draft"))
	require.NoError(t, s.EndProposal(0))

	// A stale client claiming the proposal is active cannot edit or reopen it
	err := s.EditProposal(0, ProposalEdit{Description: "sneaky", IsActive: true})
	assert.ErrorIs(t, err, ballot.ErrProposalClosed)

	p, err := s.GetProposal(0)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.IsActive)
	assert.Equal(t, "draft", p.Description)

	// And a client claiming inactive does not block an edit of an active proposal
	require.NoError(t, s.CreateProposal(1, "draft"))
	require.NoError(t, s.EditProposal(1, ProposalEdit{Description: "final", IsActive: false}))
	p, err = s.GetProposal(1)
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Equal(t, "final", p.Description)
}

func TestService_InvalidExam(t *testing.T) {
	s := newTestService(t, Config{})
	zero := 0.0
	_, err := s.InsertExam(2, registry.Exam{OutOf: 1 / zero})
	assert.ErrorIs(t, err, ballot.ErrInvalidInput)
}

func TestService_OversizedExam(t *testing.T) {
	s := newTestService(t, Config{})
	_, err := s.InsertExam(3, registry.Exam{OutOf: 10, Course: strings.Repeat("c", reliability.MaxValueSize)})
	assert.ErrorIs(t, err, ballot.ErrInvalidInput)
	assert.Equal(t, ballot.KindInvalidInput, ballot.KindOf(err))

	got, err := s.GetExam(3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_Greet(t *testing.T) {
	s := newTestService(t, Config{})
	assert.Equal(t, "Hello, Ada!", s.Greet("Ada"))
}

func TestService_ProposalQueries(t *testing.T) {
	s := newTestService(t, Config{MaxListLimit: 3, MaxDescriptionBytes: 16})
	for id := proposal.ID(10); id < 15; id++ {
		require.NoError(t, s.CreateProposal(id, "p"))
	}

	n, err := s.GetProposalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	// Clamped to MaxListLimit
	entries, err := s.ListProposals(0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	entries, err = s.ListProposals(0, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = s.ListProposals(100, 2)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	status, err := s.GetProposalStatus(10)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, ballot.Undecided, *status)

	status, err = s.GetProposalStatus(99)
	require.NoError(t, err)
	assert.Nil(t, status)

	assert.ErrorIs(t, s.CreateProposal(20, "this description is too long"), ballot.ErrInvalidInput)
}
