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

package rpc_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"voteStore/api/rpc"
	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/service"
	"voteStore/internal/storage"
	"voteStore/pkg/client"
	"voteStore/pkg/reliability"
)

func startServer(t *testing.T) *client.Client {
	t.Helper()

	backend := storage.NewMemory()
	svc := service.NewFromBackend(backend, service.Config{MaxDescriptionBytes: 64}, nil, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	rpc.RegisterVoteServiceServer(gs, rpc.NewServer(svc, nil))
	go gs.Serve(lis)

	c, err := client.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		gs.Stop()
		backend.Close()
	})
	return c
}

func proposalID(n uint64) proposal.ID { return proposal.ID(n) }

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestVoteService_Exams(t *testing.T) {
	c := startServer(t)
	ctx := testCtx(t)

	exam, err := c.GetExam(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, exam)

	prev, err := c.InsertExam(ctx, 1, registry.Exam{OutOf: 100, Curve: 5, Course: "CS101"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	exam, err = c.GetExam(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, exam)
	assert.Equal(t, registry.Exam{OutOf: 100, Curve: 5, Course: "CS101"}, *exam)

	prev, err = c.InsertExam(ctx, 1, registry.Exam{OutOf: 100, Curve: 10, Course: "CS101"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 5.0, prev.Curve)
}

func TestVoteService_Participation(t *testing.T) {
	c := startServer(t)
	ctx := testCtx(t)

	count, err := c.GetParticipation(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, count)

	prev, err := c.InsertParticipation(ctx, 9, 0)
	require.NoError(t, err)
	assert.Nil(t, prev)

	// A stored zero is still a present value
	count, err = c.GetParticipation(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, uint64(0), *count)

	prev, err = c.InsertParticipation(ctx, 9, 25)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, uint64(0), *prev)
}

func TestVoteService_ProposalLifecycle(t *testing.T) {
	c := startServer(t)
	ctx := testCtx(t)

	require.NoError(t, c.CreateProposal(ctx, 0, "Adopt the new syllabus"))
	require.NoError(t, c.Vote(ctx, 0, ballot.Approve))
	require.NoError(t, c.Vote(ctx, 0, ballot.Approve))
	require.NoError(t, c.Vote(ctx, 0, ballot.Reject))

	p, err := c.GetProposal(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsActive)
	assert.Equal(t, uint64(2), p.Tally.Approve)
	assert.Equal(t, uint64(1), p.Tally.Reject)
	assert.Equal(t, uint64(0), p.Tally.Pass)

	require.NoError(t, c.EndProposal(ctx, 0))

	err = c.Vote(ctx, 0, ballot.Approve)
	assert.ErrorIs(t, err, ballot.ErrProposalClosed)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, ballot.KindProposalClosed, rpc.KindFromError(err))

	err = c.EditProposal(ctx, 0, service.ProposalEdit{Description: "reopen", IsActive: true})
	assert.ErrorIs(t, err, ballot.ErrProposalClosed)

	err = c.EndProposal(ctx, 0)
	assert.ErrorIs(t, err, ballot.ErrAlreadyClosed)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, ballot.KindAlreadyClosed, rpc.KindFromError(err))

	p, err = c.GetProposal(ctx, 0)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Equal(t, "Adopt the new syllabus", p.Description)
	assert.Equal(t, uint64(3), p.Tally.Total())
}

func TestVoteService_Errors(t *testing.T) {
	c := startServer(t)
	ctx := testCtx(t)
	require.NoError(t, c.CreateProposal(ctx, 0, "draft"))

	tests := []struct {
		name string
		call func() error
		want error
		code codes.Code
	}{
		{"EndUnknown", func() error { return c.EndProposal(ctx, 99) }, ballot.ErrNotFound, codes.NotFound},
		{"VoteUnknown", func() error { return c.Vote(ctx, 99, ballot.Pass) }, ballot.ErrNotFound, codes.NotFound},
		{"EmptyEdit", func() error {
			return c.EditProposal(ctx, 0, service.ProposalEdit{Description: ""})
		}, ballot.ErrInvalidInput, codes.InvalidArgument},
		{"UnknownLabel", func() error { return c.VoteLabel(ctx, 0, "abstain") }, ballot.ErrInvalidInput, codes.InvalidArgument},
		{"DuplicateCreate", func() error { return c.CreateProposal(ctx, 0, "again") }, ballot.ErrAlreadyExists, codes.AlreadyExists},
		{"OversizedExam", func() error {
			_, err := c.InsertExam(ctx, 3, registry.Exam{OutOf: 10, Course: strings.Repeat("c", reliability.MaxValueSize)})
			return err
		}, ballot.ErrInvalidInput, codes.InvalidArgument},
		{"TooLong", func() error {
			return c.CreateProposal(ctx, 1, "this description is definitely longer than sixty-four bytes in total")
		}, ballot.ErrInvalidInput, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	p, err := c.GetProposal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "draft", p.Description)
	assert.Zero(t, p.Tally.Total())
}

func TestVoteService_Queries(t *testing.T) {
	c := startServer(t)
	ctx := testCtx(t)

	msg, err := c.Greet(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", msg)

	for id := uint64(0); id < 3; id++ {
		require.NoError(t, c.CreateProposal(ctx, proposalID(id), "p"))
	}
	n, err := c.GetProposalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	entries, err := c.ListProposals(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, proposalID(1), entries[0].ID)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Vote(ctx, 2, ballot.Pass))
	}
	st, err := c.GetProposalStatus(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, ballot.Passed, *st)

	st, err = c.GetProposalStatus(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestVoteService_ParticipationCountRequired(t *testing.T) {
	backend := storage.NewMemory()
	t.Cleanup(func() { backend.Close() })
	svc := service.NewFromBackend(backend, service.Config{}, nil, nil)
	srv := rpc.NewServer(svc, nil)
	ctx := testCtx(t)

	_, err := srv.InsertParticipation(ctx, &rpc.InsertParticipationRequest{ID: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	got, err := svc.GetParticipation(1)
	require.NoError(t, err)
	assert.Nil(t, got, "rejected request must not store a zero count")

	zero := uint64(0)
	resp, err := srv.InsertParticipation(ctx, &rpc.InsertParticipationRequest{ID: 1, Count: &zero})
	require.NoError(t, err)
	assert.Nil(t, resp.Previous)
}
