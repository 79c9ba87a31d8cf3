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

// Package client is a typed Go client for votestore.v1.VoteService.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"voteStore/api/rpc"
	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/service"
)

// Client calls VoteService. Business errors returned by its methods match
// the ballot sentinels with errors.Is (ballot.ErrProposalClosed, ...).
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn // 非 nil 时由 Client 负责关闭
}

// Dial connects to target without transport security
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// New wraps an existing connection; Close does not close it
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close 关闭 Dial 创建的连接
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.cc.Invoke(ctx, rpc.FullMethod(method), req, resp, grpc.CallContentSubtype(rpc.CodecName))
	return rpc.FromGRPCError(err)
}

// GetExam returns the exam under id, or nil
func (c *Client) GetExam(ctx context.Context, id registry.ExamID) (*registry.Exam, error) {
	var resp rpc.GetExamResponse
	if err := c.invoke(ctx, "GetExam", &rpc.ExamIDRequest{ID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Exam, nil
}

// InsertExam returns the replaced exam, or nil
func (c *Client) InsertExam(ctx context.Context, id registry.ExamID, exam registry.Exam) (*registry.Exam, error) {
	var resp rpc.InsertExamResponse
	if err := c.invoke(ctx, "InsertExam", &rpc.InsertExamRequest{ID: uint64(id), Exam: exam}, &resp); err != nil {
		return nil, err
	}
	return resp.Previous, nil
}

// GetParticipation returns the count under id, or nil
func (c *Client) GetParticipation(ctx context.Context, id registry.ExamID) (*uint64, error) {
	var resp rpc.GetParticipationResponse
	if err := c.invoke(ctx, "GetParticipation", &rpc.ExamIDRequest{ID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Count, nil
}

// InsertParticipation returns the replaced count, or nil
func (c *Client) InsertParticipation(ctx context.Context, id registry.ExamID, count uint64) (*uint64, error) {
	var resp rpc.InsertParticipationResponse
	if err := c.invoke(ctx, "InsertParticipation", &rpc.InsertParticipationRequest{ID: uint64(id), Count: &count}, &resp); err != nil {
		return nil, err
	}
	return resp.Previous, nil
}

func (c *Client) Vote(ctx context.Context, id proposal.ID, choice ballot.Choice) error {
	return c.VoteLabel(ctx, id, choice.String())
}

// VoteLabel votes with a raw choice label; unknown labels fail with ballot.ErrInvalidInput
func (c *Client) VoteLabel(ctx context.Context, id proposal.ID, label string) error {
	return c.invoke(ctx, "Vote", &rpc.VoteRequest{ID: uint64(id), Choice: label}, &rpc.Empty{})
}

func (c *Client) EditProposal(ctx context.Context, id proposal.ID, edit service.ProposalEdit) error {
	return c.invoke(ctx, "EditProposal", &rpc.EditProposalRequest{ID: uint64(id), Proposal: edit}, &rpc.Empty{})
}

func (c *Client) EndProposal(ctx context.Context, id proposal.ID) error {
	return c.invoke(ctx, "EndProposal", &rpc.ProposalIDRequest{ID: uint64(id)}, &rpc.Empty{})
}

func (c *Client) Greet(ctx context.Context, name string) (string, error) {
	var resp rpc.GreetResponse
	if err := c.invoke(ctx, "Greet", &rpc.GreetRequest{Name: name}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) CreateProposal(ctx context.Context, id proposal.ID, description string) error {
	return c.invoke(ctx, "CreateProposal", &rpc.CreateProposalRequest{ID: uint64(id), Description: description}, &rpc.Empty{})
}

// GetProposal returns the proposal under id, or nil
func (c *Client) GetProposal(ctx context.Context, id proposal.ID) (*proposal.Proposal, error) {
	var resp rpc.GetProposalResponse
	if err := c.invoke(ctx, "GetProposal", &rpc.ProposalIDRequest{ID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Proposal, nil
}

func (c *Client) GetProposalCount(ctx context.Context) (uint64, error) {
	var resp rpc.GetProposalCountResponse
	if err := c.invoke(ctx, "GetProposalCount", &rpc.GetProposalCountRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// GetProposalStatus returns the outcome of the proposal under id, or nil
func (c *Client) GetProposalStatus(ctx context.Context, id proposal.ID) (*ballot.Status, error) {
	var resp rpc.GetProposalStatusResponse
	if err := c.invoke(ctx, "GetProposalStatus", &rpc.ProposalIDRequest{ID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Status, nil
}

func (c *Client) ListProposals(ctx context.Context, startID proposal.ID, limit int) ([]proposal.Entry, error) {
	var resp rpc.ListProposalsResponse
	if err := c.invoke(ctx, "ListProposals", &rpc.ListProposalsRequest{StartID: uint64(startID), Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Proposals, nil
}
