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

// Package rpc serves votestore.v1.VoteService over gRPC.
//
// Messages are JSON (content-subtype "json"); business errors map to gRPC
// codes and carry a google.rpc.ErrorInfo naming the error kind.
package rpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/service"
)

// Server implements VoteServiceServer on top of service.Service
type Server struct {
	svc    *service.Service
	logger *zap.Logger
}

var _ VoteServiceServer = (*Server)(nil)

// NewServer 创建 VoteService 实现
func NewServer(svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger}
}

func (s *Server) GetExam(ctx context.Context, req *ExamIDRequest) (*GetExamResponse, error) {
	exam, err := s.svc.GetExam(registry.ExamID(req.ID))
	if err != nil {
		return nil, s.fail(err)
	}
	return &GetExamResponse{Exam: exam}, nil
}

func (s *Server) InsertExam(ctx context.Context, req *InsertExamRequest) (*InsertExamResponse, error) {
	prev, err := s.svc.InsertExam(registry.ExamID(req.ID), req.Exam)
	if err != nil {
		return nil, s.fail(err)
	}
	return &InsertExamResponse{Previous: prev}, nil
}

func (s *Server) GetParticipation(ctx context.Context, req *ExamIDRequest) (*GetParticipationResponse, error) {
	count, err := s.svc.GetParticipation(registry.ExamID(req.ID))
	if err != nil {
		return nil, s.fail(err)
	}
	return &GetParticipationResponse{Count: countPtr(count)}, nil
}

func (s *Server) InsertParticipation(ctx context.Context, req *InsertParticipationRequest) (*InsertParticipationResponse, error) {
	if req.Count == nil {
		return nil, s.fail(fmt.Errorf("%w: count is required", ballot.ErrInvalidInput))
	}
	prev, err := s.svc.InsertParticipation(registry.ExamID(req.ID), registry.Count(*req.Count))
	if err != nil {
		return nil, s.fail(err)
	}
	return &InsertParticipationResponse{Previous: countPtr(prev)}, nil
}

func (s *Server) Vote(ctx context.Context, req *VoteRequest) (*Empty, error) {
	choice, err := ballot.ParseChoice(req.Choice)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.svc.Vote(proposal.ID(req.ID), choice); err != nil {
		return nil, s.fail(err)
	}
	return &Empty{}, nil
}

func (s *Server) EditProposal(ctx context.Context, req *EditProposalRequest) (*Empty, error) {
	if err := s.svc.EditProposal(proposal.ID(req.ID), req.Proposal); err != nil {
		return nil, s.fail(err)
	}
	return &Empty{}, nil
}

func (s *Server) EndProposal(ctx context.Context, req *ProposalIDRequest) (*Empty, error) {
	if err := s.svc.EndProposal(proposal.ID(req.ID)); err != nil {
		return nil, s.fail(err)
	}
	return &Empty{}, nil
}

func (s *Server) Greet(ctx context.Context, req *GreetRequest) (*GreetResponse, error) {
	return &GreetResponse{Message: s.svc.Greet(req.Name)}, nil
}

func (s *Server) CreateProposal(ctx context.Context, req *CreateProposalRequest) (*Empty, error) {
	if err := s.svc.CreateProposal(proposal.ID(req.ID), req.Description); err != nil {
		return nil, s.fail(err)
	}
	return &Empty{}, nil
}

func (s *Server) GetProposal(ctx context.Context, req *ProposalIDRequest) (*GetProposalResponse, error) {
	p, err := s.svc.GetProposal(proposal.ID(req.ID))
	if err != nil {
		return nil, s.fail(err)
	}
	return &GetProposalResponse{Proposal: p}, nil
}

func (s *Server) GetProposalCount(ctx context.Context, _ *GetProposalCountRequest) (*GetProposalCountResponse, error) {
	n, err := s.svc.GetProposalCount()
	if err != nil {
		return nil, s.fail(err)
	}
	return &GetProposalCountResponse{Count: n}, nil
}

func (s *Server) GetProposalStatus(ctx context.Context, req *ProposalIDRequest) (*GetProposalStatusResponse, error) {
	st, err := s.svc.GetProposalStatus(proposal.ID(req.ID))
	if err != nil {
		return nil, s.fail(err)
	}
	return &GetProposalStatusResponse{Status: st}, nil
}

func (s *Server) ListProposals(ctx context.Context, req *ListProposalsRequest) (*ListProposalsResponse, error) {
	entries, err := s.svc.ListProposals(proposal.ID(req.StartID), req.Limit)
	if err != nil {
		return nil, s.fail(err)
	}
	return &ListProposalsResponse{Proposals: entries}, nil
}

// fail converts err for the wire and logs errors that are not business errors
func (s *Server) fail(err error) error {
	if ballot.KindOf(err) == ballot.KindUnknown {
		s.logger.Error("VoteService request failed", zap.Error(err))
	}
	return toGRPCError(err)
}

func countPtr(c *registry.Count) *uint64 {
	if c == nil {
		return nil
	}
	v := uint64(*c)
	return &v
}
