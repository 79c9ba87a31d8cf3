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

package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"voteStore/internal/ballot"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "votestore.v1.VoteService"

// VoteServiceServer is the server API of votestore.v1.VoteService
type VoteServiceServer interface {
	GetExam(context.Context, *ExamIDRequest) (*GetExamResponse, error)
	InsertExam(context.Context, *InsertExamRequest) (*InsertExamResponse, error)
	GetParticipation(context.Context, *ExamIDRequest) (*GetParticipationResponse, error)
	InsertParticipation(context.Context, *InsertParticipationRequest) (*InsertParticipationResponse, error)
	Vote(context.Context, *VoteRequest) (*Empty, error)
	EditProposal(context.Context, *EditProposalRequest) (*Empty, error)
	EndProposal(context.Context, *ProposalIDRequest) (*Empty, error)
	Greet(context.Context, *GreetRequest) (*GreetResponse, error)
	CreateProposal(context.Context, *CreateProposalRequest) (*Empty, error)
	GetProposal(context.Context, *ProposalIDRequest) (*GetProposalResponse, error)
	GetProposalCount(context.Context, *GetProposalCountRequest) (*GetProposalCountResponse, error)
	GetProposalStatus(context.Context, *ProposalIDRequest) (*GetProposalStatusResponse, error)
	ListProposals(context.Context, *ListProposalsRequest) (*ListProposalsResponse, error)
}

// FullMethod returns "/votestore.v1.VoteService/<method>"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one unary RPC
func unary[Req, Resp any](method string, call func(VoteServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, toGRPCError(fmt.Errorf("%w: malformed request: %v", ballot.ErrInvalidInput, err))
			}
			if interceptor == nil {
				return call(srv.(VoteServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VoteServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for votestore.v1.VoteService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VoteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetExam", VoteServiceServer.GetExam),
		unary("InsertExam", VoteServiceServer.InsertExam),
		unary("GetParticipation", VoteServiceServer.GetParticipation),
		unary("InsertParticipation", VoteServiceServer.InsertParticipation),
		unary("Vote", VoteServiceServer.Vote),
		unary("EditProposal", VoteServiceServer.EditProposal),
		unary("EndProposal", VoteServiceServer.EndProposal),
		unary("Greet", VoteServiceServer.Greet),
		unary("CreateProposal", VoteServiceServer.CreateProposal),
		unary("GetProposal", VoteServiceServer.GetProposal),
		unary("GetProposalCount", VoteServiceServer.GetProposalCount),
		unary("GetProposalStatus", VoteServiceServer.GetProposalStatus),
		unary("ListProposals", VoteServiceServer.ListProposals),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "votestore/v1/vote_service",
}

// RegisterVoteServiceServer registers srv on s
func RegisterVoteServiceServer(s grpc.ServiceRegistrar, srv VoteServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
