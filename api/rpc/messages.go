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
	"voteStore/internal/ballot"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/service"
)

// Optional values are pointers and are omitted from the JSON when empty.

type ExamIDRequest struct {
	ID uint64 `json:"id"`
}

type GetExamResponse struct {
	Exam *registry.Exam `json:"exam,omitempty"`
}

type InsertExamRequest struct {
	ID   uint64        `json:"id"`
	Exam registry.Exam `json:"exam"`
}

type InsertExamResponse struct {
	Previous *registry.Exam `json:"previous,omitempty"`
}

type GetParticipationResponse struct {
	Count *uint64 `json:"count,omitempty"`
}

type InsertParticipationRequest struct {
	ID    uint64 `json:"id"`
	Count *uint64 `json:"count"` // 必填
}

type InsertParticipationResponse struct {
	Previous *uint64 `json:"previous,omitempty"`
}

// VoteRequest carries the choice as its label ("approve", "reject", "pass").
// Any other label is rejected with InvalidArgument.
type VoteRequest struct {
	ID     uint64 `json:"id"`
	Choice string `json:"choice"`
}

type EditProposalRequest struct {
	ID       uint64               `json:"id"`
	Proposal service.ProposalEdit `json:"proposal"`
}

type ProposalIDRequest struct {
	ID uint64 `json:"id"`
}

type CreateProposalRequest struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
}

type GetProposalResponse struct {
	Proposal *proposal.Proposal `json:"proposal,omitempty"`
}

type GetProposalCountRequest struct{}

type GetProposalCountResponse struct {
	Count uint64 `json:"count"`
}

type GetProposalStatusResponse struct {
	Status *ballot.Status `json:"status,omitempty"`
}

type ListProposalsRequest struct {
	StartID uint64 `json:"start_id"`
	Limit   int    `json:"limit"`
}

type ListProposalsResponse struct {
	Proposals []proposal.Entry `json:"proposals"`
}

type GreetRequest struct {
	Name string `json:"name"`
}

type GreetResponse struct {
	Message string `json:"message"`
}

// Empty is the response of operations that only signal success
type Empty struct{}
