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

// Package ballot enforces the proposal lifecycle.
//
// A proposal is Active until EndProposal closes it; Closed is terminal.
// Votes and edits are accepted only while Active. Every failed operation
// leaves the stored record unchanged.
package ballot

import (
	"fmt"

	"go.uber.org/zap"

	"voteStore/internal/proposal"
	"voteStore/pkg/log"
)

// DefaultMaxDescriptionBytes 描述最大字节数
const DefaultMaxDescriptionBytes = 1024

// Recorder receives ballot outcomes (implemented by pkg/metrics)
type Recorder interface {
	RecordVote(choice string)
	RecordProposalCreated()
	RecordProposalClosed()
	RecordRejection(operation, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordVote(string)              {}
func (nopRecorder) RecordProposalCreated()         {}
func (nopRecorder) RecordProposalClosed()          {}
func (nopRecorder) RecordRejection(string, string) {}

// Option configures an Engine
type Option func(*Engine)

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithMaxDescriptionBytes 设置描述长度上限
func WithMaxDescriptionBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDescriptionBytes = n
		}
	}
}

// Engine applies votes, edits and closes to proposals
type Engine struct {
	store               *proposal.Store
	maxDescriptionBytes int
	logger              *zap.Logger
	recorder            Recorder
}

// NewEngine 创建投票引擎
func NewEngine(store *proposal.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		maxDescriptionBytes: DefaultMaxDescriptionBytes,
		logger:              zap.NewNop(),
		recorder:            nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vote adds one vote for choice to an active proposal
func (e *Engine) Vote(id proposal.ID, choice Choice) error {
	if !choice.Valid() {
		return e.reject("vote", id, fmt.Errorf("%w: %s", ErrInvalidInput, choice))
	}

	err := e.store.Mutate(id, func(p *proposal.Proposal) error {
		if !p.IsActive {
			return ErrProposalClosed
		}
		switch choice {
		case Approve:
			p.Tally.Approve++
		case Reject:
			p.Tally.Reject++
		case Pass:
			p.Tally.Pass++
		}
		return nil
	})
	if err != nil {
		return e.reject("vote", id, err)
	}

	e.recorder.RecordVote(choice.String())
	return nil
}

// EditProposal replaces the description of an active proposal.
// Checks run in order: existence, then active, then the description itself.
func (e *Engine) EditProposal(id proposal.ID, description string) error {
	err := e.store.Mutate(id, func(p *proposal.Proposal) error {
		if !p.IsActive {
			return ErrProposalClosed
		}
		if err := e.validateDescription(description); err != nil {
			return err
		}
		p.Description = description
		return nil
	})
	if err != nil {
		return e.reject("edit_proposal", id, err)
	}
	return nil
}

// EndProposal closes an active proposal. Closing twice fails with
// ErrAlreadyClosed so callers can tell the two cases apart.
func (e *Engine) EndProposal(id proposal.ID) error {
	err := e.store.Mutate(id, func(p *proposal.Proposal) error {
		if !p.IsActive {
			return ErrAlreadyClosed
		}
		p.IsActive = false
		return nil
	})
	if err != nil {
		return e.reject("end_proposal", id, err)
	}

	e.recorder.RecordProposalClosed()
	e.logger.Info("Proposal closed", log.ProposalID(uint64(id)))
	return nil
}

// CreateProposal creates an active proposal with an empty tally.
// An existing id is never overwritten.
func (e *Engine) CreateProposal(id proposal.ID, description string) error {
	if err := e.validateDescription(description); err != nil {
		return e.reject("create_proposal", id, err)
	}
	if err := e.store.Create(id, description); err != nil {
		return e.reject("create_proposal", id, err)
	}

	e.recorder.RecordProposalCreated()
	return nil
}

// GetProposal 返回提案
func (e *Engine) GetProposal(id proposal.ID) (proposal.Proposal, bool, error) {
	return e.store.Get(id)
}

// ProposalCount 提案总数
func (e *Engine) ProposalCount() (int, error) {
	return e.store.Len()
}

// ProposalStatus 返回提案结果，提案不存在时 ok=false
func (e *Engine) ProposalStatus(id proposal.ID) (Status, bool, error) {
	p, ok, err := e.store.Get(id)
	if err != nil || !ok {
		return Undecided, false, err
	}
	return StatusOf(p.Tally), true, nil
}

// ListProposals 按 id 升序列出提案
func (e *Engine) ListProposals(from proposal.ID, limit int) ([]proposal.Entry, error) {
	return e.store.List(from, limit)
}

func (e *Engine) validateDescription(description string) error {
	if description == "" {
		return fmt.Errorf("%w: description is empty", ErrInvalidInput)
	}
	if len(description) > e.maxDescriptionBytes {
		return fmt.Errorf("%w: description is %d bytes (max %d)", ErrInvalidInput, len(description), e.maxDescriptionBytes)
	}
	return nil
}

// reject 统一包装失败：补充上下文、记录指标与 debug 日志
func (e *Engine) reject(op string, id proposal.ID, err error) error {
	kind := KindOf(err)
	if kind == KindUnknown {
		e.logger.Error("Ballot operation failed",
			log.Operation(op), log.ProposalID(uint64(id)), log.Err(err))
		return fmt.Errorf("%s %d: %w", op, id, err)
	}

	e.recorder.RecordRejection(op, kind.String())
	e.logger.Debug("Ballot operation rejected",
		log.Operation(op), log.ProposalID(uint64(id)), log.ErrorKind(kind.String()))

	// 统一成 ballot 的哨兵错误
	if kind == KindNotFound || kind == KindAlreadyExists {
		return fmt.Errorf("%s %d: %w", op, id, kind.Sentinel())
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}
