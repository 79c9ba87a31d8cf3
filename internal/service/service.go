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

// Package service is the RPC-visible surface of votestore. It owns the
// registries and the ballot engine, which are injected at construction.
package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"voteStore/internal/ballot"
	"voteStore/internal/kvstore"
	"voteStore/internal/proposal"
	"voteStore/internal/registry"
	"voteStore/internal/storage"
	"voteStore/pkg/log"
	"voteStore/pkg/reliability"
)

// DefaultMaxListLimit ListProposals 单页上限
const DefaultMaxListLimit = 1000

// ProposalEdit is the edit payload. IsActive is the caller's view of the
// proposal and is never used: the stored state decides.
type ProposalEdit struct {
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Config 服务参数
type Config struct {
	MaxListLimit        int
	MaxDescriptionBytes int
}

// Service composes the stores behind the remote operations
type Service struct {
	exams         *registry.ExamRegistry
	participation *registry.ParticipationRegistry
	ballot        *ballot.Engine

	maxListLimit int
	logger       *zap.Logger
}

// New 创建服务
func New(exams *registry.ExamRegistry, participation *registry.ParticipationRegistry,
	engine *ballot.Engine, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = DefaultMaxListLimit
	}
	return &Service{
		exams:         exams,
		participation: participation,
		ballot:        engine,
		maxListLimit:  cfg.MaxListLimit,
		logger:        logger,
	}
}

// NewFromBackend wires both registries and the ballot engine over one backend
func NewFromBackend(backend storage.Backend, cfg Config, logger *zap.Logger,
	recorder ballot.Recorder, kvOpts ...kvstore.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := ballot.NewEngine(
		proposal.NewStore(backend, kvOpts...),
		ballot.WithLogger(logger.Named("ballot")),
		ballot.WithRecorder(recorder),
		ballot.WithMaxDescriptionBytes(cfg.MaxDescriptionBytes),
	)
	return New(
		registry.NewExamRegistry(backend, kvOpts...),
		registry.NewParticipationRegistry(backend, kvOpts...),
		engine, cfg, logger,
	)
}

// GetExam returns the exam under id, or nil
func (s *Service) GetExam(id registry.ExamID) (*registry.Exam, error) {
	exam, ok, err := s.exams.Get(id)
	if err != nil || !ok {
		return nil, err
	}
	return &exam, nil
}

// InsertExam stores exam under id and returns the exam it replaced, or nil
func (s *Service) InsertExam(id registry.ExamID, exam registry.Exam) (*registry.Exam, error) {
	prev, existed, err := s.exams.Insert(id, exam)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidExam) || errors.Is(err, reliability.ErrValueTooLarge) {
			return nil, fmt.Errorf("%w: %v", ballot.ErrInvalidInput, err)
		}
		return nil, err
	}
	if !existed {
		return nil, nil
	}
	s.logger.Debug("Exam replaced", log.ExamID(uint64(id)))
	return &prev, nil
}

// GetParticipation returns the participation count under id, or nil
func (s *Service) GetParticipation(id registry.ExamID) (*registry.Count, error) {
	count, ok, err := s.participation.Get(id)
	if err != nil || !ok {
		return nil, err
	}
	return &count, nil
}

// InsertParticipation replaces the count under id and returns the previous one, or nil
func (s *Service) InsertParticipation(id registry.ExamID, count registry.Count) (*registry.Count, error) {
	prev, existed, err := s.participation.Insert(id, count)
	if err != nil || !existed {
		return nil, err
	}
	return &prev, nil
}

// Vote 投票
func (s *Service) Vote(id proposal.ID, choice ballot.Choice) error {
	return s.ballot.Vote(id, choice)
}

// EditProposal 修改描述，忽略 edit.IsActive
func (s *Service) EditProposal(id proposal.ID, edit ProposalEdit) error {
	return s.ballot.EditProposal(id, edit.Description)
}

// EndProposal 关闭提案
func (s *Service) EndProposal(id proposal.ID) error {
	return s.ballot.EndProposal(id)
}

// Greet 问候
func (s *Service) Greet(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

// CreateProposal 创建提案
func (s *Service) CreateProposal(id proposal.ID, description string) error {
	return s.ballot.CreateProposal(id, description)
}

// GetProposal returns the proposal under id, or nil
func (s *Service) GetProposal(id proposal.ID) (*proposal.Proposal, error) {
	p, ok, err := s.ballot.GetProposal(id)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// GetProposalCount 提案总数
func (s *Service) GetProposalCount() (uint64, error) {
	n, err := s.ballot.ProposalCount()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// GetProposalStatus returns the outcome of the proposal under id, or nil
func (s *Service) GetProposalStatus(id proposal.ID) (*ballot.Status, error) {
	status, ok, err := s.ballot.ProposalStatus(id)
	if err != nil || !ok {
		return nil, err
	}
	return &status, nil
}

// ListProposals lists proposals with id >= startID. A limit of zero, or one
// above the configured maximum, is clamped to the maximum.
func (s *Service) ListProposals(startID proposal.ID, limit int) ([]proposal.Entry, error) {
	if limit <= 0 || limit > s.maxListLimit {
		limit = s.maxListLimit
	}
	entries, err := s.ballot.ListProposals(startID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []proposal.Entry{}
	}
	return entries, nil
}
