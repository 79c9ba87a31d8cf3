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

package ballot

import (
	"errors"

	"voteStore/internal/proposal"
	"voteStore/pkg/reliability"
)

// Kind classifies a failed operation
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindProposalClosed
	KindAlreadyClosed
	KindInvalidInput
	KindAlreadyExists
)

var kindNames = map[Kind]string{
	KindUnknown:        "UNKNOWN",
	KindNotFound:       "NOT_FOUND",
	KindProposalClosed: "PROPOSAL_CLOSED",
	KindAlreadyClosed:  "ALREADY_CLOSED",
	KindInvalidInput:   "INVALID_INPUT",
	KindAlreadyExists:  "ALREADY_EXISTS",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// ParseKind 解析 Kind 名称（如 "PROPOSAL_CLOSED"）
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Sentinel errors. Operations wrap them with context; test with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrProposalClosed = errors.New("proposal is closed")
	ErrAlreadyClosed  = errors.New("proposal already closed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyExists  = errors.New("already exists")
)

var sentinels = map[Kind]error{
	KindNotFound:       ErrNotFound,
	KindProposalClosed: ErrProposalClosed,
	KindAlreadyClosed:  ErrAlreadyClosed,
	KindInvalidInput:   ErrInvalidInput,
	KindAlreadyExists:  ErrAlreadyExists,
}

// KindOf 返回错误对应的 Kind，非业务错误返回 KindUnknown
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound), errors.Is(err, proposal.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrProposalClosed):
		return KindProposalClosed
	case errors.Is(err, ErrAlreadyClosed):
		return KindAlreadyClosed
	case errors.Is(err, ErrInvalidInput), errors.Is(err, reliability.ErrValueTooLarge):
		return KindInvalidInput
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, proposal.ErrExists):
		return KindAlreadyExists
	default:
		return KindUnknown
	}
}

// Sentinel 返回 Kind 对应的哨兵错误，KindUnknown 返回 nil
func (k Kind) Sentinel() error {
	return sentinels[k]
}
