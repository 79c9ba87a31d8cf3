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
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voteStore/internal/ballot"
)

// ErrorDomain is the ErrorInfo domain attached to every business error
const ErrorDomain = "votestore"

// kindCodeMap 将业务错误类型映射到 gRPC 状态码
var kindCodeMap = map[ballot.Kind]codes.Code{
	ballot.KindNotFound:       codes.NotFound,
	ballot.KindProposalClosed: codes.FailedPrecondition,
	ballot.KindAlreadyClosed:  codes.FailedPrecondition,
	ballot.KindAlreadyExists:  codes.AlreadyExists,
	ballot.KindInvalidInput:   codes.InvalidArgument,
}

// toGRPCError converts a service error to a gRPC status error. Business
// errors carry an ErrorInfo whose Reason is the kind name, so that callers
// can tell ProposalClosed from AlreadyClosed.
func toGRPCError(err error) error {
	if err == nil {
		return nil
	}

	// 已经是 gRPC status 错误
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return err
	}

	kind := ballot.KindOf(err)
	code, ok := kindCodeMap[kind]
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(code, err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: kind.String(),
		Domain: ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// KindFromError recovers the business error kind from a gRPC error
func KindFromError(err error) ballot.Kind {
	st, ok := status.FromError(err)
	if !ok {
		return ballot.KindUnknown
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return ballot.ParseKind(info.GetReason())
		}
	}
	return ballot.KindUnknown
}

// FromGRPCError turns a gRPC error produced by toGRPCError back into an
// error that matches the ballot sentinel with errors.Is
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	kind := KindFromError(err)
	if kind == ballot.KindUnknown {
		return err
	}
	return &remoteError{kind: kind, err: err}
}

type remoteError struct {
	kind ballot.Kind
	err  error
}

func (e *remoteError) Error() string { return e.err.Error() }

// Is matches the ballot sentinel of the same kind
func (e *remoteError) Is(target error) bool {
	return target == e.kind.Sentinel()
}

// Unwrap keeps status.FromError / status.Code working on the wrapped error
func (e *remoteError) Unwrap() error { return e.err }

// GRPCStatus exposes the original status
func (e *remoteError) GRPCStatus() *status.Status {
	st, _ := status.FromError(e.err)
	return st
}
