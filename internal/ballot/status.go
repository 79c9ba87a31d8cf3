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
	"fmt"

	"voteStore/internal/proposal"
)

// Status 提案结果
type Status int

const (
	Undecided Status = iota
	Approved
	Rejected
	Passed
)

// MinVotesForDecision 少于该票数时结果为 Undecided
const MinVotesForDecision = 5

var statusNames = map[Status]string{
	Undecided: "undecided",
	Approved:  "approved",
	Rejected:  "rejected",
	Passed:    "passed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "undecided"
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for k, n := range statusNames {
		if n == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, text)
}

// StatusOf derives the outcome from a tally: the first of approve, reject
// and pass holding at least half of the votes wins, once at least
// MinVotesForDecision votes were cast.
func StatusOf(t proposal.Tally) Status {
	total := t.Total()
	if total < MinVotesForDecision {
		return Undecided
	}
	switch {
	case t.Approve >= total-t.Approve:
		return Approved
	case t.Reject >= total-t.Reject:
		return Rejected
	case t.Pass >= total-t.Pass:
		return Passed
	default:
		return Undecided
	}
}
