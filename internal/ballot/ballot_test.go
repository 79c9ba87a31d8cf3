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
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/proposal"
	"voteStore/pkg/reliability"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		label string
		want  Choice
		ok    bool
	}{
		{"approve", Approve, true},
		{"reject", Reject, true},
		{"pass", Pass, true},
		{"Approve", 0, false},
		{"", 0, false},
		{"abstain", 0, false},
		{"approve ", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseChoice(tt.label)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChoice_JSON(t *testing.T) {
	var req struct {
		Choice Choice `json:"choice"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"choice":"reject"}`), &req))
	assert.Equal(t, Reject, req.Choice)

	err := json.Unmarshal([]byte(`{"choice":"maybe"}`), &req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"choice":"reject"}`, string(out))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name  string
		tally proposal.Tally
		want  Status
	}{
		{"NoVotes", proposal.Tally{}, Undecided},
		{"TooFewVotes", proposal.Tally{Approve: 4}, Undecided},
		{"ApproveMajority", proposal.Tally{Approve: 3, Reject: 2}, Approved},
		{"ApproveExactlyHalf", proposal.Tally{Approve: 3, Reject: 2, Pass: 1}, Approved},
		{"RejectMajority", proposal.Tally{Approve: 1, Reject: 4}, Rejected},
		{"PassMajority", proposal.Tally{Approve: 1, Reject: 1, Pass: 3}, Passed},
		{"ApproveWinsTie", proposal.Tally{Approve: 3, Reject: 3}, Approved},
		{"NoMajority", proposal.Tally{Approve: 2, Reject: 2, Pass: 2}, Undecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.tally))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("disk on fire")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrap: %w", proposal.ErrNotFound)))
	assert.Equal(t, KindAlreadyExists, KindOf(proposal.ErrExists))
	assert.Equal(t, KindInvalidInput, KindOf(fmt.Errorf("put: %w", reliability.ErrValueTooLarge)))

	for _, k := range []Kind{KindNotFound, KindProposalClosed, KindAlreadyClosed, KindInvalidInput, KindAlreadyExists} {
		assert.Equal(t, k, KindOf(fmt.Errorf("ctx: %w", k.Sentinel())), k.String())
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("NOPE"))
}
