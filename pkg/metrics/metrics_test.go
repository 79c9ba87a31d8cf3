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

package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voteStore/internal/ballot"
	"voteStore/internal/kvstore"
	"voteStore/internal/storage"
)

// 编译期检查接口实现
var (
	_ ballot.Recorder  = (*Metrics)(nil)
	_ kvstore.Observer = (&Metrics{}).ObserveStorage
)

func TestBallotRecorder(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordVote("approve")
	m.RecordVote("approve")
	m.RecordVote("pass")
	m.RecordProposalCreated()
	m.RecordProposalClosed()
	m.RecordRejection("vote", "PROPOSAL_CLOSED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProposalsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProposalsClosedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BallotRejectionsTotal.WithLabelValues("vote", "PROPOSAL_CLOSED")))
}

func TestObserveStorage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStorage("get", "proposal", time.Millisecond, nil)
	m.ObserveStorage("put", "proposal", time.Millisecond, fmt.Errorf("put: %w", storage.ErrClosed))
	m.ObserveStorage("put", "exam", time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOperationTotal.WithLabelValues("get", "proposal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOperationErrors.WithLabelValues("put", "closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOperationErrors.WithLabelValues("put", "io")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.RecordVote("reject")
	m.RecordHTTPRequest("/v1/proposals/{id}", http.StatusConflict, time.Millisecond)

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `votestore_ballot_votes_total{choice="reject"} 1`)
	assert.Contains(t, body, `votestore_http_request_duration_seconds_count{code="4xx",route="/v1/proposals/{id}"} 1`)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusCreated))
	assert.Equal(t, "4xx", statusClass(http.StatusNotFound))
	assert.Equal(t, "5xx", statusClass(http.StatusInternalServerError))
}
