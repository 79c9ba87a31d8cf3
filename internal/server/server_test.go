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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voteStore/internal/ballot"
	"voteStore/pkg/client"
	"voteStore/pkg/config"
)

func testConfig(t *testing.T, engine string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig("127.0.0.1:0")
	cfg.Server.HTTPAddress = "127.0.0.1:0"
	cfg.Server.Monitoring.PrometheusPort = 0
	cfg.Server.Monitoring.HealthPort = 0
	cfg.Server.Reliability.ShutdownTimeout = 5 * time.Second
	cfg.Server.Reliability.EnableCRC = true
	cfg.Server.Storage.Engine = engine
	cfg.Server.Storage.DataDir = t.TempDir()
	return cfg
}

func TestServer_EndToEnd(t *testing.T) {
	srv, err := New(testConfig(t, config.EngineBolt), nil)
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(func() { srv.Stop() })

	c, err := client.Dial(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := c.Greet(ctx, "voteStore")
	require.NoError(t, err)
	assert.Equal(t, "Hello, voteStore!", msg)

	require.NoError(t, c.CreateProposal(ctx, 1, "extend the deadline"))
	require.NoError(t, c.Vote(ctx, 1, ballot.Approve))

	// gRPC 写入的数据可通过 HTTP 网关读取
	resp, err := http.Get("http://" + srv.HTTPAddress() + "/v1/proposals/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Proposal struct {
			Description string `json:"description"`
			Tally       struct {
				Approve uint64 `json:"approve"`
			} `json:"tally"`
		} `json:"proposal"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "extend the deadline", body.Proposal.Description)
	assert.Equal(t, uint64(1), body.Proposal.Tally.Approve)

	// 健康检查
	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && hc.Status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_StopClosesEverything(t *testing.T) {
	srv, err := New(testConfig(t, config.EngineMemory), nil)
	require.NoError(t, err)
	srv.Start()

	require.NoError(t, srv.Stop())
	// 重复调用是安全的
	require.NoError(t, srv.Stop())

	assert.Error(t, srv.backend.Ping())
	_, err = http.Get("http://" + srv.HTTPAddress() + "/v1/greet/x")
	assert.Error(t, err)
}

func TestServer_PersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t, config.EngineSQLite)
	cfg.Server.HTTPAddress = ""

	srv, err := New(cfg, nil)
	require.NoError(t, err)
	srv.Start()

	ctx := context.Background()
	c, err := client.Dial(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	require.NoError(t, c.CreateProposal(ctx, 7, "persisted"))
	require.NoError(t, c.EndProposal(ctx, 7))
	c.Close()
	require.NoError(t, srv.Stop())

	srv, err = New(cfg, nil)
	require.NoError(t, err)
	srv.Start()
	defer srv.Stop()

	c, err = client.Dial(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer c.Close()

	err = c.Vote(ctx, 7, ballot.Pass)
	assert.ErrorIs(t, err, ballot.ErrProposalClosed)
	assert.Empty(t, srv.HTTPAddress())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	cfg := testConfig(t, "etcd")
	_, err = New(cfg, nil)
	assert.ErrorContains(t, err, "unknown engine")

	cfg = testConfig(t, config.EngineMemory)
	cfg.Server.ListenAddress = "not-an-address"
	_, err = New(cfg, nil)
	assert.True(t, err != nil && strings.Contains(err.Error(), "failed to listen"))
}
