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

// Package grpc builds the gRPC server that hosts VoteService.
package grpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"voteStore/pkg/config"
	"voteStore/pkg/metrics"
)

// ServerOptionsBuilder builds gRPC server options from configuration
type ServerOptionsBuilder struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewServerOptionsBuilder creates a server options builder
func NewServerOptionsBuilder(cfg *config.Config, logger *zap.Logger) *ServerOptionsBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerOptionsBuilder{
		cfg:    cfg,
		logger: logger,
	}
}

// WithMetrics sets the metrics collector for the builder
func (b *ServerOptionsBuilder) WithMetrics(m *metrics.Metrics) *ServerOptionsBuilder {
	b.metrics = m
	return b
}

// Build builds gRPC server options
func (b *ServerOptionsBuilder) Build() []grpc.ServerOption {
	g := b.cfg.Server.GRPC
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(g.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(g.MaxSendMsgSize),
		grpc.MaxConcurrentStreams(g.MaxConcurrentStreams),

		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:                  g.KeepaliveTime,
			Timeout:               g.KeepaliveTimeout,
			MaxConnectionIdle:     g.MaxConnectionIdle,
			MaxConnectionAge:      g.MaxConnectionAge,
			MaxConnectionAgeGrace: g.MaxConnectionAgeGrace,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             g.KeepaliveTime,
			PermitWithoutStream: true,
		}),
	}

	// VoteService 只有一元 RPC
	if interceptors := b.buildUnaryInterceptors(); len(interceptors) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(interceptors...))
	}
	return opts
}

// buildUnaryInterceptors builds the unary interceptor chain
// Order: Metrics -> Request ID -> Panic Recovery -> Logging -> Connection Tracking -> Rate Limiting -> handler
func (b *ServerOptionsBuilder) buildUnaryInterceptors() []grpc.UnaryServerInterceptor {
	var interceptors []grpc.UnaryServerInterceptor
	srv := b.cfg.Server

	// 1. Metrics (first, to measure everything including panic recovery overhead)
	if srv.Monitoring.EnablePrometheus && b.metrics != nil {
		mi := metrics.NewMetricsInterceptor(b.metrics)
		interceptors = append(interceptors, mi.UnaryServerInterceptor())
	}

	// 2. Request ID
	interceptors = append(interceptors, RequestIDInterceptor())

	// 3. Panic Recovery
	if srv.Reliability.EnablePanicRecovery {
		pri := NewPanicRecoveryInterceptor(b.logger, b.metrics)
		interceptors = append(interceptors, pri.UnaryServerInterceptor())
	}

	// 4. Slow request logging
	if srv.Monitoring.SlowRequestThreshold > 0 {
		li := NewLoggingInterceptor(srv.Monitoring.SlowRequestThreshold, b.logger)
		interceptors = append(interceptors, li.UnaryServerInterceptor())
	}

	// 5. Connection tracking
	if srv.Limits.MaxConnections > 0 {
		ct := NewConnectionTracker(srv.Limits.MaxConnections, b.logger, b.metrics)
		interceptors = append(interceptors, ct.UnaryServerInterceptor())
	}

	// 6. Rate limiting (close to business logic, quickly rejects excessive requests)
	if srv.GRPC.EnableRateLimit && srv.GRPC.RateLimitQPS > 0 && srv.GRPC.RateLimitBurst > 0 {
		rl := NewRateLimiter(srv.GRPC.RateLimitQPS, srv.GRPC.RateLimitBurst, b.logger, b.metrics)
		interceptors = append(interceptors, rl.UnaryServerInterceptor())
	}

	return interceptors
}

// BuildServer builds a gRPC server with all options configured
func BuildServer(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *grpc.Server {
	builder := NewServerOptionsBuilder(cfg, logger).WithMetrics(m)
	opts := builder.Build()

	builder.logger.Info("creating gRPC server",
		zap.Int("max_recv_msg_size", cfg.Server.GRPC.MaxRecvMsgSize),
		zap.Int("max_send_msg_size", cfg.Server.GRPC.MaxSendMsgSize),
		zap.Uint32("max_concurrent_streams", cfg.Server.GRPC.MaxConcurrentStreams),
		zap.Duration("keepalive_time", cfg.Server.GRPC.KeepaliveTime),
		zap.Bool("enable_rate_limit", cfg.Server.GRPC.EnableRateLimit),
		zap.Int("max_connections", cfg.Server.Limits.MaxConnections),
		zap.Bool("enable_panic_recovery", cfg.Server.Reliability.EnablePanicRecovery),
		zap.Duration("slow_request_threshold", cfg.Server.Monitoring.SlowRequestThreshold))

	return grpc.NewServer(opts...)
}
