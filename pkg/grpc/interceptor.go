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

package grpc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"voteStore/pkg/log"
	"voteStore/pkg/metrics"
)

// RequestIDKey 请求 ID 的 metadata 键（与 HTTP 的 X-Request-ID 对应）
const RequestIDKey = "x-request-id"

type requestIDCtxKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDInterceptor
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// RequestIDInterceptor 为每个请求分配 ID，客户端传入时沿用，并回写到响应头
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDKey); len(v) > 0 && v[0] != "" {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		// 回写失败只影响客户端可见性
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))

		return handler(context.WithValue(ctx, requestIDCtxKey{}, id), req)
	}
}

// ConnectionTracker caps the number of requests being served at once
type ConnectionTracker struct {
	maxConnections int64
	activeConns    atomic.Int64
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewConnectionTracker creates a connection tracker; m may be nil
func NewConnectionTracker(maxConnections int, logger *zap.Logger, m *metrics.Metrics) *ConnectionTracker {
	return &ConnectionTracker{
		maxConnections: int64(maxConnections),
		logger:         logger,
		metrics:        m,
	}
}

// Track reserves a slot, or fails with ResourceExhausted when none is left
func (ct *ConnectionTracker) Track() error {
	current := ct.activeConns.Add(1)
	if current > ct.maxConnections {
		ct.activeConns.Add(-1) // Rollback count
		ct.logger.Warn("connection limit reached",
			zap.Int64("current", current-1),
			zap.Int64("max", ct.maxConnections))
		if ct.metrics != nil {
			ct.metrics.RecordConnectionRejected("limit_exceeded")
		}
		return status.Errorf(codes.ResourceExhausted,
			"connection limit reached: %d/%d", current-1, ct.maxConnections)
	}
	if ct.metrics != nil {
		ct.metrics.TotalConnections.Inc()
		ct.metrics.ActiveConnections.Set(float64(current))
	}
	return nil
}

// Untrack releases a slot
func (ct *ConnectionTracker) Untrack() {
	current := ct.activeConns.Add(-1)
	if ct.metrics != nil {
		ct.metrics.ActiveConnections.Set(float64(current))
	}
}

// Count returns the current active count
func (ct *ConnectionTracker) Count() int64 {
	return ct.activeConns.Load()
}

// UnaryServerInterceptor returns a unary RPC connection tracking interceptor
func (ct *ConnectionTracker) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := ct.Track(); err != nil {
			return nil, err
		}
		defer ct.Untrack()

		return handler(ctx, req)
	}
}

// RateLimiter implements a global token bucket over all RPCs
// Example: NewRateLimiter(1000, 2000, logger, nil) means average 1000 QPS, max burst 2000 requests
type RateLimiter struct {
	globalLimiter *rate.Limiter
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewRateLimiter creates a rate limiter; m may be nil
func NewRateLimiter(qps int, burst int, logger *zap.Logger, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(qps), burst),
		logger:        logger,
		metrics:       m,
	}
}

// UnaryServerInterceptor returns a unary RPC rate limiting interceptor
func (rl *RateLimiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !rl.globalLimiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				log.Method(info.FullMethod),
				log.RemoteAddr(extractClientInfo(ctx)))
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(info.FullMethod)
			}
			return nil, status.Errorf(codes.ResourceExhausted,
				"rate limit exceeded for method: %s", info.FullMethod)
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor logs slow requests to help identify performance bottlenecks
type LoggingInterceptor struct {
	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewLoggingInterceptor creates a slow request logging interceptor
// Example: NewLoggingInterceptor(100*time.Millisecond, logger) logs requests exceeding 100ms
func NewLoggingInterceptor(slowThreshold time.Duration, logger *zap.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{
		slowThreshold: slowThreshold,
		logger:        logger,
	}
}

// UnaryServerInterceptor returns a unary RPC logging interceptor
func (li *LoggingInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		if duration > li.slowThreshold {
			fields := []zap.Field{
				log.Method(info.FullMethod),
				log.Duration("duration", duration),
				log.RemoteAddr(extractClientInfo(ctx)),
				log.RequestID(RequestIDFromContext(ctx)),
			}
			if err != nil {
				fields = append(fields, log.Err(err))
			}
			li.logger.Warn("slow request detected", fields...)
		}

		return resp, err
	}
}

// PanicRecoveryInterceptor turns a handler panic into codes.Internal
type PanicRecoveryInterceptor struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewPanicRecoveryInterceptor creates a panic recovery interceptor; m may be nil
func NewPanicRecoveryInterceptor(logger *zap.Logger, m *metrics.Metrics) *PanicRecoveryInterceptor {
	return &PanicRecoveryInterceptor{
		logger:  logger,
		metrics: m,
	}
}

// UnaryServerInterceptor returns a unary RPC panic recovery interceptor
func (pri *PanicRecoveryInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				pri.logger.Error("panic recovered in unary RPC",
					log.Method(info.FullMethod),
					log.RemoteAddr(extractClientInfo(ctx)),
					log.RequestID(RequestIDFromContext(ctx)),
					log.Any("panic", r),
					zap.Stack("stack"))
				if pri.metrics != nil {
					pri.metrics.RecordPanicRecovered(info.FullMethod)
				}
				err = status.Errorf(codes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

// extractClientInfo returns the peer address, or the user agent when unknown
func extractClientInfo(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if userAgent := md.Get("user-agent"); len(userAgent) > 0 {
			return fmt.Sprintf("user-agent:%s", userAgent[0])
		}
	}

	return "unknown"
}
