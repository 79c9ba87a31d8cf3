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

package reliability

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voteStore/pkg/log"
)

// HealthChecker 健康检查器接口
type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
}

// CheckerFunc adapts a function into a HealthChecker
type CheckerFunc struct {
	name  string
	check func(ctx context.Context) error
}

// NewCheckerFunc 创建函数式健康检查器
func NewCheckerFunc(name string, check func(ctx context.Context) error) *CheckerFunc {
	return &CheckerFunc{name: name, check: check}
}

func (c *CheckerFunc) Name() string                    { return c.name }
func (c *CheckerFunc) Check(ctx context.Context) error { return c.check(ctx) }

// HealthManager backs the standard grpc.health.v1 service. The serving
// status of the whole server ("") and of each watched service name follows
// the registered checkers.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	services []string
	server   *health.Server
	stopped  bool
}

// NewHealthManager 创建健康管理器；services 为需同步状态的 gRPC 服务名
func NewHealthManager(services ...string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		services: services,
		server:   health.NewServer(),
	}
}

// RegisterChecker 注册健康检查器
func (hm *HealthManager) RegisterChecker(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[checker.Name()] = checker
}

// Check 执行检查；serviceName 为空时检查全部
func (hm *HealthManager) Check(ctx context.Context, serviceName string) healthpb.HealthCheckResponse_ServingStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if serviceName != "" {
		checker, ok := hm.checkers[serviceName]
		if !ok {
			return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
		}
		if err := checker.Check(ctx); err != nil {
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
		return healthpb.HealthCheckResponse_SERVING
	}

	for name, checker := range hm.checkers {
		if err := checker.Check(ctx); err != nil {
			log.Warn("Health check failed",
				log.String("checker", name),
				log.Err(err),
				log.Component("health"))
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Refresh 执行一次全部检查并同步 gRPC 健康状态
func (hm *HealthManager) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := hm.Check(ctx, "")

	hm.mu.RLock()
	defer hm.mu.RUnlock()
	if hm.stopped {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	hm.setAll(st)
	return st
}

// Run refreshes every interval until ctx is done
func (hm *HealthManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hm.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hm.Refresh(ctx)
		}
	}
}

// Shutdown 永久置为 NOT_SERVING，之后 Refresh 不再恢复
func (hm *HealthManager) Shutdown() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.stopped = true
	hm.setAll(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (hm *HealthManager) setAll(st healthpb.HealthCheckResponse_ServingStatus) {
	hm.server.SetServingStatus("", st)
	for _, svc := range hm.services {
		hm.server.SetServingStatus(svc, st)
	}
}

// GetServer 获取 gRPC 健康检查服务器
func (hm *HealthManager) GetServer() *health.Server {
	return hm.server
}
