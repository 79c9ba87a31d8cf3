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

// Package server assembles storage, services and listeners into one
// voteStore process and owns its shutdown sequence.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apihttp "voteStore/api/http"
	"voteStore/api/rpc"
	"voteStore/internal/kvstore"
	"voteStore/internal/service"
	"voteStore/internal/storage"
	"voteStore/pkg/config"
	grpcx "voteStore/pkg/grpc"
	"voteStore/pkg/health"
	"voteStore/pkg/log"
	"voteStore/pkg/metrics"
	"voteStore/pkg/reliability"
)

// healthRefreshInterval gRPC 健康状态刷新间隔
const healthRefreshInterval = 10 * time.Second

// Server is one running voteStore process
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	backend  storage.Backend
	service  *service.Service
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	grpcSrv  *grpc.Server
	listener net.Listener
	httpAPI  *apihttp.Server
	httpLis  net.Listener

	metricsSrv *metrics.MetricsServer
	healthSrv  *health.HealthServer

	// 可靠性组件
	shutdownMgr *reliability.GracefulShutdown
	healthMgr   *reliability.HealthManager
	guard       *reliability.PanicGuard
	stopHealth  context.CancelFunc
	serveErrs   chan error
}

// New opens storage and binds the listeners. Nothing is served until Start.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := storage.Open(cfg.Server.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Server.Storage.Engine, err)
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		backend:     backend,
		registry:    prometheus.NewRegistry(),
		shutdownMgr: reliability.NewGracefulShutdown(cfg.Server.Reliability.ShutdownTimeout),
		healthMgr:   reliability.NewHealthManager(rpc.ServiceName),
		healthSrv:   health.NewHealthServer(logger.Named("health")),
		serveErrs:   make(chan error, 4),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.New(s.registry)
	s.guard = reliability.NewPanicGuard(func(name string, _ any, _ []byte) {
		s.metrics.RecordPanicRecovered(name)
	})
	s.shutdownMgr.SetPanicGuard(s.guard)

	s.service = service.NewFromBackend(backend,
		service.Config{
			MaxListLimit:        cfg.Server.Limits.MaxListLimit,
			MaxDescriptionBytes: cfg.Server.Limits.MaxDescriptionBytes,
		},
		logger.Named("service"),
		s.metrics,
		kvstore.WithValidator(reliability.NewDataValidator(cfg.Server.Reliability.EnableCRC)),
		kvstore.WithObserver(s.metrics.ObserveStorage),
	)

	if err := s.bind(); err != nil {
		s.closeListeners()
		backend.Close()
		return nil, err
	}

	s.registerHealth()
	s.registerShutdownHooks()
	return s, nil
}

// bind 创建 gRPC / HTTP 监听器与服务
func (s *Server) bind() error {
	srv := s.cfg.Server

	lis, err := net.Listen("tcp", srv.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.ListenAddress, err)
	}
	s.listener = lis

	s.grpcSrv = grpcx.BuildServer(s.cfg, s.logger.Named("grpc"), s.metrics)
	rpc.RegisterVoteServiceServer(s.grpcSrv, rpc.NewServer(s.service, s.logger.Named("rpc")))
	if srv.Reliability.EnableHealthCheck {
		healthpb.RegisterHealthServer(s.grpcSrv, s.healthMgr.GetServer())
	}

	if srv.HTTPAddress != "" {
		httpLis, err := net.Listen("tcp", srv.HTTPAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", srv.HTTPAddress, err)
		}
		s.httpLis = httpLis
		s.httpAPI = apihttp.NewServer(apihttp.Config{
			Service:  s.service,
			Address:  srv.HTTPAddress,
			Logger:   s.logger.Named("http"),
			Observer: s.metrics.RecordHTTPRequest,
		})
	}

	if srv.Monitoring.EnablePrometheus && srv.Monitoring.PrometheusPort > 0 {
		addr := ":" + strconv.Itoa(srv.Monitoring.PrometheusPort)
		s.metricsSrv = metrics.NewMetricsServer(addr, s.registry, s.logger.Named("metrics"))
	}
	return nil
}

func (s *Server) registerHealth() {
	checker := health.NewStoreChecker("storage", s.backend)
	s.healthSrv.RegisterChecker(checker)
	if s.cfg.Server.Storage.Engine != config.EngineMemory {
		s.healthSrv.RegisterChecker(health.NewDiskSpaceChecker("disk", s.cfg.Server.Storage.DataDir, 1, 90))
	}

	s.healthMgr.RegisterChecker(reliability.NewCheckerFunc("storage", func(ctx context.Context) error {
		_, _, err := checker.Check(ctx)
		return err
	}))
}

// registerShutdownHooks 注册分阶段关闭钩子
func (s *Server) registerShutdownHooks() {
	s.shutdownMgr.RegisterHook(reliability.PhaseStopAccepting, func(ctx context.Context) error {
		s.healthMgr.Shutdown()
		s.healthSrv.SetDraining()
		return nil
	})

	s.shutdownMgr.RegisterHook(reliability.PhaseDrainConnections, func(ctx context.Context) error {
		drainCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.Reliability.DrainTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			s.grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-drainCtx.Done():
			log.Warn("Drain timeout, forcing gRPC stop", log.Component("server"))
			s.grpcSrv.Stop()
		}
		return nil
	})

	s.shutdownMgr.RegisterHook(reliability.PhaseDrainConnections, func(ctx context.Context) error {
		if s.httpAPI == nil {
			return nil
		}
		drainCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.Reliability.DrainTimeout)
		defer cancel()
		return s.httpAPI.Stop(drainCtx)
	})

	s.shutdownMgr.RegisterHook(reliability.PhasePersistState, func(ctx context.Context) error {
		// zap 在 stdout/stderr 上 Sync 可能返回 EINVAL，忽略
		_ = s.logger.Sync()
		return nil
	})

	s.shutdownMgr.RegisterHook(reliability.PhaseCloseResources, func(ctx context.Context) error {
		if s.stopHealth != nil {
			s.stopHealth()
		}
		var errs []error
		if s.metricsSrv != nil {
			errs = append(errs, s.metricsSrv.Shutdown(ctx))
		}
		errs = append(errs, s.healthSrv.Shutdown(ctx))
		if err := s.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		return errors.Join(errs...)
	})
}

// Start serves every configured listener in the background
func (s *Server) Start() {
	srv := s.cfg.Server

	ctx, cancel := context.WithCancel(context.Background())
	s.stopHealth = cancel
	if srv.Reliability.EnableHealthCheck {
		s.guard.Go("grpc-health-refresh", func() {
			s.healthMgr.Run(ctx, healthRefreshInterval)
		})
	}

	s.serve("grpc", func() error { return s.grpcSrv.Serve(s.listener) })
	if s.httpAPI != nil {
		s.serve("http", func() error { return s.httpAPI.Serve(s.httpLis) })
	}
	if s.metricsSrv != nil {
		s.serve("metrics", s.metricsSrv.Start)
	}
	if srv.Reliability.EnableHealthCheck && srv.Monitoring.HealthPort > 0 {
		addr := ":" + strconv.Itoa(srv.Monitoring.HealthPort)
		s.serve("health", func() error { return s.healthSrv.Start(addr) })
	}

	log.Info("voteStore server started",
		log.String("grpc_address", s.Address()),
		log.String("http_address", srv.HTTPAddress),
		log.Engine(s.backend.Name()),
		log.Bool("crc_validation", srv.Reliability.EnableCRC),
		log.Bool("panic_recovery", srv.Reliability.EnablePanicRecovery),
		log.Bool("health_check", srv.Reliability.EnableHealthCheck),
		log.Component("server"))
}

// serve 后台运行 fn；fn 失败时触发关闭
func (s *Server) serve(name string, fn func() error) {
	errc := s.guard.GoErr(name, fn)
	go func() {
		if err, ok := <-errc; ok && err != nil {
			log.Error("Server failed", log.String("server", name), log.Err(err), log.Component("server"))
			s.serveErrs <- err
			s.shutdownMgr.Trigger()
		}
	}()
}

// Run starts the server and blocks until SIGINT/SIGTERM or a serve error,
// then shuts down. The first serve error, if any, is returned.
func (s *Server) Run() error {
	s.shutdownMgr.ListenSignals()
	s.Start()
	shutdownErr := s.shutdownMgr.Wait()

	select {
	case err := <-s.serveErrs:
		return err
	default:
		return shutdownErr
	}
}

// Stop 触发优雅关闭并等待完成
func (s *Server) Stop() error {
	log.Info("Triggering graceful shutdown", log.Component("server"))
	return s.shutdownMgr.Shutdown()
}

// Address 返回 gRPC 监听地址
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// HTTPAddress 返回 HTTP 网关监听地址，未启用时为空
func (s *Server) HTTPAddress() string {
	if s.httpLis != nil {
		return s.httpLis.Addr().String()
	}
	return ""
}

func (s *Server) closeListeners() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.httpLis != nil {
		s.httpLis.Close()
	}
}
