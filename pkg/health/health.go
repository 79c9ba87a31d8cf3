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

// Package health serves HTTP health, readiness and liveness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// HealthReport represents the overall health status
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker is an interface for health checks
type Checker interface {
	// Check returns status and message; a non-nil error means unhealthy
	Check(ctx context.Context) (Status, string, error)
	Name() string
}

// HealthServer aggregates checkers and serves the probe endpoints
type HealthServer struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
	draining atomic.Bool

	cachedReport    *HealthReport
	cacheValidUntil time.Time
	cacheDuration   time.Duration

	server *http.Server
	closed bool
}

// NewHealthServer creates a new health check server
func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		logger:        logger,
		cacheDuration: 5 * time.Second,
	}
}

// SetCacheDuration 设置检查结果缓存时间，0 表示不缓存
func (hs *HealthServer) SetCacheDuration(d time.Duration) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.cacheDuration = d
	hs.cachedReport = nil
}

// RegisterChecker adds a health checker
func (hs *HealthServer) RegisterChecker(checker Checker) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checkers = append(hs.checkers, checker)
	hs.cachedReport = nil
	hs.logger.Info("registered health checker", zap.String("name", checker.Name()))
}

// SetDraining marks the server as shutting down; readiness fails from then on
func (hs *HealthServer) SetDraining() {
	hs.draining.Store(true)
}

// Check performs all health checks, reusing a recent report when cached
func (hs *HealthServer) Check(ctx context.Context) *HealthReport {
	hs.mu.RLock()
	if hs.cachedReport != nil && time.Now().Before(hs.cacheValidUntil) {
		cached := hs.cachedReport
		hs.mu.RUnlock()
		return cached
	}
	hs.mu.RUnlock()

	hs.mu.Lock()
	defer hs.mu.Unlock()

	report := &HealthReport{
		Status:    StatusHealthy,
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]CheckResult, len(hs.checkers)),
	}

	for _, checker := range hs.checkers {
		start := time.Now()
		status, message, err := checker.Check(ctx)
		if err != nil {
			status = StatusUnhealthy
			message = err.Error()
		}

		report.Checks[checker.Name()] = CheckResult{
			Status:  status,
			Message: message,
			Latency: time.Since(start).Milliseconds(),
		}

		switch {
		case status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case status == StatusDegraded && report.Status != StatusUnhealthy:
			report.Status = StatusDegraded
		}
	}

	if report.Status == StatusUnhealthy {
		hs.logger.Warn("health check failed", zap.Any("checks", report.Checks))
	}

	hs.cachedReport = report
	hs.cacheValidUntil = time.Now().Add(hs.cacheDuration)
	return report
}

// ServeHTTP implements http.Handler for the /health endpoint
func (hs *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	report := hs.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK) // degraded 也返回 200
	}
	json.NewEncoder(w).Encode(report)
}

// ReadinessHandler returns 200 when the store is usable and the server is not draining
func (hs *HealthServer) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hs.draining.Load() {
			http.Error(w, "Shutting Down", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if hs.Check(ctx).Status == StatusUnhealthy {
			http.Error(w, "Not Ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready\n"))
	}
}

// LivenessHandler only reports that the process is responsive
func (hs *HealthServer) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Alive\n"))
	}
}

// Handler returns the probe routes
func (hs *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", hs)
	mux.HandleFunc("/readiness", hs.ReadinessHandler())
	mux.HandleFunc("/liveness", hs.LivenessHandler())
	return mux
}

// Start serves the probe endpoints on addr, blocking until Shutdown
func (hs *HealthServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           hs.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	hs.mu.Lock()
	if hs.closed {
		hs.mu.Unlock()
		return nil
	}
	hs.server = srv
	hs.mu.Unlock()

	hs.logger.Info("starting health check server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the probe server started by Start
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	hs.mu.Lock()
	hs.closed = true
	srv := hs.server
	hs.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Pinger is satisfied by storage.Backend
type Pinger interface {
	Ping() error
	Name() string
}

// StoreChecker checks that the storage backend answers
type StoreChecker struct {
	name    string
	backend Pinger
}

// NewStoreChecker creates a store health checker
func NewStoreChecker(name string, backend Pinger) *StoreChecker {
	return &StoreChecker{name: name, backend: backend}
}

func (sc *StoreChecker) Name() string {
	return sc.name
}

func (sc *StoreChecker) Check(ctx context.Context) (Status, string, error) {
	if err := sc.backend.Ping(); err != nil {
		return StatusUnhealthy, "", fmt.Errorf("%s store check failed: %w", sc.backend.Name(), err)
	}
	return StatusHealthy, sc.backend.Name() + " store is operational", nil
}

// DiskSpaceChecker checks available disk space under the data directory
type DiskSpaceChecker struct {
	name          string
	path          string
	minFreeGB     float64
	warnThreshold float64 // used percentage, e.g. 80
}

// NewDiskSpaceChecker creates a disk space checker
func NewDiskSpaceChecker(name string, path string, minFreeGB float64, warnThreshold float64) *DiskSpaceChecker {
	return &DiskSpaceChecker{
		name:          name,
		path:          path,
		minFreeGB:     minFreeGB,
		warnThreshold: warnThreshold,
	}
}

func (dsc *DiskSpaceChecker) Name() string {
	return dsc.name
}

func (dsc *DiskSpaceChecker) Check(ctx context.Context) (Status, string, error) {
	totalGB, freeGB, usedPercent, err := getDiskUsage(dsc.path)
	if err != nil {
		return StatusUnhealthy, "", fmt.Errorf("failed to get disk usage: %w", err)
	}

	message := fmt.Sprintf("%.1fGB free of %.1fGB (%.1f%% used)", freeGB, totalGB, usedPercent)
	if freeGB < dsc.minFreeGB {
		return StatusUnhealthy, "disk space critical: " + message, nil
	}
	if usedPercent > dsc.warnThreshold {
		return StatusDegraded, "disk space low: " + message, nil
	}
	return StatusHealthy, message, nil
}
