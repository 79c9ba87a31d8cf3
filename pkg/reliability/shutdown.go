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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"voteStore/pkg/log"
)

// ShutdownHook 关闭钩子函数类型
type ShutdownHook func(ctx context.Context) error

// ShutdownPhase 关闭阶段
type ShutdownPhase int

const (
	// PhaseStopAccepting 停止接受新请求（健康检查置为 NOT_SERVING）
	PhaseStopAccepting ShutdownPhase = iota
	// PhaseDrainConnections 等待在途请求完成
	PhaseDrainConnections
	// PhasePersistState 刷盘
	PhasePersistState
	// PhaseCloseResources 关闭存储与日志
	PhaseCloseResources
)

var phaseNames = map[ShutdownPhase]string{
	PhaseStopAccepting:    "Stop Accepting",
	PhaseDrainConnections: "Drain Connections",
	PhasePersistState:     "Persist State",
	PhaseCloseResources:   "Close Resources",
}

func (p ShutdownPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Phase %d", int(p))
}

// GracefulShutdown runs registered hooks phase by phase, in the order the
// phases are declared. Hooks of one phase run concurrently; a failing phase
// does not stop the later ones.
type GracefulShutdown struct {
	mu      sync.RWMutex
	hooks   map[ShutdownPhase][]ShutdownHook
	timeout time.Duration

	trigger     chan struct{}
	triggerOnce sync.Once
	once        sync.Once
	done        chan struct{}
	signals     chan os.Signal
	finished    chan struct{}
	guard       *PanicGuard
}

// NewGracefulShutdown 创建优雅关闭管理器
func NewGracefulShutdown(timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{
		hooks:    make(map[ShutdownPhase][]ShutdownHook),
		timeout:  timeout,
		trigger:  make(chan struct{}),
		done:     make(chan struct{}),
		signals:  make(chan os.Signal, 1),
		finished: make(chan struct{}),
	}
}

// SetPanicGuard routes panics in hooks to g
func (gs *GracefulShutdown) SetPanicGuard(g *PanicGuard) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.guard = g
}

// ListenSignals 监听 SIGTERM / SIGINT
func (gs *GracefulShutdown) ListenSignals() {
	signal.Notify(gs.signals, syscall.SIGTERM, syscall.SIGINT)
}

// RegisterHook 注册关闭钩子
func (gs *GracefulShutdown) RegisterHook(phase ShutdownPhase, hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks[phase] = append(gs.hooks[phase], hook)
}

// Trigger requests a shutdown without a signal, e.g. after a fatal server error
func (gs *GracefulShutdown) Trigger() {
	gs.triggerOnce.Do(func() { close(gs.trigger) })
}

// Wait blocks until a signal or Trigger, then runs Shutdown
func (gs *GracefulShutdown) Wait() error {
	select {
	case sig := <-gs.signals:
		log.Info("Received shutdown signal",
			log.String("signal", sig.String()),
			log.Component("shutdown"))
	case <-gs.trigger:
		log.Info("Shutdown triggered", log.Component("shutdown"))
	}
	signal.Stop(gs.signals)
	return gs.Shutdown()
}

// Shutdown runs every phase once; later calls wait for the first to finish
// and return nil.
func (gs *GracefulShutdown) Shutdown() error {
	first := false
	gs.once.Do(func() {
		first = true
		close(gs.done)
	})
	if !first {
		<-gs.finished
		return nil
	}
	defer close(gs.finished)

	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	var errs []error
	for _, phase := range []ShutdownPhase{
		PhaseStopAccepting,
		PhaseDrainConnections,
		PhasePersistState,
		PhaseCloseResources,
	} {
		log.Info("Shutdown phase started", log.Phase(phase.String()), log.Component("shutdown"))

		gs.mu.RLock()
		hooks := append([]ShutdownHook(nil), gs.hooks[phase]...)
		gs.mu.RUnlock()

		if err := gs.executeHooks(ctx, hooks, phase); err != nil {
			log.Error("Shutdown phase failed",
				log.Phase(phase.String()),
				log.Err(err),
				log.Component("shutdown"))
			errs = append(errs, err)
		}
	}

	log.Info("Graceful shutdown completed", log.Component("shutdown"))
	return errors.Join(errs...)
}

// executeHooks 并发执行同一阶段的钩子
func (gs *GracefulShutdown) executeHooks(ctx context.Context, hooks []ShutdownHook, phase ShutdownPhase) error {
	if len(hooks) == 0 {
		return nil
	}

	gs.mu.RLock()
	guard := gs.guard
	gs.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(hooks))

	for i, hook := range hooks {
		wg.Add(1)
		go func(idx int, h ShutdownHook) {
			defer wg.Done()
			defer guard.Recover(fmt.Sprintf("shutdown-hook-%d-%d", int(phase), idx))

			if err := h(ctx); err != nil {
				errChan <- fmt.Errorf("hook %d: %w", idx, err)
			}
		}(i, hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errChan)
		var errs []error
		for err := range errChan {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("phase %s: %w", phase, errors.Join(errs...))
		}
		return nil

	case <-ctx.Done():
		return fmt.Errorf("phase %s timeout: %w", phase, ctx.Err())
	}
}

// Done is closed once shutdown has started
func (gs *GracefulShutdown) Done() <-chan struct{} {
	return gs.done
}

// IsShuttingDown 检查是否正在关闭
func (gs *GracefulShutdown) IsShuttingDown() bool {
	select {
	case <-gs.done:
		return true
	default:
		return false
	}
}
