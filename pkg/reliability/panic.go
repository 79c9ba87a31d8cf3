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
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"voteStore/pkg/log"
)

// PanicHandler is called after a recovered panic has been logged
type PanicHandler func(goroutineName string, panicValue any, stack []byte)

var panicCount atomic.Int64

// PanicGuard recovers panics in the goroutines it runs and reports them to
// its own handler, so two servers in one process never share a hook.
// A nil guard only logs and counts.
type PanicGuard struct {
	handler PanicHandler
}

// NewPanicGuard 创建 PanicGuard，h 可为 nil
func NewPanicGuard(h PanicHandler) *PanicGuard {
	return &PanicGuard{handler: h}
}

// Recover 恢复 panic，需直接 defer 调用：defer g.Recover("name")
func (g *PanicGuard) Recover(goroutineName string) {
	if r := recover(); r != nil {
		g.handle(goroutineName, r)
	}
}

// Go 启动 goroutine，panic 被记录而不会终止进程
func (g *PanicGuard) Go(name string, fn func()) {
	go func() {
		defer g.Recover(name)
		fn()
	}()
}

// GoErr runs fn in a goroutine and delivers its error (or a recovered
// panic as an error) on the returned channel, which is closed afterwards.
func (g *PanicGuard) GoErr(name string, fn func() error) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer func() {
			if r := recover(); r != nil {
				g.handle(name, r)
				errc <- fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		if err := fn(); err != nil {
			errc <- fmt.Errorf("%s: %w", name, err)
		}
	}()
	return errc
}

func (g *PanicGuard) handle(goroutineName string, r any) {
	panicCount.Add(1)
	stack := debug.Stack()

	log.Error("Panic recovered",
		log.Goroutine(goroutineName),
		log.String("panic_value", fmt.Sprintf("%v", r)),
		log.String("stack", string(stack)),
		log.Component("panic-recovery"))

	if g != nil && g.handler != nil {
		g.handler(goroutineName, r, stack)
	}
}

// RecoverPanic 恢复 panic（无 handler），需直接 defer 调用：defer RecoverPanic("name")
func RecoverPanic(goroutineName string) {
	if r := recover(); r != nil {
		(*PanicGuard)(nil).handle(goroutineName, r)
	}
}

// SafeGo 等同于 nil guard 的 Go
func SafeGo(name string, fn func()) {
	(*PanicGuard)(nil).Go(name, fn)
}

// SafeGoErr 等同于 nil guard 的 GoErr
func SafeGoErr(name string, fn func() error) <-chan error {
	return (*PanicGuard)(nil).GoErr(name, fn)
}

// GetPanicCount 获取 panic 计数
func GetPanicCount() int64 {
	return panicCount.Load()
}

// ResetPanicCount 重置 panic 计数
func ResetPanicCount() {
	panicCount.Store(0)
}
