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

package log

import (
	"time"

	"go.uber.org/zap"
)

// 常用字段构造函数

func String(key, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }
func Uint64(key string, val uint64) zap.Field { return zap.Uint64(key, val) }
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// Err 错误字段
func Err(err error) zap.Field {
	return zap.Error(err)
}

// 业务相关字段

// ExamID 考试 ID
func ExamID(id uint64) zap.Field {
	return zap.Uint64("exam_id", id)
}

// ProposalID 提案 ID
func ProposalID(id uint64) zap.Field {
	return zap.Uint64("proposal_id", id)
}

// Choice 投票选项
func Choice(choice string) zap.Field {
	return zap.String("choice", choice)
}

// ErrorKind 失败类型（NOT_FOUND、PROPOSAL_CLOSED 等）
func ErrorKind(kind string) zap.Field {
	return zap.String("error_kind", kind)
}

// Operation 操作名
func Operation(op string) zap.Field {
	return zap.String("operation", op)
}

// Bucket 存储 bucket
func Bucket(name string) zap.Field {
	return zap.String("bucket", name)
}

// Engine 存储引擎
func Engine(name string) zap.Field {
	return zap.String("engine", name)
}

// Method gRPC / HTTP 方法
func Method(method string) zap.Field {
	return zap.String("method", method)
}

// RemoteAddr 远程地址
func RemoteAddr(addr string) zap.Field {
	return zap.String("remote_addr", addr)
}

// Component 组件名
func Component(name string) zap.Field {
	return zap.String("component", name)
}

// Phase 阶段
func Phase(phase string) zap.Field {
	return zap.String("phase", phase)
}

// Goroutine goroutine 名称
func Goroutine(name string) zap.Field {
	return zap.String("goroutine", name)
}

// RequestID 请求 ID
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}
