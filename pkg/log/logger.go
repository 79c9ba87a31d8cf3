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
	"os"
	"sync"

	"voteStore/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// globalLogger 全局日志实例
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Logger 结构化日志器
type Logger struct {
	zap    *zap.Logger
	sugar  *zap.SugaredLogger
	config *Config
}

// Config 日志配置
type Config struct {
	// Level 日志级别: debug, info, warn, error, dpanic, panic, fatal
	Level string

	// OutputPaths 日志输出路径，stdout/stderr 或文件路径
	OutputPaths []string

	// ErrorOutputPaths 错误日志输出路径（只记录 Error 及以上）
	ErrorOutputPaths []string

	// Encoding 编码格式: json 或 console
	Encoding string

	// Development 开发模式
	Development bool

	// DisableCaller 是否禁用调用者信息
	DisableCaller bool

	// DisableStacktrace 是否禁用堆栈跟踪
	DisableStacktrace bool

	// EnableColor 是否启用颜色输出（仅 console 编码）
	EnableColor bool

	// Rotation 文件输出的轮转参数
	Rotation RotationConfig
}

// RotationConfig 文件日志轮转配置（由 lumberjack 实现）
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig 默认配置
var DefaultConfig = &Config{
	Level:            "info",
	OutputPaths:      []string{"stdout"},
	ErrorOutputPaths: []string{"stderr"},
	Encoding:         "console",
	EnableColor:      true,
	Rotation:         RotationConfig{MaxSizeMB: 100, MaxBackups: 10, MaxAgeDays: 7},
}

// ProductionConfig 生产环境配置
var ProductionConfig = &Config{
	Level:             "info",
	OutputPaths:       []string{"stdout", "/var/log/votestore/app.log"},
	ErrorOutputPaths:  []string{"stderr", "/var/log/votestore/error.log"},
	Encoding:          "json",
	DisableStacktrace: true,
	Rotation:          RotationConfig{MaxSizeMB: 100, MaxBackups: 10, MaxAgeDays: 7, Compress: true},
}

// NewLogger 创建新的日志器
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Encoding == "console" && cfg.EnableColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	newEncoder := func() zapcore.Encoder {
		if cfg.Encoding == "json" {
			return zapcore.NewJSONEncoder(encoderConfig)
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	for _, path := range cfg.OutputPaths {
		cores = append(cores, zapcore.NewCore(newEncoder(), getWriter(path, cfg.Rotation), level))
	}
	for _, path := range cfg.ErrorOutputPaths {
		if contains(cfg.OutputPaths, path) {
			continue // 避免重复
		}
		cores = append(cores, zapcore.NewCore(newEncoder(), getWriter(path, cfg.Rotation), zapcore.ErrorLevel))
	}

	var opts []zap.Option
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), opts...)

	return &Logger{
		zap:    zapLogger,
		sugar:  zapLogger.Sugar(),
		config: cfg,
	}, nil
}

// FromConfig 将 config.LogConfig 转换为 log.Config
func FromConfig(cfg *config.LogConfig) *Config {
	if cfg == nil {
		return DefaultConfig
	}
	return &Config{
		Level:            cfg.Level,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
		Encoding:         cfg.Encoding,
		EnableColor:      cfg.Encoding == "console",
		Rotation: RotationConfig{
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}
}

// InitFromConfig 从配置文件初始化全局日志器
func InitFromConfig(cfg *config.LogConfig) (*Logger, error) {
	logger, err := NewLogger(FromConfig(cfg))
	if err != nil {
		return nil, err
	}
	ReplaceGlobalLogger(logger)
	return logger, nil
}

// GetLogger 获取全局日志器，未初始化时使用默认配置
func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger, _ = NewLogger(DefaultConfig)
	}
	return globalLogger
}

// ReplaceGlobalLogger 替换全局日志器
func ReplaceGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// NewNop 返回丢弃所有输出的日志器（测试用）
func NewNop() *Logger {
	z := zap.NewNop()
	return &Logger{zap: z, sugar: z.Sugar(), config: DefaultConfig}
}

// Wrap 包装已有的 zap.Logger
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		return NewNop()
	}
	return &Logger{zap: z, sugar: z.Sugar(), config: DefaultConfig}
}

// Zap 返回底层 zap.Logger
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync 同步日志缓冲区
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// With 添加字段（返回新的 logger）
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.zap.With(fields...)
	return &Logger{zap: z, sugar: z.Sugar(), config: l.config}
}

// Named 创建命名子日志器
func (l *Logger) Named(name string) *Logger {
	z := l.zap.Named(name)
	return &Logger{zap: z, sugar: z.Sugar(), config: l.config}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

func (l *Logger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *Logger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }
func (l *Logger) Fatalf(template string, args ...interface{}) { l.sugar.Fatalf(template, args...) }

// getWriter 获取输出 Writer，文件路径交给 lumberjack 轮转
func getWriter(path string, rotation RotationConfig) zapcore.WriteSyncer {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		})
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// 全局便捷函数（使用全局 logger）

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

func Infof(template string, args ...interface{})  { GetLogger().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetLogger().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetLogger().Errorf(template, args...) }
func Fatalf(template string, args ...interface{}) { GetLogger().Fatalf(template, args...) }

// Sync 同步全局日志器
func Sync() error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
