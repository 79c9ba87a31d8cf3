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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engine names
const (
	EngineMemory  = "memory"
	EngineBolt    = "bolt"
	EngineRocksDB = "rocksdb"
	EngineSQLite  = "sqlite"
)

// Config unified configuration structure
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig server configuration
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"` // gRPC listen address
	HTTPAddress   string `yaml:"http_address"`   // HTTP gateway address, empty disables the gateway

	// Sub-configurations
	GRPC        GRPCConfig        `yaml:"grpc"`
	Limits      LimitsConfig      `yaml:"limits"`
	Reliability ReliabilityConfig `yaml:"reliability"`
	Log         LogConfig         `yaml:"log"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Storage     StorageConfig     `yaml:"storage"`
}

// GRPCConfig gRPC configuration
type GRPCConfig struct {
	// Message size limits
	MaxRecvMsgSize       int    `yaml:"max_recv_msg_size"`      // Default 1MB
	MaxSendMsgSize       int    `yaml:"max_send_msg_size"`      // Default 1MB
	MaxConcurrentStreams uint32 `yaml:"max_concurrent_streams"` // Default 256

	// Keepalive configuration
	KeepaliveTime         time.Duration `yaml:"keepalive_time"`           // Default 10s
	KeepaliveTimeout      time.Duration `yaml:"keepalive_timeout"`        // Default 10s
	MaxConnectionIdle     time.Duration `yaml:"max_connection_idle"`      // Default 5m
	MaxConnectionAge      time.Duration `yaml:"max_connection_age"`       // Default 10m
	MaxConnectionAgeGrace time.Duration `yaml:"max_connection_age_grace"` // Default 10s

	// Rate limiting configuration
	EnableRateLimit bool `yaml:"enable_rate_limit"` // Default false
	RateLimitQPS    int  `yaml:"rate_limit_qps"`    // Requests per second limit
	RateLimitBurst  int  `yaml:"rate_limit_burst"`  // Token bucket size
}

// LimitsConfig resource limits configuration
type LimitsConfig struct {
	MaxConnections      int `yaml:"max_connections"`       // Default 1000
	MaxDescriptionBytes int `yaml:"max_description_bytes"` // Default 1024
	MaxListLimit        int `yaml:"max_list_limit"`        // Default 1000, caps ListProposals page size
}

// ReliabilityConfig reliability configuration
type ReliabilityConfig struct {
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`      // Default 30s
	DrainTimeout        time.Duration `yaml:"drain_timeout"`         // Default 5s
	EnableCRC           bool          `yaml:"enable_crc"`            // Default false
	EnableHealthCheck   bool          `yaml:"enable_health_check"`   // Default true
	EnablePanicRecovery bool          `yaml:"enable_panic_recovery"` // Default true
}

// LogConfig log configuration
type LogConfig struct {
	Level            string   `yaml:"level"`              // Default info
	Encoding         string   `yaml:"encoding"`           // Default json
	OutputPaths      []string `yaml:"output_paths"`       // Default ["stdout"]
	ErrorOutputPaths []string `yaml:"error_output_paths"` // Default ["stderr"]

	// Rotation of file outputs
	MaxSizeMB  int  `yaml:"max_size_mb"`  // Default 100
	MaxBackups int  `yaml:"max_backups"`  // Default 10
	MaxAgeDays int  `yaml:"max_age_days"` // Default 7
	Compress   bool `yaml:"compress"`     // Default false
}

// MonitoringConfig monitoring configuration
type MonitoringConfig struct {
	EnablePrometheus     bool          `yaml:"enable_prometheus"`      // Default true
	PrometheusPort       int           `yaml:"prometheus_port"`        // Default 9090
	HealthPort           int           `yaml:"health_port"`            // Default 9091
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold"` // Default 100ms
}

// StorageConfig storage engine configuration
type StorageConfig struct {
	Engine  string        `yaml:"engine"`   // memory, bolt, rocksdb or sqlite. Default memory
	DataDir string        `yaml:"data_dir"` // Default data
	RocksDB RocksDBConfig `yaml:"rocksdb"`
	Bolt    BoltConfig    `yaml:"bolt"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
}

// RocksDBConfig RocksDB tuning
type RocksDBConfig struct {
	BlockCacheSize        uint64 `yaml:"block_cache_size"`          // Default 64MB
	WriteBufferSize       uint64 `yaml:"write_buffer_size"`         // Default 16MB
	MaxWriteBufferNumber  int    `yaml:"max_write_buffer_number"`   // Default 3
	MaxBackgroundJobs     int    `yaml:"max_background_jobs"`       // Default 2
	BloomFilterBitsPerKey int    `yaml:"bloom_filter_bits_per_key"` // Default 10
	MaxOpenFiles          int    `yaml:"max_open_files"`            // Default 1000
	UseFsync              bool   `yaml:"use_fsync"`                 // Default false
	DisableSync           bool   `yaml:"disable_sync"`              // Default false (every write is synced)
}

// BoltConfig bbolt tuning
type BoltConfig struct {
	FileName    string        `yaml:"file_name"`    // Default votestore.db
	OpenTimeout time.Duration `yaml:"open_timeout"` // Default 1s
	NoSync      bool          `yaml:"no_sync"`      // Default false
}

// SQLiteConfig sqlite file settings
type SQLiteConfig struct {
	FileName string `yaml:"file_name"` // Default votestore.sqlite
}

// DefaultConfig returns a configuration with recommended default values
func DefaultConfig(listenAddress string) *Config {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddress: listenAddress,
		},
	}
	cfg.SetDefaults()
	return cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	cfg.OverrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigOrDefault attempts to load configuration from file, uses defaults if file doesn't exist
func LoadConfigOrDefault(path string, listenAddress string) (*Config, error) {
	if path != "" {
		cfg, err := LoadConfig(path)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := DefaultConfig(listenAddress)
	cfg.OverrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults sets default values
func (c *Config) SetDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":7070"
	}

	// gRPC defaults
	if c.Server.GRPC.MaxRecvMsgSize == 0 {
		c.Server.GRPC.MaxRecvMsgSize = 1 << 20
	}
	if c.Server.GRPC.MaxSendMsgSize == 0 {
		c.Server.GRPC.MaxSendMsgSize = 1 << 20
	}
	if c.Server.GRPC.MaxConcurrentStreams == 0 {
		c.Server.GRPC.MaxConcurrentStreams = 256
	}
	if c.Server.GRPC.KeepaliveTime == 0 {
		c.Server.GRPC.KeepaliveTime = 10 * time.Second
	}
	if c.Server.GRPC.KeepaliveTimeout == 0 {
		c.Server.GRPC.KeepaliveTimeout = 10 * time.Second
	}
	if c.Server.GRPC.MaxConnectionIdle == 0 {
		c.Server.GRPC.MaxConnectionIdle = 5 * time.Minute
	}
	if c.Server.GRPC.MaxConnectionAge == 0 {
		c.Server.GRPC.MaxConnectionAge = 10 * time.Minute
	}
	if c.Server.GRPC.MaxConnectionAgeGrace == 0 {
		c.Server.GRPC.MaxConnectionAgeGrace = 10 * time.Second
	}

	// Limits defaults
	if c.Server.Limits.MaxConnections == 0 {
		c.Server.Limits.MaxConnections = 1000
	}
	if c.Server.Limits.MaxDescriptionBytes == 0 {
		c.Server.Limits.MaxDescriptionBytes = 1024
	}
	if c.Server.Limits.MaxListLimit == 0 {
		c.Server.Limits.MaxListLimit = 1000
	}

	// Reliability defaults
	if c.Server.Reliability.ShutdownTimeout == 0 {
		c.Server.Reliability.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.Reliability.DrainTimeout == 0 {
		c.Server.Reliability.DrainTimeout = 5 * time.Second
	}
	// EnableHealthCheck and EnablePanicRecovery default to true
	if !c.Server.Reliability.EnableHealthCheck {
		c.Server.Reliability.EnableHealthCheck = true
	}
	if !c.Server.Reliability.EnablePanicRecovery {
		c.Server.Reliability.EnablePanicRecovery = true
	}

	// Log defaults
	if c.Server.Log.Level == "" {
		c.Server.Log.Level = "info"
	}
	if c.Server.Log.Encoding == "" {
		c.Server.Log.Encoding = "json"
	}
	if len(c.Server.Log.OutputPaths) == 0 {
		c.Server.Log.OutputPaths = []string{"stdout"}
	}
	if len(c.Server.Log.ErrorOutputPaths) == 0 {
		c.Server.Log.ErrorOutputPaths = []string{"stderr"}
	}
	if c.Server.Log.MaxSizeMB == 0 {
		c.Server.Log.MaxSizeMB = 100
	}
	if c.Server.Log.MaxBackups == 0 {
		c.Server.Log.MaxBackups = 10
	}
	if c.Server.Log.MaxAgeDays == 0 {
		c.Server.Log.MaxAgeDays = 7
	}

	// Monitoring defaults
	if !c.Server.Monitoring.EnablePrometheus {
		c.Server.Monitoring.EnablePrometheus = true
	}
	if c.Server.Monitoring.PrometheusPort == 0 {
		c.Server.Monitoring.PrometheusPort = 9090
	}
	if c.Server.Monitoring.HealthPort == 0 {
		c.Server.Monitoring.HealthPort = 9091
	}
	if c.Server.Monitoring.SlowRequestThreshold == 0 {
		c.Server.Monitoring.SlowRequestThreshold = 100 * time.Millisecond
	}

	// Storage defaults
	if c.Server.Storage.Engine == "" {
		c.Server.Storage.Engine = EngineMemory
	}
	if c.Server.Storage.DataDir == "" {
		c.Server.Storage.DataDir = "data"
	}
	if c.Server.Storage.RocksDB.BlockCacheSize == 0 {
		c.Server.Storage.RocksDB.BlockCacheSize = 64 << 20
	}
	if c.Server.Storage.RocksDB.WriteBufferSize == 0 {
		c.Server.Storage.RocksDB.WriteBufferSize = 16 << 20
	}
	if c.Server.Storage.RocksDB.MaxWriteBufferNumber == 0 {
		c.Server.Storage.RocksDB.MaxWriteBufferNumber = 3
	}
	if c.Server.Storage.RocksDB.MaxBackgroundJobs == 0 {
		c.Server.Storage.RocksDB.MaxBackgroundJobs = 2
	}
	if c.Server.Storage.RocksDB.BloomFilterBitsPerKey == 0 {
		c.Server.Storage.RocksDB.BloomFilterBitsPerKey = 10
	}
	if c.Server.Storage.RocksDB.MaxOpenFiles == 0 {
		c.Server.Storage.RocksDB.MaxOpenFiles = 1000
	}
	if c.Server.Storage.Bolt.FileName == "" {
		c.Server.Storage.Bolt.FileName = "votestore.db"
	}
	if c.Server.Storage.Bolt.OpenTimeout == 0 {
		c.Server.Storage.Bolt.OpenTimeout = time.Second
	}
	if c.Server.Storage.SQLite.FileName == "" {
		c.Server.Storage.SQLite.FileName = "votestore.sqlite"
	}
}

// OverrideFromEnv overrides configuration from environment variables
func (c *Config) OverrideFromEnv() {
	if listenAddr := os.Getenv("VOTESTORE_LISTEN_ADDRESS"); listenAddr != "" {
		c.Server.ListenAddress = listenAddr
	}
	if httpAddr := os.Getenv("VOTESTORE_HTTP_ADDRESS"); httpAddr != "" {
		c.Server.HTTPAddress = httpAddr
	}

	// Storage configuration
	if engine := os.Getenv("VOTESTORE_STORAGE_ENGINE"); engine != "" {
		c.Server.Storage.Engine = engine
	}
	if dataDir := os.Getenv("VOTESTORE_DATA_DIR"); dataDir != "" {
		c.Server.Storage.DataDir = dataDir
	}
	if maxDesc := os.Getenv("VOTESTORE_MAX_DESCRIPTION_BYTES"); maxDesc != "" {
		if n, err := strconv.Atoi(maxDesc); err == nil {
			c.Server.Limits.MaxDescriptionBytes = n
		}
	}

	// Log configuration
	if logLevel := os.Getenv("VOTESTORE_LOG_LEVEL"); logLevel != "" {
		c.Server.Log.Level = logLevel
	}
	if logEncoding := os.Getenv("VOTESTORE_LOG_ENCODING"); logEncoding != "" {
		c.Server.Log.Encoding = logEncoding
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}

	// Validate gRPC configuration
	if c.Server.GRPC.MaxRecvMsgSize < 0 {
		return fmt.Errorf("grpc.max_recv_msg_size must be >= 0")
	}
	if c.Server.GRPC.MaxSendMsgSize < 0 {
		return fmt.Errorf("grpc.max_send_msg_size must be >= 0")
	}
	if c.Server.GRPC.EnableRateLimit && (c.Server.GRPC.RateLimitQPS <= 0 || c.Server.GRPC.RateLimitBurst <= 0) {
		return fmt.Errorf("grpc.rate_limit_qps and grpc.rate_limit_burst must be > 0 when rate limiting is enabled")
	}

	// Validate resource limits
	if c.Server.Limits.MaxConnections <= 0 {
		return fmt.Errorf("limits.max_connections must be > 0")
	}
	if c.Server.Limits.MaxDescriptionBytes <= 0 {
		return fmt.Errorf("limits.max_description_bytes must be > 0")
	}
	if c.Server.Limits.MaxListLimit <= 0 {
		return fmt.Errorf("limits.max_list_limit must be > 0")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true,
		"error": true, "dpanic": true, "panic": true, "fatal": true,
	}
	if !validLogLevels[c.Server.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, dpanic, panic, fatal")
	}

	// Validate log encoding
	if c.Server.Log.Encoding != "json" && c.Server.Log.Encoding != "console" {
		return fmt.Errorf("log.encoding must be either 'json' or 'console'")
	}

	// Validate storage
	switch c.Server.Storage.Engine {
	case EngineMemory, EngineBolt, EngineRocksDB, EngineSQLite:
	default:
		return fmt.Errorf("storage.engine must be one of: memory, bolt, rocksdb, sqlite")
	}
	if c.Server.Storage.Engine != EngineMemory && c.Server.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required for engine %s", c.Server.Storage.Engine)
	}

	return nil
}
