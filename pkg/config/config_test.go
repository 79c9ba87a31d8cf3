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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(":7070")

	assert.Equal(t, ":7070", cfg.Server.ListenAddress)
	assert.Equal(t, EngineMemory, cfg.Server.Storage.Engine)
	assert.Equal(t, 1024, cfg.Server.Limits.MaxDescriptionBytes)
	assert.Equal(t, 1000, cfg.Server.Limits.MaxListLimit)
	assert.Equal(t, "info", cfg.Server.Log.Level)
	assert.Equal(t, "json", cfg.Server.Log.Encoding)
	assert.True(t, cfg.Server.Reliability.EnablePanicRecovery)
	assert.True(t, cfg.Server.Monitoring.EnablePrometheus)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.Monitoring.SlowRequestThreshold)
	assert.False(t, cfg.Server.Storage.RocksDB.DisableSync)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "votestore.yaml")

	raw := Config{Server: ServerConfig{
		ListenAddress: ":8000",
		HTTPAddress:   ":8001",
		Storage: StorageConfig{
			Engine:  EngineBolt,
			DataDir: dir,
		},
		Limits: LimitsConfig{MaxDescriptionBytes: 64},
	}}
	data, err := yaml.Marshal(&raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.ListenAddress)
	assert.Equal(t, ":8001", cfg.Server.HTTPAddress)
	assert.Equal(t, EngineBolt, cfg.Server.Storage.Engine)
	assert.Equal(t, 64, cfg.Server.Limits.MaxDescriptionBytes)
	// Unset fields still receive defaults
	assert.Equal(t, "votestore.db", cfg.Server.Storage.Bolt.FileName)
	assert.Equal(t, 1000, cfg.Server.Limits.MaxConnections)
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), ":9999")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.ListenAddress)
}

func TestLoadConfigOrDefault_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map"), 0o600))

	_, err := LoadConfigOrDefault(path, ":9999")
	require.Error(t, err)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("VOTESTORE_LISTEN_ADDRESS", ":1234")
	t.Setenv("VOTESTORE_STORAGE_ENGINE", EngineSQLite)
	t.Setenv("VOTESTORE_LOG_LEVEL", "debug")
	t.Setenv("VOTESTORE_MAX_DESCRIPTION_BYTES", "32")

	cfg := DefaultConfig(":7070")
	cfg.OverrideFromEnv()

	assert.Equal(t, ":1234", cfg.Server.ListenAddress)
	assert.Equal(t, EngineSQLite, cfg.Server.Storage.Engine)
	assert.Equal(t, "debug", cfg.Server.Log.Level)
	assert.Equal(t, 32, cfg.Server.Limits.MaxDescriptionBytes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"UnknownEngine", func(c *Config) { c.Server.Storage.Engine = "leveldb" }},
		{"BadLogLevel", func(c *Config) { c.Server.Log.Level = "verbose" }},
		{"BadLogEncoding", func(c *Config) { c.Server.Log.Encoding = "xml" }},
		{"NegativeDescriptionLimit", func(c *Config) { c.Server.Limits.MaxDescriptionBytes = -1 }},
		{"RateLimitWithoutQPS", func(c *Config) { c.Server.GRPC.EnableRateLimit = true }},
		{"PersistentEngineWithoutDir", func(c *Config) {
			c.Server.Storage.Engine = EngineRocksDB
			c.Server.Storage.DataDir = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(":7070")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
