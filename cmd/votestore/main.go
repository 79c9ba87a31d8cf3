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

package main

import (
	"flag"
	"fmt"
	"os"

	"voteStore/internal/server"
	"voteStore/pkg/config"
	"voteStore/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listen := flag.String("listen", "", "gRPC listen address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP gateway address, empty keeps the config value")
	engine := flag.String("storage", "", "storage engine: memory, bolt, rocksdb or sqlite")
	dataDir := flag.String("data-dir", "", "data directory for persistent engines")

	flag.Parse()

	cfg, err := config.LoadConfigOrDefault(*configPath, ":7070")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数优先于配置文件和环境变量
	if *listen != "" {
		cfg.Server.ListenAddress = *listen
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddress = *httpAddr
	}
	if *engine != "" {
		cfg.Server.Storage.Engine = *engine
	}
	if *dataDir != "" {
		cfg.Server.Storage.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.InitFromConfig(&cfg.Server.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log.Info("Starting voteStore",
		log.String("listen", cfg.Server.ListenAddress),
		log.Engine(cfg.Server.Storage.Engine),
		log.String("data_dir", cfg.Server.Storage.DataDir),
		log.Component("main"))

	srv, err := server.New(cfg, logger.Zap())
	if err != nil {
		log.Fatal("Failed to create server", log.Err(err), log.Component("main"))
	}

	if err := srv.Run(); err != nil {
		log.Error("voteStore stopped with error", log.Err(err), log.Component("main"))
		logger.Sync()
		os.Exit(1)
	}
	log.Info("voteStore stopped", log.Component("main"))
}
