// Copyright 2025 The A2A Authors
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

// Command a2aserver runs an echo agent over the JSON-RPC, websocket and gRPC bindings.
//
// Configuration comes from flags, which default to A2A_* environment variables. A .env
// file in the working directory is loaded first if present.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "a2aserver: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.AttachLogger(ctx, logger)

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}

	httpLis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = srv.closeStore()
		return fmt.Errorf("failed to bind %s: %w", cfg.Addr, err)
	}
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			_ = srv.closeStore()
			return fmt.Errorf("failed to bind %s: %w", cfg.GRPCAddr, err)
		}
	}

	log.Info(ctx, "agent card published", "url", cfg.PublicURL, "store", cfg.Store)
	return srv.serve(ctx, httpLis, grpcLis)
}
