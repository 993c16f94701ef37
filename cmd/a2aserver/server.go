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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2agrpc"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/push"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

const wsPath = "/ws"

type server struct {
	cfg        *Config
	card       *a2a.AgentCard
	mux        *http.ServeMux
	grpc       *grpc.Server
	closeStore func() error
}

func newServer(ctx context.Context, cfg *Config) (*server, error) {
	store, closeStore, err := openTaskStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var signer *push.KeyManager
	if cfg.SignPush {
		signer, err = push.NewKeyManager(uuid.NewString())
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("failed to create push signing key: %w", err)
		}
	}

	card := newAgentCard(cfg)
	handler := a2asrv.NewHandler(
		&echoExecutor{delay: cfg.EchoDelay},
		a2asrv.WithAgentCard(card),
		a2asrv.WithTaskStore(store),
		a2asrv.WithCancelPolicy(cfg.CancelPolicy),
		a2asrv.WithMaxConcurrentExecutions(cfg.MaxExecutions),
		a2asrv.WithLogger(log.LoggerFrom(ctx)),
		a2asrv.WithPushNotifications(push.NewInMemoryStore(), push.NewHTTPPushSender(&push.HTTPSenderConfig{Signer: signer})),
	)

	mux := http.NewServeMux()
	mux.Handle("/", a2asrv.NewJSONRPCHandler(handler, a2asrv.WithKeepAlive(cfg.KeepAlive)))
	mux.Handle(wsPath, a2asrv.NewWebSocketHandler(handler, a2asrv.WithTransportKeepAlive(cfg.KeepAlive)))
	cardHandler := a2asrv.NewStaticAgentCardHandler(card)
	mux.Handle(a2asrv.WellKnownAgentCardPath, cardHandler)
	mux.Handle(a2asrv.WellKnownAgentCardPathAlt, cardHandler)
	if signer != nil {
		mux.Handle(push.WellKnownJWKSPath, signer.JWKSHandler())
	}

	s := &server{cfg: cfg, card: card, mux: mux, closeStore: closeStore}
	if cfg.GRPCAddr != "" {
		s.grpc = grpc.NewServer()
		a2agrpc.NewHandler(handler).RegisterWith(s.grpc)
	}
	return s, nil
}

func newAgentCard(cfg *Config) *a2a.AgentCard {
	interfaces := []a2a.AgentInterface{
		{Transport: a2a.TransportProtocolJSONRPC, URL: cfg.PublicURL},
		{Transport: a2a.TransportProtocolWebSocket, URL: cfg.WebSocketURL()},
	}
	if cfg.GRPCAddr != "" {
		interfaces = append(interfaces, a2a.AgentInterface{Transport: a2a.TransportProtocolGRPC, URL: cfg.GRPCAddr})
	}
	return &a2a.AgentCard{
		Name:                 "Echo Agent",
		Description:          "Echoes the text of every message back as an artifact.",
		URL:                  cfg.PublicURL,
		Version:              "1.0.0",
		ProtocolVersion:      a2a.Version,
		PreferredTransport:   a2a.TransportProtocolJSONRPC,
		AdditionalInterfaces: interfaces,
		DefaultInputModes:    []string{"text/plain"},
		DefaultOutputModes:   []string{"text/plain"},
		Capabilities:         a2a.AgentCapabilities{Streaming: true, PushNotifications: true, StateTransitionHistory: true},
		Skills: []a2a.AgentSkill{
			{
				ID:          "echo",
				Name:        "Echo",
				Description: "Returns the text it receives. Say \"input\" to get asked for more.",
				Tags:        []string{"echo", "test"},
				Examples:    []string{"hello", "input"},
			},
		},
	}
}

// serve runs the HTTP and gRPC servers until ctx is canceled or one of them fails, then
// gives in-flight requests ShutdownTimeout to finish.
func (s *server) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info(ctx, "serving http", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	if s.grpc != nil && grpcLis != nil {
		group.Go(func() error {
			log.Info(ctx, "serving grpc", "addr", grpcLis.Addr().String())
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if s.grpc != nil {
			stopped := make(chan struct{})
			go func() {
				s.grpc.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-shutdownCtx.Done():
				s.grpc.Stop()
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "http shutdown incomplete", "error", err)
			_ = httpServer.Close()
		}
		return nil
	})

	err := group.Wait()
	if closeErr := s.closeStore(); closeErr != nil {
		log.Error(ctx, "failed to close task store", closeErr)
	}
	return err
}
