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
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
)

// Task store kinds accepted by -store.
const (
	storeMemory   = "memory"
	storeSQLite   = "sqlite"
	storeMySQL    = "mysql"
	storePostgres = "postgres"
)

const defaultSQLiteDSN = "file:a2a.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Config holds the server configuration. Every flag defaults to an environment variable,
// which can also come from a .env file.
type Config struct {
	Addr      string
	GRPCAddr  string
	PublicURL string

	Store    string
	StoreDSN string

	CancelPolicy    a2asrv.CancelPolicy
	MaxExecutions   int64
	SignPush        bool
	EchoDelay       time.Duration
	KeepAlive       time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// LoadConfig reads the .env file named by A2A_ENV_FILE (".env" by default) if it exists,
// then parses the command line flags.
func LoadConfig(args []string) (*Config, error) {
	envFile := getEnvOrDefault("A2A_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}
	var cancelPolicy, logLevel string

	fset := flag.NewFlagSet("a2aserver", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", getEnvOrDefault("A2A_ADDR", ":9001"), "HTTP listen address for JSON-RPC, websocket and the agent card.")
	fset.StringVar(&cfg.GRPCAddr, "grpc-addr", os.Getenv("A2A_GRPC_ADDR"), "gRPC listen address. gRPC is disabled when empty.")
	fset.StringVar(&cfg.PublicURL, "public-url", os.Getenv("A2A_PUBLIC_URL"), "URL published in the agent card. Derived from -addr when empty.")
	fset.StringVar(&cfg.Store, "store", getEnvOrDefault("A2A_STORE", storeMemory), "Task store: memory, sqlite, mysql or postgres.")
	fset.StringVar(&cfg.StoreDSN, "store-dsn", os.Getenv("A2A_STORE_DSN"), "Data source name of the SQL task store.")
	fset.StringVar(&cancelPolicy, "cancel-policy", getEnvOrDefault("A2A_CANCEL_POLICY", "immediate"), "Cancelation policy: immediate or wait.")
	fset.Int64Var(&cfg.MaxExecutions, "max-executions", getEnvInt64OrDefault("A2A_MAX_EXECUTIONS", 0), "Limit of concurrent executions, 0 for unlimited.")
	fset.BoolVar(&cfg.SignPush, "sign-push", getEnvBoolOrDefault("A2A_SIGN_PUSH", true), "Sign push notifications with a JWT and publish the JWKS.")
	fset.DurationVar(&cfg.EchoDelay, "echo-delay", getEnvDurationOrDefault("A2A_ECHO_DELAY", 0), "Time the echo agent works before replying.")
	fset.DurationVar(&cfg.KeepAlive, "keep-alive", getEnvDurationOrDefault("A2A_KEEP_ALIVE", 15*time.Second), "Interval of stream keep-alive messages, 0 to disable.")
	fset.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDurationOrDefault("A2A_SHUTDOWN_TIMEOUT", 10*time.Second), "Time given to in-flight requests on shutdown.")
	fset.StringVar(&logLevel, "log-level", getEnvOrDefault("A2A_LOG_LEVEL", "info"), "Log level: debug, info, warn or error.")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	switch strings.ToLower(cancelPolicy) {
	case "immediate":
		cfg.CancelPolicy = a2asrv.CancelImmediate
	case "wait":
		cfg.CancelPolicy = a2asrv.CancelWaitForExecutor
	default:
		return nil, fmt.Errorf("unknown cancel policy %q (must be immediate or wait)", cancelPolicy)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and fills derived defaults.
func (c *Config) Validate() error {
	switch c.Store {
	case storeMemory:
	case storeSQLite:
		if c.StoreDSN == "" {
			c.StoreDSN = defaultSQLiteDSN
		}
	case storeMySQL, storePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("-store-dsn (A2A_STORE_DSN) is required for the %s store", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q (must be memory, sqlite, mysql or postgres)", c.Store)
	}

	if c.MaxExecutions < 0 {
		return fmt.Errorf("max executions must not be negative, got %d", c.MaxExecutions)
	}
	if c.PublicURL == "" {
		host := c.Addr
		if strings.HasPrefix(host, ":") {
			host = "127.0.0.1" + host
		}
		c.PublicURL = "http://" + host
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")
	return nil
}

// WebSocketURL is the websocket endpoint published in the agent card.
func (c *Config) WebSocketURL() string {
	if rest, ok := strings.CutPrefix(c.PublicURL, "https://"); ok {
		return "wss://" + rest + wsPath
	}
	return "ws://" + strings.TrimPrefix(c.PublicURL, "http://") + wsPath
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
