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
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
)

// openTaskStore creates the configured store. The returned close function releases the
// database of SQL stores.
func openTaskStore(ctx context.Context, cfg *Config) (taskstore.Store, func() error, error) {
	if cfg.Store == storeMemory {
		return taskstore.NewInMemory(), func() error { return nil }, nil
	}

	driver, dsn, dialect, err := sqlSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, cfg.Store)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := taskstore.NewSQL(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// sqlSource maps the store kind to a database/sql driver name and a normalized DSN.
func sqlSource(cfg *Config) (driver, dsn string, dialect taskstore.Dialect, err error) {
	switch cfg.Store {
	case storeSQLite:
		return "sqlite", cfg.StoreDSN, taskstore.DialectSQLite, nil
	case storeMySQL:
		dsn, err := normalizeMySQLDSN(cfg.StoreDSN)
		if err != nil {
			return "", "", "", err
		}
		return "mysql", dsn, taskstore.DialectMySQL, nil
	case storePostgres:
		return "pgx", cfg.StoreDSN, taskstore.DialectPostgres, nil
	default:
		return "", "", "", fmt.Errorf("store %q is not backed by SQL", cfg.Store)
	}
}

// normalizeMySQLDSN validates the DSN and turns on the options the task table relies on.
func normalizeMySQLDSN(dsn string) (string, error) {
	mysqlCfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	mysqlCfg.ParseTime = true
	if mysqlCfg.Loc == nil {
		mysqlCfg.Loc = time.UTC
	}
	return mysqlCfg.FormatDSN(), nil
}

func configurePool(db *sql.DB, store string) {
	if store == storeSQLite {
		// sqlite serializes writers, a single connection avoids SQLITE_BUSY under load
		db.SetMaxOpenConns(1)
		return
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
}
