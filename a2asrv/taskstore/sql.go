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

package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// Dialect selects the SQL flavor used by [SQL].
type Dialect string

const (
	// DialectSQLite works with the "sqlite" driver of modernc.org/sqlite.
	DialectSQLite Dialect = "sqlite"
	// DialectMySQL works with the "mysql" driver of github.com/go-sql-driver/mysql.
	DialectMySQL Dialect = "mysql"
	// DialectPostgres works with the "pgx" driver of github.com/jackc/pgx/v5/stdlib.
	DialectPostgres Dialect = "postgres"
)

const defaultTableName = "a2a_task"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLOption configures a [SQL] store.
type SQLOption func(*SQL)

// WithTableName overrides the default "a2a_task" table name.
func WithTableName(name string) SQLOption {
	return func(s *SQL) {
		s.table = name
	}
}

// WithTimeProvider overrides the clock used for the last_updated column.
func WithTimeProvider(now func() time.Time) SQLOption {
	return func(s *SQL) {
		s.now = now
	}
}

// SQL is a [Store] backed by a database/sql connection pool. Tasks are stored as JSON
// documents, one row per task, next to the columns needed for lookups.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

var _ Store = (*SQL)(nil)

// NewSQL creates a store over an open database handle. The driver registered for the
// handle must match the dialect.
func NewSQL(db *sql.DB, dialect Dialect, opts ...SQLOption) (*SQL, error) {
	s := &SQL{db: db, dialect: dialect, table: defaultTableName, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	switch dialect {
	case DialectSQLite, DialectMySQL, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if !tableNameRe.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	return s, nil
}

// EnsureSchema creates the task table if it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	var stmts []string
	switch s.dialect {
	case DialectSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
				id TEXT PRIMARY KEY,
				context_id TEXT NOT NULL,
				state TEXT NOT NULL,
				task_json TEXT NOT NULL,
				last_updated INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS ` + s.table + `_context_idx ON ` + s.table + ` (context_id)`,
		}
	case DialectMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
				id VARCHAR(255) NOT NULL PRIMARY KEY,
				context_id VARCHAR(255) NOT NULL,
				state VARCHAR(32) NOT NULL,
				task_json LONGTEXT NOT NULL,
				last_updated BIGINT NOT NULL,
				INDEX ` + s.table + `_context_idx (context_id)
			)`,
		}
	case DialectPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
				id TEXT PRIMARY KEY,
				context_id TEXT NOT NULL,
				state TEXT NOT NULL,
				task_json JSONB NOT NULL,
				last_updated BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS ` + s.table + `_context_idx ON ` + s.table + ` (context_id)`,
		}
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create task schema: %w", err)
		}
	}
	return nil
}

// Save implements [Store] interface.
func (s *SQL) Save(ctx context.Context, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return &StorageError{Op: "save", TaskID: task.ID, Err: fmt.Errorf("failed to marshal task: %w", err)}
	}

	_, err = s.db.ExecContext(ctx, s.upsertQuery(),
		string(task.ID), task.ContextID, string(task.Status.State), string(taskJSON), s.now().UnixNano(),
	)
	if err != nil {
		return &StorageError{Op: "save", TaskID: task.ID, Err: err}
	}
	return nil
}

// Get implements [Store] interface.
func (s *SQL) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	query := s.rebind("SELECT task_json FROM " + s.table + " WHERE id = ?")

	var taskJSON string
	err := s.db.QueryRowContext(ctx, query, string(taskID)).Scan(&taskJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, &StorageError{Op: "get", TaskID: taskID, Err: err}
	}

	var task a2a.Task
	if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
		return nil, &StorageError{Op: "get", TaskID: taskID, Err: fmt.Errorf("failed to unmarshal task: %w", err)}
	}
	return &task, nil
}

func (s *SQL) upsertQuery() string {
	insert := "INSERT INTO " + s.table + " (id, context_id, state, task_json, last_updated) VALUES (?, ?, ?, ?, ?)"
	switch s.dialect {
	case DialectMySQL:
		return insert + ` ON DUPLICATE KEY UPDATE
			context_id = VALUES(context_id),
			state = VALUES(state),
			task_json = VALUES(task_json),
			last_updated = VALUES(last_updated)`
	default:
		return s.rebind(insert + ` ON CONFLICT (id) DO UPDATE SET
			context_id = excluded.context_id,
			state = excluded.state,
			task_json = excluded.task_json,
			last_updated = excluded.last_updated`)
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
