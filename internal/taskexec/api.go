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

// Package taskexec runs agent executions and keeps track of the ones in progress.
//
// Every execution owns two buses. The executor writes to the first one. A processor goroutine
// drains it, persists the state the events produce and republishes accepted events on the
// second one, which is the bus callers and resubscribers read. A client therefore never
// observes an event whose effect is not yet visible through the task store.
package taskexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
)

var (
	// ErrExecutionInProgress is returned when a caller attempts to start an execution for
	// a Task concurrently with another execution.
	ErrExecutionInProgress = fmt.Errorf("task execution is already in progress: %w", a2a.ErrInvalidParams)

	// ErrConcurrencyLimit is returned when the configured number of concurrent executions is reached.
	ErrConcurrencyLimit = fmt.Errorf("too many concurrent executions: %w", a2a.ErrServerError)

	errNoResult = errors.New("execution finished without producing a result")
)

// Executor produces the events of an execution.
type Executor interface {
	// Execute runs the agent and writes the events it produces. It is invoked in a dedicated
	// goroutine with a context detached from the request which started the execution.
	Execute(ctx context.Context, q eventqueue.Writer) error

	// Cancel requests cooperative cancelation. It must not block.
	Cancel()
}

// Processor handles the events produced by an [Executor].
type Processor interface {
	// Process handles an event and returns the event subscribers should receive.
	// A nil event means nothing needs to be delivered.
	Process(ctx context.Context, event a2a.Event) (*ProcessorResult, error)

	// FailureEvent returns the event which reports an execution or processing failure to clients.
	FailureEvent(ctx context.Context, cause error) a2a.Event

	// Result returns the outcome of the execution once processing stopped.
	Result() a2a.SendMessageResult
}

// ProcessorResult is returned by [Processor.Process].
type ProcessorResult struct {
	// Event is delivered to subscribers when not nil.
	Event a2a.Event
	// TaskID is the id of the task the event was applied to. Empty for direct replies.
	TaskID a2a.TaskID
}

// PanicHandlerFn converts a recovered panic value into an error.
type PanicHandlerFn func(r any) error

// Request describes an execution to start.
type Request struct {
	// MessageID is the id of the message which triggered the execution.
	MessageID string
	// TaskID is the id assigned to the task before the executor was invoked.
	TaskID a2a.TaskID
	// Executor produces the events.
	Executor Executor
	// Processor handles the events.
	Processor Processor
	// Admit is invoked once the execution passed the registry checks and before the
	// executor is started. It runs with the registry locked. An error rejects the execution. Optional.
	Admit func(ctx context.Context) error
}
