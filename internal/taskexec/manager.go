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

package taskexec

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// Config contains execution [Manager] configuration parameters.
type Config struct {
	// MaxExecutions limits the number of executions whose events are being processed.
	// Zero means no limit.
	MaxExecutions int64
	// PanicHandler converts panics of processors into errors. A default one is used when nil.
	PanicHandler PanicHandlerFn
}

// Manager is the registry of in-progress executions. It is owned by a request handler and
// indexes executions by the id of the message which started them and by task id.
// An execution is live while its events are being processed. It is removed from the
// registry once processing finished and every subscriber detached.
//
// The following guarantees are provided:
//   - A message whose id matches a live execution attaches to that execution instead of starting a new one.
//   - An execution for a task with a live execution is rejected with [ErrExecutionInProgress].
//   - Executions run in a detached context and are never canceled by the callers going away.
type Manager struct {
	panicHandler PanicHandlerFn
	limiter      *semaphore.Weighted

	mu        sync.Mutex
	byMessage map[string]*Execution
	byTask    map[a2a.TaskID]*Execution
}

// NewManager is a [Manager] constructor function.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		panicHandler: cfg.PanicHandler,
		byMessage:    make(map[string]*Execution),
		byTask:       make(map[a2a.TaskID]*Execution),
	}
	if cfg.MaxExecutions > 0 {
		m.limiter = semaphore.NewWeighted(cfg.MaxExecutions)
	}
	return m
}

// Execute starts two goroutines in a detached context. One invokes the [Executor] for event
// generation and the other one processes the events and publishes the accepted ones.
// The returned queue is subscribed before the execution starts, so it observes every event.
func (m *Manager) Execute(ctx context.Context, req *Request) (*Execution, *eventqueue.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.byMessage[req.MessageID]; existing != nil && existing.Live() {
		log.Info(ctx, "attaching to the execution of a redelivered message", "message_id", req.MessageID)
		return existing, existing.Subscribe(), nil
	}
	if existing := m.byTask[req.TaskID]; existing != nil && existing.Live() {
		return nil, nil, fmt.Errorf("%w: %s", ErrExecutionInProgress, req.TaskID)
	}
	if m.limiter != nil && !m.limiter.TryAcquire(1) {
		return nil, nil, ErrConcurrencyLimit
	}
	if req.Admit != nil {
		if err := req.Admit(ctx); err != nil {
			if m.limiter != nil {
				m.limiter.Release(1)
			}
			return nil, nil, err
		}
	}

	execution := newExecution(req)
	m.byMessage[req.MessageID] = execution
	m.byTask[req.TaskID] = execution
	queue := execution.Subscribe()

	detachedCtx := context.WithoutCancel(ctx)
	go m.handleExecution(detachedCtx, execution)
	go m.cleanupWhenDrained(detachedCtx, execution)

	return execution, queue, nil
}

// Lookup returns the live execution of the task.
func (m *Manager) Lookup(taskID a2a.TaskID) (*Execution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	execution, ok := m.byTask[taskID]
	if !ok || !execution.Live() {
		return nil, false
	}
	return execution, true
}

// Len returns the number of executions in the registry, including the finished ones which
// still have subscribers attached.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byMessage)
}

func (m *Manager) bindTask(execution *Execution, taskID a2a.TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if execution.setTaskID(taskID) {
		if current, ok := m.byTask[taskID]; !ok || !current.Live() {
			m.byTask[taskID] = execution
		}
	}
}

func (m *Manager) handleExecution(ctx context.Context, execution *Execution) {
	ctx = log.With(ctx, "message_id", execution.messageID)
	handler := &executionHandler{
		agentEvents: execution.agentBus.Subscribe(),
		subscribers: execution.bus,
		processor:   execution.processor,
		onTaskID:    func(tid a2a.TaskID) { m.bindTask(execution, tid) },
	}

	_, err := runProducerConsumer(
		ctx,
		execution.produce,
		func(ctx context.Context) (result a2a.SendMessageResult, err error) {
			defer func() {
				if m.limiter != nil {
					m.limiter.Release(1)
				}
				execution.finish(result, err)
			}()
			return handler.processEvents(ctx)
		},
		m.panicHandler,
	)
	if err != nil {
		log.Error(ctx, "execution failed", err)
	}
}

func (m *Manager) cleanupWhenDrained(ctx context.Context, execution *Execution) {
	<-execution.bus.Drained()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byMessage[execution.messageID] == execution {
		delete(m.byMessage, execution.messageID)
	}
	for _, tid := range execution.taskIDs() {
		if m.byTask[tid] == execution {
			delete(m.byTask, tid)
		}
	}
	log.Debug(ctx, "execution removed from registry", "message_id", execution.messageID)
}
