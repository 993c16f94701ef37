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
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// Execution is a single run of an agent triggered by a message.
type Execution struct {
	messageID string
	executor  Executor
	processor Processor

	// agentBus receives the events written by the executor.
	agentBus *eventqueue.Bus
	// bus carries the processed events to subscribers.
	bus *eventqueue.Bus

	mu       sync.Mutex
	tids     []a2a.TaskID
	result   a2a.SendMessageResult
	err      error
	finished chan struct{}

	cancelOnce sync.Once
}

func newExecution(req *Request) *Execution {
	return &Execution{
		messageID: req.MessageID,
		executor:  req.Executor,
		processor: req.Processor,
		agentBus:  eventqueue.NewBus(),
		bus:       eventqueue.NewBus(),
		tids:      []a2a.TaskID{req.TaskID},
		finished:  make(chan struct{}),
	}
}

// MessageID returns the id of the message which started the execution.
func (e *Execution) MessageID() string {
	return e.messageID
}

// TaskID returns the id of the task the execution is working on.
func (e *Execution) TaskID() a2a.TaskID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tids[len(e.tids)-1]
}

func (e *Execution) taskIDs() []a2a.TaskID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.tids)
}

// setTaskID records the id of the task the events are applied to. Reports whether it is new.
func (e *Execution) setTaskID(tid a2a.TaskID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tids[len(e.tids)-1] == tid {
		return false
	}
	e.tids = append(e.tids, tid)
	return true
}

// Live reports whether the events of the execution are still being processed.
func (e *Execution) Live() bool {
	return !e.bus.Closed()
}

// Subscribe attaches a new subscriber to the processed events. A subscriber attached after
// processing finished receives a closed queue.
func (e *Execution) Subscribe() *eventqueue.Queue {
	return e.bus.Subscribe()
}

// Write publishes an event as if it was produced by the executor.
func (e *Execution) Write(ctx context.Context, event a2a.Event) error {
	return e.agentBus.Write(ctx, event)
}

// Cancel requests cooperative cancelation of the executor. Repeated calls are no-ops.
func (e *Execution) Cancel() {
	e.cancelOnce.Do(e.executor.Cancel)
}

// Finished returns a channel which is closed once the events are no longer processed.
func (e *Execution) Finished() <-chan struct{} {
	return e.finished
}

// Result returns the outcome of event processing. Valid after [Execution.Finished] is closed.
func (e *Execution) Result() (a2a.SendMessageResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}

func (e *Execution) finish(result a2a.SendMessageResult, err error) {
	e.mu.Lock()
	e.result, e.err = result, err
	e.mu.Unlock()
	close(e.finished)
	_ = e.bus.Close()
}

// produce invokes the executor. An executor error or panic is turned into a failure event, so
// that it reaches clients as a task state instead of a transport error.
func (e *Execution) produce(ctx context.Context) error {
	defer func() { _ = e.agentBus.Close() }()

	err := e.invoke(ctx)
	if err == nil || ctx.Err() != nil {
		return nil
	}

	log.Info(ctx, "agent executor failed", "cause", err.Error())
	failure := e.processor.FailureEvent(ctx, err)
	if failure == nil {
		return err
	}
	if werr := e.agentBus.Write(ctx, failure); werr != nil && !errors.Is(werr, eventqueue.ErrQueueClosed) {
		return fmt.Errorf("failed to report executor failure: %w: %w", werr, err)
	}
	return nil
}

func (e *Execution) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn(ctx, "agent executor panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("agent executor panic: %v", r)
		}
	}()
	return e.executor.Execute(ctx, e.agentBus)
}
