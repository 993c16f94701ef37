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

// Package testexecutor provides mock implementations for agent executor for testing.
package testexecutor

import (
	"context"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
)

// TestAgentExecutor is a mock of [a2asrv.AgentExecutor].
type TestAgentExecutor struct {
	ExecuteFn func(context.Context, *a2asrv.RequestContext, eventqueue.Writer) error

	mu      sync.Mutex
	emitted []a2a.Event
}

var _ a2asrv.AgentExecutor = (*TestAgentExecutor)(nil)

// FromFunction creates a [TestAgentExecutor] from a function.
func FromFunction(fn func(context.Context, *a2asrv.RequestContext, eventqueue.Writer) error) *TestAgentExecutor {
	return &TestAgentExecutor{ExecuteFn: fn}
}

// FromEventGenerator creates a [TestAgentExecutor] that writes the generated events in order.
func FromEventGenerator(generator func(reqCtx *a2asrv.RequestContext) []a2a.Event) *TestAgentExecutor {
	exec := &TestAgentExecutor{}
	exec.ExecuteFn = func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Writer) error {
		for _, ev := range generator(reqCtx) {
			if err := q.Write(ctx, ev); err != nil {
				return err
			}
			exec.record(ev)
		}
		return nil
	}
	return exec
}

// UntilCanceled creates a [TestAgentExecutor] which submits a task, reports it as working and
// waits for cancelation. On cancelation it publishes a canceled status.
func UntilCanceled() *TestAgentExecutor {
	exec := &TestAgentExecutor{}
	exec.ExecuteFn = func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Writer) error {
		events := []a2a.Event{
			a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
			a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil),
		}
		if reqCtx.StoredTask != nil {
			events = events[1:]
		}
		for _, ev := range events {
			if err := q.Write(ctx, ev); err != nil {
				return err
			}
			exec.record(ev)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reqCtx.Canceled():
		}
		canceled := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
		exec.record(canceled)
		return q.Write(ctx, canceled)
	}
	return exec
}

// Execute implements [a2asrv.AgentExecutor] interface.
func (e *TestAgentExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Writer) error {
	if e.ExecuteFn != nil {
		return e.ExecuteFn(ctx, reqCtx, q)
	}
	return nil
}

// Emitted returns the events the executor wrote so far.
func (e *TestAgentExecutor) Emitted() []a2a.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]a2a.Event(nil), e.emitted...)
}

func (e *TestAgentExecutor) record(ev a2a.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, ev)
}
