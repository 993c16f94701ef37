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

package a2asrv

import (
	"context"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/push"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/taskexec"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/taskupdate"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/utils"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// AgentExecutor implementations translate agent outputs to A2A events.
// The provided [RequestContext] should be used as a [a2a.TaskInfoProvider] argument
// for [a2a.Event]-s constructor functions, for example:
//
//	a2a.NewSubmittedTask(reqCtx, reqCtx.Message)
//	a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
//	a2a.NewArtifactEvent(reqCtx, parts...)
//	a2a.NewArtifactUpdateEvent(reqCtx, artifactID, parts...)
//
// The server stops processing events after one of these events:
//   - An [a2a.Message] with any payload.
//   - An [a2a.Task] or [a2a.TaskStatusUpdateEvent] in a terminal state.
//   - An [a2a.TaskStatusUpdateEvent] with Final set, which is the case for input-required.
//
// Cancelation is cooperative. An executor is expected to watch [RequestContext.Canceled]
// and publish a canceled status update when it observes it:
//
//	select {
//	case <-reqCtx.Canceled():
//		return queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil))
//	case output := <-outputs:
//		...
//	}
type AgentExecutor interface {
	// Execute invokes the agent and writes the events it produces to the queue. Every
	// invocation runs in a dedicated goroutine which is not canceled when the client goes away.
	//
	// A returned error or a panic is reported to clients as a failed task carrying the
	// error text.
	Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Writer) error
}

// AgentExecutorFunc is an adapter allowing to use a function as an [AgentExecutor].
type AgentExecutorFunc func(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Writer) error

// Execute implements [AgentExecutor].
func (fn AgentExecutorFunc) Execute(ctx context.Context, reqCtx *RequestContext, queue eventqueue.Writer) error {
	return fn(ctx, reqCtx, queue)
}

type executor struct {
	agent  AgentExecutor
	reqCtx *RequestContext
}

var _ taskexec.Executor = (*executor)(nil)

func (e *executor) Execute(ctx context.Context, q eventqueue.Writer) error {
	ctx = log.With(ctx, "task_id", string(e.reqCtx.TaskID), "context_id", e.reqCtx.ContextID)
	return e.agent.Execute(ctx, e.reqCtx, q)
}

func (e *executor) Cancel() {
	e.reqCtx.cancel()
}

// processor folds agent events into the task state, persists it and notifies push endpoints.
// Process runs in the event processing goroutine. FailureEvent can be called from the
// executor goroutine as well.
type processor struct {
	updateManager *taskupdate.Manager
	notifier      *push.Notifier

	mu   sync.Mutex
	info a2a.TaskInfo
}

var _ taskexec.Processor = (*processor)(nil)

func newProcessor(updateManager *taskupdate.Manager, notifier *push.Notifier, info a2a.TaskInfo) *processor {
	return &processor{updateManager: updateManager, notifier: notifier, info: info}
}

func (p *processor) Process(ctx context.Context, event a2a.Event) (*taskexec.ProcessorResult, error) {
	delivered, err := p.updateManager.Process(ctx, event)
	if err != nil {
		return nil, err
	}
	if delivered == nil {
		return nil, nil
	}

	result := &taskexec.ProcessorResult{Event: delivered}
	if _, ok := delivered.(*a2a.Message); ok {
		return result, nil
	}

	task := p.updateManager.Task()
	result.TaskID = task.ID
	p.mu.Lock()
	p.info = task.TaskInfo()
	p.mu.Unlock()

	if p.notifier != nil {
		// senders may retain the task past the next update
		snapshot, err := utils.DeepCopy(task)
		if err != nil {
			return nil, err
		}
		if err := p.notifier.Notify(ctx, snapshot); err != nil {
			log.Warn(ctx, "push notification failed", "task_id", string(task.ID), "error", err)
		}
	}
	return result, nil
}

// FailureEvent moves the task to the failed state. The error text becomes the status message.
func (p *processor) FailureEvent(ctx context.Context, cause error) a2a.Event {
	p.mu.Lock()
	info := p.info
	p.mu.Unlock()

	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, info, a2a.NewTextPart(cause.Error()))
	return a2a.NewStatusUpdateEvent(info, a2a.TaskStateFailed, msg)
}

func (p *processor) Result() a2a.SendMessageResult {
	return p.updateManager.Result()
}
