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
	"errors"
	"fmt"
	"sync"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// RequestContextInterceptor defines an extension point for modifying the information which
// gets passed to the agent when it is invoked.
type RequestContextInterceptor interface {
	// Intercept can modify the [RequestContext] before it gets passed to the [AgentExecutor].
	Intercept(ctx context.Context, reqCtx *RequestContext) (context.Context, error)
}

// WithRequestContextInterceptor adds an interceptor which runs before every agent invocation.
func WithRequestContextInterceptor(interceptor RequestContextInterceptor) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.reqContextInterceptors = append(h.reqContextInterceptors, interceptor)
	}
}

// RequestContext provides information about an incoming A2A request to [AgentExecutor].
type RequestContext struct {
	// Message which triggered the execution.
	Message *a2a.Message
	// TaskID is the id of the task the message continues or a newly generated one.
	TaskID a2a.TaskID
	// StoredTask is present if the message continues an existing task. Its history
	// already contains Message.
	StoredTask *a2a.Task
	// RelatedTasks are the stored tasks listed in [a2a.Message.ReferenceTasks]. Referenced
	// tasks which do not exist are left out.
	RelatedTasks []*a2a.Task
	// ContextID groups related tasks and messages. Matches the ContextID of StoredTask.
	ContextID string
	// Config of the send request. Can be nil.
	Config *a2a.MessageSendConfig
	// Metadata of the request which triggered the call.
	Metadata map[string]any
	// User who made the request which triggered the execution.
	User *User
	// ServiceParams of the request which triggered the execution.
	ServiceParams *ServiceParams

	historyChanged bool

	initOnce   sync.Once
	canceled   chan struct{}
	cancelOnce sync.Once
}

var _ a2a.TaskInfoProvider = (*RequestContext)(nil)

// TaskInfo returns information used for associating events with a task.
func (rc *RequestContext) TaskInfo() a2a.TaskInfo {
	return a2a.TaskInfo{TaskID: rc.TaskID, ContextID: rc.ContextID}
}

// IsCanceled reports whether a client requested the task to be canceled. Executors are
// expected to poll it between units of work, or to select on [RequestContext.Canceled].
func (rc *RequestContext) IsCanceled() bool {
	select {
	case <-rc.Canceled():
		return true
	default:
		return false
	}
}

// Canceled returns a channel which is closed when cancelation is requested.
func (rc *RequestContext) Canceled() <-chan struct{} {
	rc.init()
	return rc.canceled
}

func (rc *RequestContext) cancel() {
	rc.init()
	rc.cancelOnce.Do(func() { close(rc.canceled) })
}

func (rc *RequestContext) init() {
	rc.initOnce.Do(func() {
		if rc.canceled == nil {
			rc.canceled = make(chan struct{})
		}
	})
}

// newRequestContext validates the message against the stored task it continues and
// appends the message to the history of the loaded task.
func (h *defaultRequestHandler) newRequestContext(ctx context.Context, params *a2a.MessageSendParams) (*RequestContext, error) {
	msg := params.Message
	reqCtx := &RequestContext{
		Message:  msg,
		Config:   params.Config,
		Metadata: params.Metadata,
		canceled: make(chan struct{}),
	}
	if callCtx, ok := CallContextFrom(ctx); ok {
		reqCtx.User = callCtx.User
		reqCtx.ServiceParams = callCtx.ServiceParams()
	}

	if msg.TaskID == "" {
		reqCtx.TaskID = a2a.NewTaskID()
		reqCtx.ContextID = msg.ContextID
		if reqCtx.ContextID == "" {
			reqCtx.ContextID = a2a.NewContextID()
		}
		return reqCtx, h.interceptRequestContext(ctx, reqCtx)
	}

	task, err := h.taskStore.Get(ctx, msg.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", msg.TaskID, err)
	}
	if msg.ContextID != "" && msg.ContextID != task.ContextID {
		return nil, fmt.Errorf("%w: message contextId %q does not match task contextId %q", a2a.ErrInvalidParams, msg.ContextID, task.ContextID)
	}
	if task.Status.State.Terminal() {
		return nil, fmt.Errorf("%w: task %s is in a terminal state %q", a2a.ErrInvalidParams, task.ID, task.Status.State)
	}

	// persisted once the execution is admitted
	reqCtx.historyChanged = task.AppendHistory(msg)

	reqCtx.TaskID = task.ID
	reqCtx.ContextID = task.ContextID
	reqCtx.StoredTask = task
	return reqCtx, h.interceptRequestContext(ctx, reqCtx)
}

func (h *defaultRequestHandler) interceptRequestContext(ctx context.Context, reqCtx *RequestContext) error {
	for _, interceptor := range h.reqContextInterceptors {
		var err error
		if ctx, err = interceptor.Intercept(ctx, reqCtx); err != nil {
			return fmt.Errorf("request context interceptor failed: %w", err)
		}
	}
	return nil
}

// ReferencedTasksLoader implements [RequestContextInterceptor]. It populates [RequestContext.RelatedTasks]
// with Tasks referenced in the [a2a.Message.ReferenceTasks] of the message which triggered the agent execution.
// A handler runs one reading from its task store before the other interceptors unless one was
// added with [WithRequestContextInterceptor].
type ReferencedTasksLoader struct {
	Store taskstore.Store
}

var _ RequestContextInterceptor = (*ReferencedTasksLoader)(nil)

func isReferencedTasksLoader(interceptor RequestContextInterceptor) bool {
	_, ok := interceptor.(*ReferencedTasksLoader)
	return ok
}

// Intercept implements [RequestContextInterceptor]. Missing tasks are skipped.
func (rl *ReferencedTasksLoader) Intercept(ctx context.Context, reqCtx *RequestContext) (context.Context, error) {
	msg := reqCtx.Message
	if msg == nil || len(msg.ReferenceTasks) == 0 {
		return ctx, nil
	}

	tasks := make([]*a2a.Task, 0, len(msg.ReferenceTasks))
	for _, taskID := range msg.ReferenceTasks {
		task, err := rl.Store.Get(ctx, taskID)
		if errors.Is(err, a2a.ErrTaskNotFound) {
			log.Info(ctx, "referenced task not found", "referenced_task_id", taskID)
			continue
		}
		if err != nil {
			return ctx, fmt.Errorf("failed to load referenced task %s: %w", taskID, err)
		}
		tasks = append(tasks, task)
	}

	if len(tasks) > 0 {
		reqCtx.RelatedTasks = tasks
	}
	return ctx, nil
}
