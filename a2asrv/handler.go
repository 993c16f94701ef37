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
	"iter"
	"log/slog"
	"slices"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/push"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/taskexec"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/taskupdate"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/utils"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// RequestHandler defines a transport-agnostic interface for handling incoming A2A requests.
type RequestHandler interface {
	// OnGetTask handles the 'tasks/get' protocol method.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnCancelTask handles the 'tasks/cancel' protocol method.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnSendMessage handles the 'message/send' protocol method (non-streaming).
	OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)

	// OnSendMessageStream handles the 'message/stream' protocol method (streaming).
	OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]

	// OnResubscribeToTask handles the 'tasks/resubscribe' protocol method.
	OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]

	// OnGetTaskPushConfig handles the 'tasks/pushNotificationConfig/get' protocol method.
	OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error)

	// OnListTaskPushConfig handles the 'tasks/pushNotificationConfig/list' protocol method.
	OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error)

	// OnSetTaskPushConfig handles the 'tasks/pushNotificationConfig/set' protocol method.
	OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error)

	// OnDeleteTaskPushConfig handles the 'tasks/pushNotificationConfig/delete' protocol method.
	OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error
}

// CancelPolicy selects how 'tasks/cancel' treats a task with a live execution.
type CancelPolicy int

const (
	// CancelImmediate signals the executor and writes the canceled status right away.
	// Subscribers of the execution receive it as the final event.
	CancelImmediate CancelPolicy = iota
	// CancelWaitForExecutor signals the executor and waits for it to publish the
	// canceled status. The call fails with [a2a.ErrTaskNotCancelable] if the executor
	// finishes the task in another state.
	CancelWaitForExecutor
)

// Implements a2asrv.RequestHandler.
type defaultRequestHandler struct {
	agentExecutor AgentExecutor
	execManager   *taskexec.Manager
	execConfig    taskexec.Config

	taskStore       taskstore.Store
	pushConfigStore push.ConfigStore
	pushSender      push.Sender
	notifier        *push.Notifier

	capabilities           a2a.AgentCapabilities
	cancelPolicy           CancelPolicy
	reqContextInterceptors []RequestContextInterceptor
}

var _ RequestHandler = (*defaultRequestHandler)(nil)

// RequestHandlerOption can be used to customize the default [RequestHandler] implementation behavior.
type RequestHandlerOption func(*InterceptedHandler, *defaultRequestHandler)

// WithTaskStore overrides the default in-memory task store.
func WithTaskStore(store taskstore.Store) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.taskStore = store
	}
}

// WithCapabilities sets the capabilities the handler enforces. They should match the ones
// published in the agent card. By default only streaming is enabled.
func WithCapabilities(capabilities a2a.AgentCapabilities) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.capabilities = capabilities
	}
}

// WithCancelPolicy selects the cancelation behavior. Defaults to [CancelImmediate].
func WithCancelPolicy(policy CancelPolicy) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.cancelPolicy = policy
	}
}

// WithLogger sets a custom logger. Request scoped parameters will be attached to this logger
// on method invocations. Any injected dependency will be able to access the logger using
// the log package functions. If not provided, defaults to slog.Default().
func WithLogger(logger *slog.Logger) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		ih.Logger = logger
	}
}

// WithCallInterceptor adds a [CallInterceptor] applied to every method call.
func WithCallInterceptor(interceptor CallInterceptor) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		ih.Interceptors = append(ih.Interceptors, interceptor)
	}
}

// WithExecutionPanicHandler allows to set a custom handler for panics occurred during event processing.
func WithExecutionPanicHandler(handler func(r any) error) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.execConfig.PanicHandler = handler
	}
}

// WithMaxConcurrentExecutions limits the number of executions processed at the same time.
// Messages exceeding the limit are rejected.
func WithMaxConcurrentExecutions(n int64) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.execConfig.MaxExecutions = n
	}
}

// WithPushNotifications adds support for push notifications and enables the capability.
// Without it push-related methods return [a2a.ErrPushNotificationNotSupported].
func WithPushNotifications(store push.ConfigStore, sender push.Sender) RequestHandlerOption {
	return func(ih *InterceptedHandler, h *defaultRequestHandler) {
		h.pushConfigStore = store
		h.pushSender = sender
		h.capabilities.PushNotifications = true
	}
}

// NewHandler creates a new request handler.
func NewHandler(executor AgentExecutor, options ...RequestHandlerOption) RequestHandler {
	h := &defaultRequestHandler{
		agentExecutor: executor,
		taskStore:     taskstore.NewInMemory(),
		capabilities:  a2a.AgentCapabilities{Streaming: true},
	}
	ih := &InterceptedHandler{Handler: h}

	for _, option := range options {
		option(ih, h)
	}

	if !slices.ContainsFunc(h.reqContextInterceptors, isReferencedTasksLoader) {
		loader := &ReferencedTasksLoader{Store: h.taskStore}
		h.reqContextInterceptors = append([]RequestContextInterceptor{loader}, h.reqContextInterceptors...)
	}
	h.execManager = taskexec.NewManager(h.execConfig)
	if h.pushConfigStore != nil && h.pushSender != nil {
		h.notifier = push.NewNotifier(h.pushConfigStore, h.pushSender, 0)
	}
	return ih
}

func (h *defaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, fmt.Errorf("%w: missing task id", a2a.ErrInvalidParams)
	}
	task, err := h.taskStore.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	return a2a.TruncateHistory(task, params.HistoryLength), nil
}

func (h *defaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, fmt.Errorf("%w: missing task id", a2a.ErrInvalidParams)
	}
	task, err := h.taskStore.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if task.Status.State.Terminal() {
		return nil, fmt.Errorf("%w: task in %q state", a2a.ErrTaskNotCancelable, task.Status.State)
	}

	execution, ok := h.execManager.Lookup(params.ID)
	if !ok {
		return h.cancelStoredTask(ctx, task)
	}

	queue := execution.Subscribe()
	defer closeQueue(ctx, queue)

	execution.Cancel()
	if h.cancelPolicy == CancelImmediate {
		event := a2a.NewStatusUpdateEvent(task, a2a.TaskStateCanceled, nil)
		if err := execution.Write(ctx, event); err != nil && !errors.Is(err, eventqueue.ErrQueueClosed) {
			return nil, fmt.Errorf("failed to publish cancelation: %w", err)
		}
	}

	if err := waitForFinal(ctx, queue, params.ID); err != nil {
		return nil, err
	}

	task, err = h.taskStore.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case task.Status.State == a2a.TaskStateCanceled:
		return task, nil
	case task.Status.State.Terminal():
		return nil, fmt.Errorf("%w: task finished in %q state", a2a.ErrTaskNotCancelable, task.Status.State)
	default:
		// the execution stopped without a final event, nothing else writes to the task now
		return h.cancelStoredTask(ctx, task)
	}
}

// cancelStoredTask applies the canceled status to a task which has no live execution.
func (h *defaultRequestHandler) cancelStoredTask(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	manager := taskupdate.NewManager(h.taskStore, task.TaskInfo(), nil, task)
	if _, err := manager.Process(ctx, a2a.NewStatusUpdateEvent(task, a2a.TaskStateCanceled, nil)); err != nil {
		if errors.Is(err, a2a.ErrInvalidAgentResponse) {
			return nil, fmt.Errorf("%w: %w", a2a.ErrTaskNotCancelable, err)
		}
		return nil, err
	}
	canceled := manager.Task()
	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, canceled); err != nil {
			log.Warn(ctx, "push notification failed", "error", err)
		}
	}
	return utils.DeepCopy(canceled)
}

func (h *defaultRequestHandler) OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	execution, queue, err := h.startExecution(ctx, params)
	if err != nil {
		return nil, err
	}
	defer closeQueue(ctx, queue)

	blocking := params.Config == nil || params.Config.Blocking == nil || *params.Config.Blocking

	var last a2a.Event
	for {
		event, err := queue.Read(ctx)
		if errors.Is(err, eventqueue.ErrQueueClosed) {
			break
		}
		if err != nil {
			return nil, err
		}
		if msg, ok := event.(*a2a.Message); ok {
			return msg, nil
		}
		last = event
		if !blocking || a2a.IsFinal(event) {
			break
		}
	}

	taskID := execution.TaskID()
	if last != nil {
		taskID = last.TaskInfo().TaskID
	} else {
		result, err := execution.Result()
		if err != nil {
			return nil, err
		}
		if msg, ok := result.(*a2a.Message); ok {
			return msg, nil
		}
	}

	task, err := h.taskStore.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task after execution: %w", err)
	}
	var historyLength *int
	if params.Config != nil {
		historyLength = params.Config.HistoryLength
	}
	return a2a.TruncateHistory(task, historyLength), nil
}

func (h *defaultRequestHandler) OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if !h.capabilities.Streaming {
			yield(nil, fmt.Errorf("%w: streaming is not supported", a2a.ErrUnsupportedOperation))
			return
		}

		execution, queue, err := h.startExecution(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		defer closeQueue(ctx, queue)

		delivered := false
		for event, err := range queue.Events(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			delivered = true
			if !yield(event, nil) || a2a.IsFinal(event) {
				return
			}
		}

		if !delivered {
			if _, err := execution.Result(); err != nil {
				yield(nil, err)
			}
		}
	}
}

func (h *defaultRequestHandler) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if !h.capabilities.Streaming {
			yield(nil, fmt.Errorf("%w: streaming is not supported", a2a.ErrUnsupportedOperation))
			return
		}
		if params == nil || params.ID == "" {
			yield(nil, fmt.Errorf("%w: missing task id", a2a.ErrInvalidParams))
			return
		}

		// Subscribing before loading the snapshot guarantees no event falls in between.
		var queue *eventqueue.Queue
		if execution, ok := h.execManager.Lookup(params.ID); ok {
			queue = execution.Subscribe()
			defer closeQueue(ctx, queue)
		}

		task, err := h.taskStore.Get(ctx, params.ID)
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(task, nil) || task.Status.State.Terminal() || queue == nil {
			return
		}

		for event, err := range queue.Events(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if event.TaskInfo().TaskID != params.ID {
				continue
			}
			if !yield(event, nil) || a2a.IsFinal(event) {
				return
			}
		}
	}
}

func (h *defaultRequestHandler) OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	if err := h.checkPushSupported(ctx, params.TaskID); err != nil {
		return nil, err
	}

	if params.ConfigID == "" {
		configs, err := h.pushConfigStore.List(ctx, params.TaskID)
		if err != nil {
			return nil, err
		}
		if len(configs) == 0 {
			return nil, fmt.Errorf("%w: %w", a2a.ErrInvalidParams, push.ErrPushConfigNotFound)
		}
		return &a2a.TaskPushConfig{TaskID: params.TaskID, Config: *configs[0]}, nil
	}

	config, err := h.pushConfigStore.Get(ctx, params.TaskID, params.ConfigID)
	if errors.Is(err, push.ErrPushConfigNotFound) {
		return nil, fmt.Errorf("%w: %w", a2a.ErrInvalidParams, err)
	}
	if err != nil {
		return nil, err
	}
	return &a2a.TaskPushConfig{TaskID: params.TaskID, Config: *config}, nil
}

func (h *defaultRequestHandler) OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	if err := h.checkPushSupported(ctx, params.TaskID); err != nil {
		return nil, err
	}

	configs, err := h.pushConfigStore.List(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}
	result := make([]*a2a.TaskPushConfig, 0, len(configs))
	for _, config := range configs {
		result = append(result, &a2a.TaskPushConfig{TaskID: params.TaskID, Config: *config})
	}
	return result, nil
}

func (h *defaultRequestHandler) OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	if err := h.checkPushSupported(ctx, params.TaskID); err != nil {
		return nil, err
	}

	saved, err := h.pushConfigStore.Save(ctx, params.TaskID, &params.Config)
	if err != nil {
		return nil, err
	}
	return &a2a.TaskPushConfig{TaskID: params.TaskID, Config: *saved}, nil
}

func (h *defaultRequestHandler) OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	if err := h.checkPushSupported(ctx, params.TaskID); err != nil {
		return err
	}
	return h.pushConfigStore.Delete(ctx, params.TaskID, params.ConfigID)
}

// checkPushSupported fails when push notifications are disabled or the task does not exist.
func (h *defaultRequestHandler) checkPushSupported(ctx context.Context, taskID a2a.TaskID) error {
	if !h.capabilities.PushNotifications || h.pushConfigStore == nil {
		return a2a.ErrPushNotificationNotSupported
	}
	if taskID == "" {
		return fmt.Errorf("%w: missing task id", a2a.ErrInvalidParams)
	}
	if _, err := h.taskStore.Get(ctx, taskID); err != nil {
		return err
	}
	return nil
}

// startExecution builds the request context and starts the agent, or attaches to the
// live execution of a redelivered message.
func (h *defaultRequestHandler) startExecution(ctx context.Context, params *a2a.MessageSendParams) (*taskexec.Execution, *eventqueue.Queue, error) {
	if params == nil {
		return nil, nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	if err := a2a.ValidateMessage(params.Message); err != nil {
		return nil, nil, err
	}
	msg := params.Message

	if msg.TaskID != "" {
		if live, ok := h.execManager.Lookup(msg.TaskID); ok && live.MessageID() != msg.ID {
			return nil, nil, fmt.Errorf("%w: %s", taskexec.ErrExecutionInProgress, msg.TaskID)
		}
	}

	reqCtx, err := h.newRequestContext(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	var pushConfig *a2a.PushConfig
	if params.Config != nil {
		pushConfig = params.Config.PushConfig
	}
	if pushConfig != nil && (!h.capabilities.PushNotifications || h.pushConfigStore == nil) {
		return nil, nil, a2a.ErrPushNotificationNotSupported
	}

	// the executor reads StoredTask while the processor mutates its own copy
	var resident *a2a.Task
	if reqCtx.StoredTask != nil {
		if resident, err = utils.DeepCopy(reqCtx.StoredTask); err != nil {
			return nil, nil, err
		}
	}

	updateManager := taskupdate.NewManager(h.taskStore, reqCtx.TaskInfo(), msg, resident)
	execution, queue, err := h.execManager.Execute(ctx, &taskexec.Request{
		MessageID: msg.ID,
		TaskID:    reqCtx.TaskID,
		Executor:  &executor{agent: h.agentExecutor, reqCtx: reqCtx},
		Processor: newProcessor(updateManager, h.notifier, reqCtx.TaskInfo()),
		Admit: func(ctx context.Context) error {
			// nothing is written for messages rejected by the registry
			if reqCtx.historyChanged {
				if err := h.taskStore.Save(ctx, resident); err != nil {
					return fmt.Errorf("failed to save task history: %w", err)
				}
			}
			if pushConfig != nil {
				if _, err := h.pushConfigStore.Save(ctx, reqCtx.TaskID, pushConfig); err != nil {
					return fmt.Errorf("failed to save push config: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return execution, queue, nil
}

// waitForFinal reads the queue until a final event of the task or until the execution finished.
func waitForFinal(ctx context.Context, queue *eventqueue.Queue, taskID a2a.TaskID) error {
	for event, err := range queue.Events(ctx) {
		if err != nil {
			return err
		}
		if event.TaskInfo().TaskID == taskID && a2a.IsFinal(event) {
			return nil
		}
	}
	return nil
}

func closeQueue(ctx context.Context, queue *eventqueue.Queue) {
	if err := queue.Close(); err != nil {
		log.Warn(ctx, "failed to close event queue", "error", err)
	}
}
