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
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/eventqueue"
	"github.com/zhaohuiwang/a2a-samples-sub000/a2asrv/taskstore"
	"github.com/zhaohuiwang/a2a-samples-sub000/internal/testutil"
)

var ignoreTimestamps = cmpopts.IgnoreFields(a2a.TaskStatus{}, "Timestamp")

func TestRequestHandler_SendMessage(t *testing.T) {
	boom := errors.New("boom")

	testCases := []struct {
		name          string
		events        func(reqCtx *RequestContext) []a2a.Event
		agentErr      error
		wantMessage   string
		wantState     a2a.TaskState
		wantArtifacts int
		wantStatusMsg string
	}{
		{
			name: "message returned as a result",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("hello"))}
			},
			wantMessage: "hello",
		},
		{
			name: "task completed",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{
					a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
					a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil),
					a2a.NewArtifactEvent(reqCtx, a2a.NewTextPart("result")),
					a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil),
				}
			},
			wantState:     a2a.TaskStateCompleted,
			wantArtifacts: 1,
		},
		{
			name: "status update creates the task",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)}
			},
			wantState: a2a.TaskStateCompleted,
		},
		{
			name: "input required",
			events: func(reqCtx *RequestContext) []a2a.Event {
				msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("need more input"))
				return []a2a.Event{
					a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
					a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateInputRequired, msg),
				}
			},
			wantState:     a2a.TaskStateInputRequired,
			wantStatusMsg: "need more input",
		},
		{
			name: "rejected",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateRejected, nil)}
			},
			wantState: a2a.TaskStateRejected,
		},
		{
			name: "executor error fails the task",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{a2a.NewSubmittedTask(reqCtx, reqCtx.Message)}
			},
			agentErr:      boom,
			wantState:     a2a.TaskStateFailed,
			wantStatusMsg: "boom",
		},
		{
			name:          "executor error before any event",
			agentErr:      boom,
			wantState:     a2a.TaskStateFailed,
			wantStatusMsg: "boom",
		},
		{
			name: "invalid transition fails the task",
			events: func(reqCtx *RequestContext) []a2a.Event {
				return []a2a.Event{
					a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
					a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateUnknown, nil),
				}
			},
			wantState: a2a.TaskStateFailed,
		},
		{
			name: "event for a foreign task fails the task",
			events: func(reqCtx *RequestContext) []a2a.Event {
				other := a2a.TaskInfo{TaskID: "other", ContextID: reqCtx.ContextID}
				return []a2a.Event{a2a.NewStatusUpdateEvent(other, a2a.TaskStateWorking, nil)}
			},
			wantState: a2a.TaskStateFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := t.Context()
			store := testutil.NewTestTaskStore()
			handler := newTestHandler(newGeneratorAgent(tc.events, tc.agentErr), WithTaskStore(store))

			msg := newUserMessage("hi")
			result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg})
			if err != nil {
				t.Fatalf("OnSendMessage() error = %v, want nil", err)
			}

			if tc.wantMessage != "" {
				reply, ok := result.(*a2a.Message)
				if !ok {
					t.Fatalf("OnSendMessage() result = %T, want *a2a.Message", result)
				}
				if got := textOf(t, reply); got != tc.wantMessage {
					t.Fatalf("OnSendMessage() reply text = %q, want %q", got, tc.wantMessage)
				}
				return
			}

			task, ok := result.(*a2a.Task)
			if !ok {
				t.Fatalf("OnSendMessage() result = %T, want *a2a.Task", result)
			}
			if task.Status.State != tc.wantState {
				t.Errorf("OnSendMessage() state = %q, want %q", task.Status.State, tc.wantState)
			}
			if len(task.Artifacts) != tc.wantArtifacts {
				t.Errorf("OnSendMessage() artifacts = %d, want %d", len(task.Artifacts), tc.wantArtifacts)
			}
			if !task.HasMessage(msg.ID) {
				t.Errorf("OnSendMessage() history = %v, want it to contain the user message", task.History)
			}
			if tc.wantStatusMsg != "" {
				if got := textOf(t, task.Status.Message); !strings.Contains(got, tc.wantStatusMsg) {
					t.Errorf("OnSendMessage() status message = %q, want it to contain %q", got, tc.wantStatusMsg)
				}
			}

			stored, err := store.Get(ctx, task.ID)
			if err != nil {
				t.Fatalf("store.Get() error = %v", err)
			}
			if diff := cmp.Diff(task, stored, ignoreTimestamps); diff != "" {
				t.Errorf("stored task differs from the result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestHandler_SendMessage_AgentExecutorPanicFailsTask(t *testing.T) {
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		panic("oops")
	})
	handler := newTestHandler(agent)

	result, err := handler.OnSendMessage(t.Context(), &a2a.MessageSendParams{Message: newUserMessage("hi")})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v, want nil", err)
	}
	task := result.(*a2a.Task)
	if task.Status.State != a2a.TaskStateFailed {
		t.Fatalf("OnSendMessage() state = %q, want %q", task.Status.State, a2a.TaskStateFailed)
	}
	if got := textOf(t, task.Status.Message); !strings.Contains(got, "oops") {
		t.Errorf("OnSendMessage() status message = %q, want it to contain the panic value", got)
	}
}

func TestRequestHandler_SendMessage_NoEvents(t *testing.T) {
	handler := newTestHandler(newGeneratorAgent(nil, nil))

	_, err := handler.OnSendMessage(t.Context(), &a2a.MessageSendParams{Message: newUserMessage("hi")})
	if err == nil {
		t.Fatal("OnSendMessage() error = nil, want an error for an execution without result")
	}
}

func TestRequestHandler_SendMessage_InvalidParams(t *testing.T) {
	completed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	working := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}

	testCases := []struct {
		name    string
		params  *a2a.MessageSendParams
		wantErr error
	}{
		{name: "nil params", params: nil, wantErr: a2a.ErrInvalidParams},
		{name: "nil message", params: &a2a.MessageSendParams{}, wantErr: a2a.ErrInvalidParams},
		{
			name:    "message without parts",
			params:  &a2a.MessageSendParams{Message: &a2a.Message{ID: "m", Role: a2a.MessageRoleUser}},
			wantErr: a2a.ErrInvalidParams,
		},
		{
			name:    "terminal task",
			params:  &a2a.MessageSendParams{Message: newUserMessageForTask(completed, "more")},
			wantErr: a2a.ErrInvalidParams,
		},
		{
			name:    "unknown task",
			params:  &a2a.MessageSendParams{Message: newUserMessageForTask(&a2a.Task{ID: "missing"}, "more")},
			wantErr: a2a.ErrTaskNotFound,
		},
		{
			name: "context mismatch",
			params: &a2a.MessageSendParams{Message: newUserMessageForTask(
				&a2a.Task{ID: working.ID, ContextID: "another"}, "more",
			)},
			wantErr: a2a.ErrInvalidParams,
		},
		{
			name: "push config without capability",
			params: &a2a.MessageSendParams{
				Message: newUserMessage("hi"),
				Config:  &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com"}},
			},
			wantErr: a2a.ErrPushNotificationNotSupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := testutil.NewTestTaskStore().WithTasks(t, completed, working)
			handler := newTestHandler(newGeneratorAgent(nil, nil), WithTaskStore(store))

			_, err := handler.OnSendMessage(t.Context(), tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnSendMessage() error = %v, want %v", err, tc.wantErr)
			}

			events, err := collectEvents(handler.OnSendMessageStream(t.Context(), tc.params))
			if !errors.Is(err, tc.wantErr) || len(events) > 0 {
				t.Fatalf("OnSendMessageStream() = (%v, %v), want error %v", events, err, tc.wantErr)
			}
		})
	}
}

func TestRequestHandler_SendMessage_ContinuesTask(t *testing.T) {
	ctx := t.Context()
	earlier := newUserMessage("first")
	seed := &a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: a2a.NewContextID(),
		History:   []*a2a.Message{earlier},
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	}
	store := testutil.NewTestTaskStore().WithTasks(t, seed)

	var gotReqCtx *RequestContext
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		gotReqCtx = reqCtx
		if err := q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
			return err
		}
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent, WithTaskStore(store))

	msg := newUserMessageForTask(seed, "second")
	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	task := result.(*a2a.Task)
	if task.ID != seed.ID || task.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("OnSendMessage() = task %s in %q, want task %s in %q", task.ID, task.Status.State, seed.ID, a2a.TaskStateCompleted)
	}
	gotHistory := []string{}
	for _, m := range task.History {
		gotHistory = append(gotHistory, m.ID)
	}
	if diff := cmp.Diff([]string{earlier.ID, msg.ID}, gotHistory); diff != "" {
		t.Errorf("OnSendMessage() history ids (-want +got):\n%s", diff)
	}

	if gotReqCtx.StoredTask == nil || gotReqCtx.StoredTask.ID != seed.ID {
		t.Fatalf("RequestContext.StoredTask = %v, want task %s", gotReqCtx.StoredTask, seed.ID)
	}
	if !gotReqCtx.StoredTask.HasMessage(msg.ID) {
		t.Error("RequestContext.StoredTask history does not contain the new message")
	}
	if gotReqCtx.ContextID != seed.ContextID {
		t.Errorf("RequestContext.ContextID = %q, want %q", gotReqCtx.ContextID, seed.ContextID)
	}
}

func TestRequestHandler_SendMessage_HistoryLength(t *testing.T) {
	ctx := t.Context()
	seed := &a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: a2a.NewContextID(),
		History:   []*a2a.Message{newUserMessage("1"), newUserMessage("2"), newUserMessage("3")},
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	}
	store := testutil.NewTestTaskStore().WithTasks(t, seed)
	handler := newTestHandler(newGeneratorAgent(func(reqCtx *RequestContext) []a2a.Event {
		return []a2a.Event{a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)}
	}, nil), WithTaskStore(store))

	msg := newUserMessageForTask(seed, "4")
	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: msg,
		Config:  &a2a.MessageSendConfig{HistoryLength: ptr(2)},
	})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)
	if len(task.History) != 2 || task.History[1].ID != msg.ID {
		t.Fatalf("OnSendMessage() history = %v, want the 2 most recent messages", task.History)
	}

	stored, err := store.Get(ctx, seed.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if len(stored.History) != 4 {
		t.Errorf("stored history length = %d, want 4", len(stored.History))
	}
}

func TestRequestHandler_SendMessage_NonBlocking(t *testing.T) {
	ctx := t.Context()
	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent)

	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: newUserMessage("hi"),
		Config:  &a2a.MessageSendConfig{Blocking: ptr(false)},
	})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)
	if task.Status.State != a2a.TaskStateSubmitted {
		t.Fatalf("OnSendMessage() state = %q, want %q", task.Status.State, a2a.TaskStateSubmitted)
	}

	close(release)
	waitForState(t, handler, task.ID, a2a.TaskStateCompleted)
}

func TestRequestHandler_SendMessage_ExecutionInProgress(t *testing.T) {
	ctx := t.Context()
	seed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}}
	store := testutil.NewTestTaskStore().WithTasks(t, seed)

	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent, WithTaskStore(store))
	defer close(release)

	nonBlocking := &a2a.MessageSendConfig{Blocking: ptr(false)}
	if _, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: newUserMessageForTask(seed, "first"), Config: nonBlocking}); err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	second := newUserMessageForTask(seed, "second")
	_, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: second, Config: nonBlocking})
	if !errors.Is(err, a2a.ErrInvalidParams) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrInvalidParams)
	}

	stored, err := store.Get(ctx, seed.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if stored.HasMessage(second.ID) {
		t.Error("rejected message was added to the task history")
	}
}

func TestRequestHandler_SendMessage_RedeliveredMessageAttaches(t *testing.T) {
	ctx := t.Context()
	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent)

	msg := newUserMessage("hi")
	first, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg, Config: &a2a.MessageSendConfig{Blocking: ptr(false)}})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	type outcome struct {
		result a2a.SendMessageResult
		err    error
	}
	secondCh := make(chan outcome, 1)
	go func() {
		result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg})
		secondCh <- outcome{result, err}
	}()

	// the redelivery must be attached before the execution finishes
	time.Sleep(50 * time.Millisecond)
	close(release)

	second := <-secondCh
	if second.err != nil {
		t.Fatalf("OnSendMessage() redelivery error = %v", second.err)
	}
	firstTask, secondTask := first.(*a2a.Task), second.result.(*a2a.Task)
	if firstTask.ID != secondTask.ID {
		t.Errorf("redelivered message got task %s, want %s", secondTask.ID, firstTask.ID)
	}
	if secondTask.Status.State != a2a.TaskStateCompleted {
		t.Errorf("redelivered message state = %q, want %q", secondTask.Status.State, a2a.TaskStateCompleted)
	}
}

func TestRequestHandler_SendMessage_ConcurrencyLimit(t *testing.T) {
	ctx := t.Context()
	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent, WithMaxConcurrentExecutions(1))
	defer close(release)

	nonBlocking := &a2a.MessageSendConfig{Blocking: ptr(false)}
	if _, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: newUserMessage("1"), Config: nonBlocking}); err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	_, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: newUserMessage("2"), Config: nonBlocking})
	if !errors.Is(err, a2a.ErrServerError) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrServerError)
	}
}

func TestRequestHandler_SendMessage_ConcurrencyLimitLeavesTaskUntouched(t *testing.T) {
	ctx := t.Context()
	seed := &a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: a2a.NewContextID(),
		History:   []*a2a.Message{newUserMessage("first")},
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	}
	store := testutil.NewTestTaskStore().WithTasks(t, seed)
	pushStore := testutil.NewTestPushConfigStore()

	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent,
		WithTaskStore(store),
		WithPushNotifications(pushStore, testutil.NewTestPushSender()),
		WithMaxConcurrentExecutions(1),
	)
	defer close(release)

	nonBlocking := &a2a.MessageSendConfig{Blocking: ptr(false)}
	if _, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: newUserMessage("busy"), Config: nonBlocking}); err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	followUp := newUserMessageForTask(seed, "second")
	_, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: followUp,
		Config:  &a2a.MessageSendConfig{Blocking: ptr(false), PushConfig: &a2a.PushConfig{URL: "https://example.com/hook"}},
	})
	if !errors.Is(err, a2a.ErrServerError) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrServerError)
	}

	stored, err := store.Get(ctx, seed.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if len(stored.History) != 1 || stored.HasMessage(followUp.ID) {
		t.Errorf("stored history has %d messages after a rejected follow-up, want 1", len(stored.History))
	}
	if stored.Status.State != a2a.TaskStateInputRequired {
		t.Errorf("stored state = %q, want %q", stored.Status.State, a2a.TaskStateInputRequired)
	}
	configs, err := pushStore.List(ctx, seed.ID)
	if err != nil {
		t.Fatalf("pushStore.List() error = %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("push configs saved for a rejected message: %v", configs)
	}
}

func TestRequestHandler_SendMessage_StoreFailure(t *testing.T) {
	store := testutil.NewTestTaskStore().SetSaveError(errors.New("db down"))
	handler := newTestHandler(newGeneratorAgent(func(reqCtx *RequestContext) []a2a.Event {
		return []a2a.Event{a2a.NewSubmittedTask(reqCtx, reqCtx.Message)}
	}, nil), WithTaskStore(store))

	_, err := handler.OnSendMessage(t.Context(), &a2a.MessageSendParams{Message: newUserMessage("hi")})
	if !errors.Is(err, taskstore.ErrStorage) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, taskstore.ErrStorage)
	}
}

func TestRequestHandler_SendMessage_RequestContext(t *testing.T) {
	ctx := t.Context()
	referenced := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	store := testutil.NewTestTaskStore().WithTasks(t, referenced)

	var gotReqCtx *RequestContext
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		gotReqCtx = reqCtx
		return q.Write(ctx, a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("ok")))
	})

	metaInterceptor := interceptReqCtxFn(func(ctx context.Context, reqCtx *RequestContext) (context.Context, error) {
		reqCtx.Metadata = map[string]any{"intercepted": true}
		return ctx, nil
	})
	auth := &BearerAuthInterceptor{Authenticate: func(ctx context.Context, token string) (*User, error) {
		return NewAuthenticatedUser(token, nil), nil
	}}
	handler := newTestHandler(
		agent,
		WithTaskStore(store),
		WithCallInterceptor(auth),
		WithRequestContextInterceptor(&ReferencedTasksLoader{Store: store}),
		WithRequestContextInterceptor(metaInterceptor),
	)

	msg := newUserMessage("hi")
	msg.ContextID = "ctx-1"
	msg.ReferenceTasks = []a2a.TaskID{referenced.ID, "missing"}
	ctx, _ = NewCallContext(ctx, NewServiceParams(map[string][]string{"Authorization": {"Bearer alice"}}))
	if _, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg}); err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	if gotReqCtx.ContextID != "ctx-1" {
		t.Errorf("RequestContext.ContextID = %q, want the message context id", gotReqCtx.ContextID)
	}
	if gotReqCtx.TaskID == "" {
		t.Error("RequestContext.TaskID is empty, want a generated id")
	}
	if gotReqCtx.User == nil || gotReqCtx.User.Name != "alice" {
		t.Errorf("RequestContext.User = %v, want alice", gotReqCtx.User)
	}
	if len(gotReqCtx.RelatedTasks) != 1 || gotReqCtx.RelatedTasks[0].ID != referenced.ID {
		t.Errorf("RequestContext.RelatedTasks = %v, want [%s]", gotReqCtx.RelatedTasks, referenced.ID)
	}
	if gotReqCtx.Metadata["intercepted"] != true {
		t.Errorf("RequestContext.Metadata = %v, want the interceptor changes", gotReqCtx.Metadata)
	}
}

func TestRequestHandler_RequestContextInterceptorRejectsRequest(t *testing.T) {
	wantErr := errors.New("rejected")
	executed := false
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		executed = true
		return nil
	})
	handler := newTestHandler(agent, WithRequestContextInterceptor(interceptReqCtxFn(
		func(ctx context.Context, reqCtx *RequestContext) (context.Context, error) {
			return ctx, wantErr
		},
	)))

	_, err := handler.OnSendMessage(t.Context(), &a2a.MessageSendParams{Message: newUserMessage("hi")})
	if !errors.Is(err, wantErr) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, wantErr)
	}
	if executed {
		t.Error("agent was executed, want the interceptor to reject the request")
	}
}

func TestRequestHandler_LoadsReferencedTasksByDefault(t *testing.T) {
	ctx := t.Context()
	referenced := &a2a.Task{ID: a2a.NewTaskID(), ContextID: "ctx-1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	store := testutil.NewTestTaskStore().WithTasks(t, referenced)

	var related []*a2a.Task
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		related = reqCtx.RelatedTasks
		return q.Write(ctx, a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.NewTextPart("ok")))
	})
	var seenByInterceptor int
	handler := newTestHandler(agent, WithTaskStore(store), WithRequestContextInterceptor(interceptReqCtxFn(
		func(ctx context.Context, reqCtx *RequestContext) (context.Context, error) {
			seenByInterceptor = len(reqCtx.RelatedTasks)
			return ctx, nil
		},
	)))

	msg := newUserMessage("follow up on the report")
	msg.ReferenceTasks = []a2a.TaskID{referenced.ID, "missing"}
	if _, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{Message: msg}); err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}

	if diff := cmp.Diff([]*a2a.Task{referenced}, related); diff != "" {
		t.Errorf("RequestContext.RelatedTasks (-want +got):\n%s", diff)
	}
	if seenByInterceptor != 1 {
		t.Errorf("interceptor saw %d related tasks, want them loaded before it runs", seenByInterceptor)
	}
}

func TestRequestHandler_SendMessageStream(t *testing.T) {
	ctx := t.Context()
	handler := newTestHandler(newGeneratorAgent(func(reqCtx *RequestContext) []a2a.Event {
		return []a2a.Event{
			a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
			a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil),
			a2a.NewArtifactEvent(reqCtx, a2a.NewTextPart("chunk")),
			a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil),
		}
	}, nil))

	events, err := collectEvents(handler.OnSendMessageStream(ctx, &a2a.MessageSendParams{Message: newUserMessage("hi")}))
	if err != nil {
		t.Fatalf("OnSendMessageStream() error = %v", err)
	}

	var gotKinds []string
	for _, ev := range events {
		gotKinds = append(gotKinds, eventKind(ev))
	}
	wantKinds := []string{"task:submitted", "status:working", "artifact", "status:completed"}
	if diff := cmp.Diff(wantKinds, gotKinds); diff != "" {
		t.Fatalf("OnSendMessageStream() events (-want +got):\n%s", diff)
	}

	taskID := events[0].TaskInfo().TaskID
	for _, ev := range events {
		if ev.TaskInfo().TaskID != taskID {
			t.Errorf("event %T belongs to task %s, want %s", ev, ev.TaskInfo().TaskID, taskID)
		}
	}
}

func TestRequestHandler_SendMessageStream_EarlyExit(t *testing.T) {
	ctx := t.Context()
	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent)

	var taskID a2a.TaskID
	for event, err := range handler.OnSendMessageStream(ctx, &a2a.MessageSendParams{Message: newUserMessage("hi")}) {
		if err != nil {
			t.Fatalf("OnSendMessageStream() error = %v", err)
		}
		taskID = event.TaskInfo().TaskID
		break
	}

	// the execution outlives the client
	close(release)
	waitForState(t, handler, taskID, a2a.TaskStateCompleted)
}

func TestRequestHandler_Capabilities(t *testing.T) {
	ctx := t.Context()
	handler := newTestHandler(newGeneratorAgent(nil, nil), WithCapabilities(a2a.AgentCapabilities{}))

	_, err := collectEvents(handler.OnSendMessageStream(ctx, &a2a.MessageSendParams{Message: newUserMessage("hi")}))
	if !errors.Is(err, a2a.ErrUnsupportedOperation) {
		t.Errorf("OnSendMessageStream() error = %v, want %v", err, a2a.ErrUnsupportedOperation)
	}
	_, err = collectEvents(handler.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: "task"}))
	if !errors.Is(err, a2a.ErrUnsupportedOperation) {
		t.Errorf("OnResubscribeToTask() error = %v, want %v", err, a2a.ErrUnsupportedOperation)
	}
	_, err = handler.OnListTaskPushConfig(ctx, &a2a.ListTaskPushConfigParams{TaskID: "task"})
	if !errors.Is(err, a2a.ErrPushNotificationNotSupported) {
		t.Errorf("OnListTaskPushConfig() error = %v, want %v", err, a2a.ErrPushNotificationNotSupported)
	}
}

func TestRequestHandler_GetTask(t *testing.T) {
	seed := &a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: a2a.NewContextID(),
		History:   []*a2a.Message{newUserMessage("1"), newUserMessage("2"), newUserMessage("3")},
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	}

	testCases := []struct {
		name        string
		params      *a2a.TaskQueryParams
		wantHistory int
		wantErr     error
	}{
		{name: "full history", params: &a2a.TaskQueryParams{ID: seed.ID}, wantHistory: 3},
		{name: "truncated history", params: &a2a.TaskQueryParams{ID: seed.ID, HistoryLength: ptr(1)}, wantHistory: 1},
		{name: "history length exceeds history", params: &a2a.TaskQueryParams{ID: seed.ID, HistoryLength: ptr(10)}, wantHistory: 3},
		{name: "zero history length", params: &a2a.TaskQueryParams{ID: seed.ID, HistoryLength: ptr(0)}, wantHistory: 0},
		{name: "missing task", params: &a2a.TaskQueryParams{ID: "missing"}, wantErr: a2a.ErrTaskNotFound},
		{name: "missing id", params: &a2a.TaskQueryParams{}, wantErr: a2a.ErrInvalidParams},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := testutil.NewTestTaskStore().WithTasks(t, seed)
			handler := newTestHandler(newGeneratorAgent(nil, nil), WithTaskStore(store))

			task, err := handler.OnGetTask(t.Context(), tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnGetTask() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				return
			}
			if len(task.History) != tc.wantHistory {
				t.Fatalf("OnGetTask() history length = %d, want %d", len(task.History), tc.wantHistory)
			}
			if tc.wantHistory > 0 && task.History[len(task.History)-1].ID != seed.History[2].ID {
				t.Errorf("OnGetTask() last history message = %s, want the most recent one", task.History[len(task.History)-1].ID)
			}
		})
	}
}

func TestRequestHandler_CancelTask(t *testing.T) {
	working := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	completed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	canceled := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateCanceled}}

	testCases := []struct {
		name      string
		taskID    a2a.TaskID
		wantState a2a.TaskState
		wantErr   error
	}{
		{name: "stored task without execution", taskID: working.ID, wantState: a2a.TaskStateCanceled},
		{name: "completed task", taskID: completed.ID, wantErr: a2a.ErrTaskNotCancelable},
		{name: "already canceled task", taskID: canceled.ID, wantErr: a2a.ErrTaskNotCancelable},
		{name: "missing task", taskID: "missing", wantErr: a2a.ErrTaskNotFound},
		{name: "missing id", wantErr: a2a.ErrInvalidParams},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := t.Context()
			store := testutil.NewTestTaskStore().WithTasks(t, working, completed, canceled)
			handler := newTestHandler(newGeneratorAgent(nil, nil), WithTaskStore(store))

			task, err := handler.OnCancelTask(ctx, &a2a.TaskIDParams{ID: tc.taskID})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnCancelTask() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				return
			}
			if task.Status.State != tc.wantState {
				t.Fatalf("OnCancelTask() state = %q, want %q", task.Status.State, tc.wantState)
			}
			stored, err := store.Get(ctx, tc.taskID)
			if err != nil {
				t.Fatalf("store.Get() error = %v", err)
			}
			if stored.Status.State != tc.wantState {
				t.Errorf("stored state = %q, want %q", stored.Status.State, tc.wantState)
			}
		})
	}
}

func TestRequestHandler_CancelTask_LiveExecution(t *testing.T) {
	ignoresCancel := func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}
	cooperates := func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reqCtx.Canceled():
			return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil))
		}
	}
	completesInstead := func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-reqCtx.Canceled()
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	}
	stopsSilently := func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-reqCtx.Canceled()
		return nil
	}

	testCases := []struct {
		name      string
		policy    CancelPolicy
		agent     AgentExecutorFunc
		wantState a2a.TaskState
		wantErr   error
	}{
		{name: "immediate with agent ignoring cancelation", policy: CancelImmediate, agent: ignoresCancel, wantState: a2a.TaskStateCanceled},
		{name: "immediate with cooperating agent", policy: CancelImmediate, agent: cooperates, wantState: a2a.TaskStateCanceled},
		{name: "wait for cooperating agent", policy: CancelWaitForExecutor, agent: cooperates, wantState: a2a.TaskStateCanceled},
		{name: "wait for agent which completes", policy: CancelWaitForExecutor, agent: completesInstead, wantErr: a2a.ErrTaskNotCancelable},
		{name: "wait for agent which stops silently", policy: CancelWaitForExecutor, agent: stopsSilently, wantState: a2a.TaskStateCanceled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := t.Context()
			handler := newTestHandler(tc.agent, WithCancelPolicy(tc.policy))

			result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
				Message: newUserMessage("hi"),
				Config:  &a2a.MessageSendConfig{Blocking: ptr(false)},
			})
			if err != nil {
				t.Fatalf("OnSendMessage() error = %v", err)
			}
			taskID := result.(*a2a.Task).ID

			task, err := handler.OnCancelTask(ctx, &a2a.TaskIDParams{ID: taskID})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnCancelTask() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				return
			}
			if task.Status.State != tc.wantState {
				t.Fatalf("OnCancelTask() state = %q, want %q", task.Status.State, tc.wantState)
			}
			waitForState(t, handler, taskID, tc.wantState)
		})
	}
}

func TestRequestHandler_CancelTask_StreamObservesCancelation(t *testing.T) {
	ctx := t.Context()
	handler := newTestHandler(AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}))

	var events []a2a.Event
	for event, err := range handler.OnSendMessageStream(ctx, &a2a.MessageSendParams{Message: newUserMessage("hi")}) {
		if err != nil {
			t.Fatalf("OnSendMessageStream() error = %v", err)
		}
		events = append(events, event)
		if len(events) == 1 {
			if _, err := handler.OnCancelTask(ctx, &a2a.TaskIDParams{ID: event.TaskInfo().TaskID}); err != nil {
				t.Fatalf("OnCancelTask() error = %v", err)
			}
		}
	}

	if got := eventKind(events[len(events)-1]); got != "status:canceled" {
		t.Fatalf("OnSendMessageStream() last event = %s, want status:canceled", got)
	}
}

func TestRequestHandler_ResubscribeToTask(t *testing.T) {
	ctx := t.Context()
	release := make(chan struct{})
	agent := AgentExecutorFunc(func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if err := q.Write(ctx, a2a.NewSubmittedTask(reqCtx, reqCtx.Message)); err != nil {
			return err
		}
		<-release
		if err := q.Write(ctx, a2a.NewArtifactEvent(reqCtx, a2a.NewTextPart("result"))); err != nil {
			return err
		}
		return q.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil))
	})
	handler := newTestHandler(agent)

	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: newUserMessage("hi"),
		Config:  &a2a.MessageSendConfig{Blocking: ptr(false)},
	})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID

	var kinds []string
	for event, err := range handler.OnResubscribeToTask(ctx, &a2a.TaskIDParams{ID: taskID}) {
		if err != nil {
			t.Fatalf("OnResubscribeToTask() error = %v", err)
		}
		kinds = append(kinds, eventKind(event))
		if len(kinds) == 1 {
			close(release)
		}
	}

	wantKinds := []string{"task:submitted", "artifact", "status:completed"}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Fatalf("OnResubscribeToTask() events (-want +got):\n%s", diff)
	}
}

func TestRequestHandler_ResubscribeToTask_Snapshot(t *testing.T) {
	completed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	idle := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}}

	testCases := []struct {
		name    string
		taskID  a2a.TaskID
		want    []a2a.Event
		wantErr error
	}{
		{name: "terminal task", taskID: completed.ID, want: []a2a.Event{completed}},
		{name: "task without execution", taskID: idle.ID, want: []a2a.Event{idle}},
		{name: "missing task", taskID: "missing", wantErr: a2a.ErrTaskNotFound},
		{name: "missing id", wantErr: a2a.ErrInvalidParams},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := testutil.NewTestTaskStore().WithTasks(t, completed, idle)
			handler := newTestHandler(newGeneratorAgent(nil, nil), WithTaskStore(store))

			got, err := collectEvents(handler.OnResubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: tc.taskID}))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnResubscribeToTask() error = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, got, ignoreTimestamps, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("OnResubscribeToTask() events (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestHandler_PushConfig(t *testing.T) {
	ctx := t.Context()
	seed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	store := testutil.NewTestTaskStore().WithTasks(t, seed)
	configStore := testutil.NewTestPushConfigStore()
	handler := newTestHandler(
		newGeneratorAgent(nil, nil),
		WithTaskStore(store),
		WithPushNotifications(configStore, testutil.NewTestPushSender()),
	)

	saved, err := handler.OnSetTaskPushConfig(ctx, &a2a.TaskPushConfig{
		TaskID: seed.ID,
		Config: a2a.PushConfig{URL: "https://example.com/push", Token: "secret"},
	})
	if err != nil {
		t.Fatalf("OnSetTaskPushConfig() error = %v", err)
	}
	if saved.Config.ID == "" {
		t.Fatal("OnSetTaskPushConfig() config id is empty, want a generated one")
	}

	got, err := handler.OnGetTaskPushConfig(ctx, &a2a.GetTaskPushConfigParams{TaskID: seed.ID, ConfigID: saved.Config.ID})
	if err != nil {
		t.Fatalf("OnGetTaskPushConfig() error = %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("OnGetTaskPushConfig() (-want +got):\n%s", diff)
	}

	got, err = handler.OnGetTaskPushConfig(ctx, &a2a.GetTaskPushConfigParams{TaskID: seed.ID})
	if err != nil {
		t.Fatalf("OnGetTaskPushConfig() without config id error = %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("OnGetTaskPushConfig() without config id (-want +got):\n%s", diff)
	}

	list, err := handler.OnListTaskPushConfig(ctx, &a2a.ListTaskPushConfigParams{TaskID: seed.ID})
	if err != nil {
		t.Fatalf("OnListTaskPushConfig() error = %v", err)
	}
	if diff := cmp.Diff([]*a2a.TaskPushConfig{saved}, list); diff != "" {
		t.Errorf("OnListTaskPushConfig() (-want +got):\n%s", diff)
	}

	if err := handler.OnDeleteTaskPushConfig(ctx, &a2a.DeleteTaskPushConfigParams{TaskID: seed.ID, ConfigID: saved.Config.ID}); err != nil {
		t.Fatalf("OnDeleteTaskPushConfig() error = %v", err)
	}
	list, err = handler.OnListTaskPushConfig(ctx, &a2a.ListTaskPushConfigParams{TaskID: seed.ID})
	if err != nil {
		t.Fatalf("OnListTaskPushConfig() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("OnListTaskPushConfig() after delete = %v, want empty", list)
	}

	_, err = handler.OnGetTaskPushConfig(ctx, &a2a.GetTaskPushConfigParams{TaskID: seed.ID, ConfigID: saved.Config.ID})
	if !errors.Is(err, a2a.ErrInvalidParams) {
		t.Errorf("OnGetTaskPushConfig() for deleted config error = %v, want %v", err, a2a.ErrInvalidParams)
	}
}

func TestRequestHandler_PushConfig_Errors(t *testing.T) {
	seed := &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID(), Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}

	testCases := []struct {
		name    string
		options []RequestHandlerOption
		taskID  a2a.TaskID
		config  a2a.PushConfig
		wantErr error
	}{
		{
			name:    "push not supported",
			taskID:  seed.ID,
			config:  a2a.PushConfig{URL: "https://example.com"},
			wantErr: a2a.ErrPushNotificationNotSupported,
		},
		{
			name:    "missing task",
			options: []RequestHandlerOption{WithPushNotifications(testutil.NewTestPushConfigStore(), testutil.NewTestPushSender())},
			taskID:  "missing",
			config:  a2a.PushConfig{URL: "https://example.com"},
			wantErr: a2a.ErrTaskNotFound,
		},
		{
			name:    "invalid url",
			options: []RequestHandlerOption{WithPushNotifications(testutil.NewTestPushConfigStore(), testutil.NewTestPushSender())},
			taskID:  seed.ID,
			config:  a2a.PushConfig{URL: "not a url"},
			wantErr: a2a.ErrInvalidParams,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := testutil.NewTestTaskStore().WithTasks(t, seed)
			opts := append([]RequestHandlerOption{WithTaskStore(store)}, tc.options...)
			handler := newTestHandler(newGeneratorAgent(nil, nil), opts...)

			_, err := handler.OnSetTaskPushConfig(t.Context(), &a2a.TaskPushConfig{TaskID: tc.taskID, Config: tc.config})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnSetTaskPushConfig() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRequestHandler_SendMessage_PushNotifications(t *testing.T) {
	ctx := t.Context()
	configStore := testutil.NewTestPushConfigStore()
	sender := testutil.NewTestPushSender()
	handler := newTestHandler(newGeneratorAgent(func(reqCtx *RequestContext) []a2a.Event {
		return []a2a.Event{
			a2a.NewSubmittedTask(reqCtx, reqCtx.Message),
			a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil),
			a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil),
		}
	}, nil), WithPushNotifications(configStore, sender))

	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: newUserMessage("hi"),
		Config:  &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com/push"}},
	})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)

	configs, err := configStore.List(ctx, task.ID)
	if err != nil || len(configs) != 1 {
		t.Fatalf("configStore.List() = (%v, %v), want one config", configs, err)
	}

	var states []a2a.TaskState
	for _, pushed := range sender.PushedTasks() {
		states = append(states, pushed.Status.State)
	}
	wantStates := []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateCompleted}
	if diff := cmp.Diff(wantStates, states); diff != "" {
		t.Errorf("pushed task states (-want +got):\n%s", diff)
	}
}

func TestRequestHandler_SendMessage_PushFailureDoesNotFailTask(t *testing.T) {
	ctx := t.Context()
	configStore := testutil.NewTestPushConfigStore()
	sender := testutil.NewTestPushSender().SetSendPushError(errors.New("endpoint down"))
	handler := newTestHandler(newGeneratorAgent(func(reqCtx *RequestContext) []a2a.Event {
		return []a2a.Event{a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)}
	}, nil), WithPushNotifications(configStore, sender))

	result, err := handler.OnSendMessage(ctx, &a2a.MessageSendParams{
		Message: newUserMessage("hi"),
		Config:  &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com/push"}},
	})
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	if state := result.(*a2a.Task).Status.State; state != a2a.TaskStateCompleted {
		t.Errorf("OnSendMessage() state = %q, want %q", state, a2a.TaskStateCompleted)
	}
	if len(sender.PushedTasks()) == 0 {
		t.Error("push sender was not invoked")
	}
}

type interceptReqCtxFn func(context.Context, *RequestContext) (context.Context, error)

func (fn interceptReqCtxFn) Intercept(ctx context.Context, reqCtx *RequestContext) (context.Context, error) {
	return fn(ctx, reqCtx)
}

// newGeneratorAgent returns an agent which writes the generated events and returns err.
func newGeneratorAgent(generate func(reqCtx *RequestContext) []a2a.Event, err error) AgentExecutorFunc {
	return func(ctx context.Context, reqCtx *RequestContext, q eventqueue.Writer) error {
		if generate != nil {
			for _, event := range generate(reqCtx) {
				if werr := q.Write(ctx, event); werr != nil {
					return werr
				}
			}
		}
		return err
	}
}

func newTestHandler(agent AgentExecutor, opts ...RequestHandlerOption) RequestHandler {
	return NewHandler(agent, opts...)
}

func newUserMessage(text string) *a2a.Message {
	return a2a.NewMessage(a2a.MessageRoleUser, a2a.NewTextPart(text))
}

func newUserMessageForTask(task *a2a.Task, text string) *a2a.Message {
	return a2a.NewMessageForTask(a2a.MessageRoleUser, task, a2a.NewTextPart(text))
}

func collectEvents(seq iter.Seq2[a2a.Event, error]) ([]a2a.Event, error) {
	var events []a2a.Event
	for event, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func eventKind(event a2a.Event) string {
	switch v := event.(type) {
	case *a2a.Task:
		return "task:" + string(v.Status.State)
	case *a2a.TaskStatusUpdateEvent:
		return "status:" + string(v.Status.State)
	case *a2a.TaskArtifactUpdateEvent:
		return "artifact"
	case *a2a.Message:
		return "message"
	default:
		return "unknown"
	}
}

func waitForState(t *testing.T, handler RequestHandler, taskID a2a.TaskID, want a2a.TaskState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		task, err := handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
		if err == nil && task.Status.State == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s did not reach %q, last = (%v, %v)", taskID, want, task, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func ptr[T any](v T) *T {
	return &v
}
