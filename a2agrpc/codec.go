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

package a2agrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// CodecName is the content-subtype of A2A gRPC calls. Messages are the JSON documents of
// the JSON-RPC binding, so both bindings share one data model.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

var _ encoding.Codec = jsonCodec{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

// SendMessageResponse carries the [a2a.SendMessageResult] of SendMessage.
type SendMessageResponse struct {
	Result a2a.SendMessageResult
}

// MarshalJSON implements json.Marshaler.
func (r *SendMessageResponse) MarshalJSON() ([]byte, error) {
	if r.Result == nil {
		return nil, fmt.Errorf("empty send message response")
	}
	return json.Marshal(r.Result)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SendMessageResponse) UnmarshalJSON(data []byte) error {
	result, err := a2a.UnmarshalSendMessageResult(data)
	if err != nil {
		return err
	}
	r.Result = result
	return nil
}

// StreamResponse carries one [a2a.Event] of a streaming call.
type StreamResponse struct {
	Event a2a.Event
}

// MarshalJSON implements json.Marshaler.
func (r *StreamResponse) MarshalJSON() ([]byte, error) {
	if r.Event == nil {
		return nil, fmt.Errorf("empty stream response")
	}
	return json.Marshal(r.Event)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *StreamResponse) UnmarshalJSON(data []byte) error {
	event, err := a2a.UnmarshalEventJSON(data)
	if err != nil {
		return err
	}
	r.Event = event
	return nil
}

// ListTaskPushConfigResponse is the response of ListTaskPushNotificationConfig.
type ListTaskPushConfigResponse struct {
	Configs []*a2a.TaskPushConfig `json:"configs"`
}

// Empty is the response of methods which return nothing.
type Empty struct{}
