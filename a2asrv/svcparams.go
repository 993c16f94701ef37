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
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/zhaohuiwang/a2a-samples-sub000/internal/jsonrpc"
)

// ServiceParams holds transport metadata of a request, HTTP headers or gRPC metadata.
// Keys are case-insensitive.
type ServiceParams struct {
	kv map[string][]string
}

// NewServiceParams is a [ServiceParams] constructor function.
func NewServiceParams(src map[string][]string) *ServiceParams {
	kv := make(map[string][]string, len(src))
	for k, v := range src {
		kv[strings.ToLower(k)] = slices.Clone(v)
	}
	return &ServiceParams{kv: kv}
}

// serviceParamsFromHeader copies the request headers.
func serviceParamsFromHeader(h http.Header) *ServiceParams {
	return NewServiceParams(h)
}

// Get performs a case-insensitive lookup of values for the given key.
func (sp *ServiceParams) Get(key string) ([]string, bool) {
	if sp == nil {
		return nil, false
	}
	val, ok := sp.kv[strings.ToLower(key)]
	return slices.Clone(val), ok
}

// First returns the first value of the key or an empty string.
func (sp *ServiceParams) First(key string) string {
	if vals, ok := sp.Get(key); ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// ProtocolVersion returns the value of the A2A-Version header, if the client sent one.
func (sp *ServiceParams) ProtocolVersion() string {
	return sp.First(jsonrpc.VersionHeader)
}

// List allows to inspect all values.
func (sp *ServiceParams) List() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		if sp == nil {
			return
		}
		for k, v := range sp.kv {
			if !yield(k, slices.Clone(v)) {
				return
			}
		}
	}
}
