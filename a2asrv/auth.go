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
	"strings"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
)

// User can be attached to [CallContext] by authentication middleware. The agent executor
// finds it in [RequestContext.User].
type User struct {
	// Name is a username.
	Name string
	// Authenticated is true if the request was authenticated.
	Authenticated bool
	// Attributes is a map of attributes associated with the user.
	Attributes map[string]any
}

// NewAuthenticatedUser returns a new [User] instance with the specified username and attributes.
func NewAuthenticatedUser(username string, attrs map[string]any) *User {
	return &User{
		Name:          username,
		Attributes:    attrs,
		Authenticated: true,
	}
}

// BearerAuthenticator resolves a bearer token to a user. A nil user rejects the token.
type BearerAuthenticator func(ctx context.Context, token string) (*User, error)

// BearerAuthInterceptor is a [CallInterceptor] which authenticates calls carrying an
// "Authorization: Bearer" header. Calls without the header pass through unauthenticated
// unless Required is set.
type BearerAuthInterceptor struct {
	PassthroughCallInterceptor

	Authenticate BearerAuthenticator
	Required     bool
}

var _ CallInterceptor = (*BearerAuthInterceptor)(nil)

// Before implements [CallInterceptor].
func (i *BearerAuthInterceptor) Before(ctx context.Context, callCtx *CallContext, req *Request) (context.Context, any, error) {
	header := callCtx.ServiceParams().First("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		if i.Required {
			return ctx, nil, a2a.ErrUnauthenticated
		}
		return ctx, nil, nil
	}

	user, err := i.Authenticate(ctx, token)
	if err != nil {
		return ctx, nil, err
	}
	if user == nil {
		return ctx, nil, a2a.ErrUnauthenticated
	}
	callCtx.User = user
	return ctx, nil, nil
}
