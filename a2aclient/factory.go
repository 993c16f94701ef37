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

package a2aclient

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/zhaohuiwang/a2a-samples-sub000/a2a"
	"github.com/zhaohuiwang/a2a-samples-sub000/log"
)

// Factory provides an API for creating a [Client] compatible with requested transports.
// Factory is immutable, but the configuration can be extended using [WithAdditionalOptions] call.
type Factory struct {
	config       Config
	interceptors []CallInterceptor
	transports   map[a2a.TransportProtocol]TransportFactory
}

// transportCandidate represents an Agent endpoint with the protocol supported by the Client
// and is used during the best compatible transport selection.
type transportCandidate struct {
	factory  TransportFactory
	endpoint a2a.AgentInterface
	// priority is determined by the index of endpoint.Transport in Config.PreferredTransports
	// or is set to len(Config.PreferredTransports) if Transport is not present in the config
	priority int
}

// defaultOptions is a set of default configurations applied to every Factory unless WithDefaultsDisabled was used.
var defaultOptions = []FactoryOption{WithJSONRPCTransport(nil)}

// NewFromCard is a client [Client] constructor method which takes an [a2a.AgentCard] as input.
// It is equivalent to [Factory].CreateFromCard method.
func NewFromCard(ctx context.Context, card *a2a.AgentCard, opts ...FactoryOption) (*Client, error) {
	return NewFactory(opts...).CreateFromCard(ctx, card)
}

// NewFromEndpoints is a [Client] constructor method which takes known [a2a.AgentInterface] descriptions as input.
// It is equivalent to [Factory].CreateFromEndpoints method.
func NewFromEndpoints(ctx context.Context, endpoints []a2a.AgentInterface, opts ...FactoryOption) (*Client, error) {
	return NewFactory(opts...).CreateFromEndpoints(ctx, endpoints)
}

// CreateFromCard returns a [Client] configured to communicate with the agent described by
// the provided [a2a.AgentCard].
// [Config].PreferredTransports field is used to determine the order of connection attempts.
//
// If PreferredTransports were not provided, we start from the PreferredTransport specified in the AgentCard
// and proceed in the order specified by the AdditionalInterfaces.
//
// The method fails if the card declares an incompatible protocol version or we couldn't
// establish a compatible transport.
func (f *Factory) CreateFromCard(ctx context.Context, card *a2a.AgentCard) (*Client, error) {
	if err := checkCardVersion(card.ProtocolVersion); err != nil {
		return nil, err
	}

	preferred := card.PreferredTransport
	if preferred == "" {
		preferred = a2a.TransportProtocolJSONRPC
	}
	serverPrefs := []a2a.AgentInterface{{Transport: preferred, URL: card.URL}}
	for _, iface := range card.AdditionalInterfaces {
		if iface.Transport == preferred && iface.URL == card.URL {
			continue
		}
		serverPrefs = append(serverPrefs, iface)
	}

	candidates, err := f.selectTransport(serverPrefs)
	if err != nil {
		return nil, err
	}

	conn, selected, err := createTransport(ctx, candidates, card)
	if err != nil {
		return nil, fmt.Errorf("failed to open a connection: %w", err)
	}

	client := NewClient(selected.endpoint.URL, conn, f.config, f.interceptors...)
	client.card.Store(card)
	return client, nil
}

// CreateFromEndpoints returns a [Client] configured to communicate with one of the provided endpoints.
// [Config].PreferredTransports field is used to determine the order of connection attempts.
//
// If PreferredTransports were not provided, we attempt to establish a connection using the provided endpoint order.
//
// The method fails if we couldn't establish a compatible transport.
func (f *Factory) CreateFromEndpoints(ctx context.Context, endpoints []a2a.AgentInterface) (*Client, error) {
	candidates, err := f.selectTransport(endpoints)
	if err != nil {
		return nil, err
	}

	conn, selected, err := createTransport(ctx, candidates, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open a connection: %w", err)
	}

	return NewClient(selected.endpoint.URL, conn, f.config, f.interceptors...), nil
}

// checkCardVersion accepts cards without a version and cards with the major version of
// the protocol implemented by the client.
func checkCardVersion(version a2a.ProtocolVersion) error {
	if version == "" {
		return nil
	}
	v := string(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Major(v) != semver.Major("v"+string(a2a.Version)) {
		return fmt.Errorf("%w: agent speaks %q, client supports %q", a2a.ErrVersionNotSupported, version, a2a.Version)
	}
	return nil
}

// createTransport attempts to connect using the provided transports, returning the first
// one that succeeds. If all transports fail, it returns an error.
func createTransport(ctx context.Context, candidates []transportCandidate, card *a2a.AgentCard) (Transport, *transportCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("empty list of transport candidates was provided")
	}
	var transport Transport
	var selected *transportCandidate
	var failures []error
	for _, tc := range candidates {
		conn, err := tc.factory.Create(ctx, card, tc.endpoint)
		if err == nil {
			transport = conn
			selected = &tc
			break
		}
		err = fmt.Errorf("failed to connect to %s: %w", tc.endpoint.URL, err)
		failures = append(failures, err)
	}
	if transport == nil {
		return nil, nil, errors.Join(failures...)
	}
	if len(failures) > 0 {
		log.Info(ctx, "some transports failed to connect", "failures", failures)
	}
	return transport, selected, nil
}

// selectTransport filters the list of available endpoints leaving only those with
// compatible transport protocols. If config.PreferredTransports is set the result is ordered
// based on the provided client preferences.
func (f *Factory) selectTransport(available []a2a.AgentInterface) ([]transportCandidate, error) {
	candidates := make([]transportCandidate, 0, len(available))

	for _, opt := range available {
		factory, ok := f.transports[opt.Transport]
		if !ok {
			continue
		}
		priority := len(f.config.PreferredTransports)
		for j, clientPref := range f.config.PreferredTransports {
			if clientPref == opt.Transport {
				priority = j
				break
			}
		}
		candidates = append(candidates, transportCandidate{factory, opt, priority})
	}

	if len(candidates) == 0 {
		protocols := make([]string, len(available))
		for i, a := range available {
			protocols[i] = string(a.Transport)
		}
		return nil, fmt.Errorf("no compatible transports found: available transports - [%s]", strings.Join(protocols, ","))
	}

	slices.SortStableFunc(candidates, func(c1, c2 transportCandidate) int {
		return c1.priority - c2.priority
	})

	return candidates, nil
}

// FactoryOption represents a configuration for creating a [Client].
type FactoryOption interface {
	apply(f *Factory)
}

type factoryOptionFn func(f *Factory)

func (f factoryOptionFn) apply(factory *Factory) {
	f(factory)
}

// WithConfig configures [Client] with the provided [Config].
func WithConfig(c Config) FactoryOption {
	return factoryOptionFn(func(f *Factory) {
		f.config = c
	})
}

// WithTransport uses the provided factory during connection establishment for the specified transport binding.
func WithTransport(protocol a2a.TransportProtocol, factory TransportFactory) FactoryOption {
	return factoryOptionFn(func(f *Factory) {
		f.transports[protocol] = factory
	})
}

// WithCallInterceptors attaches call interceptors to created [Client]s.
func WithCallInterceptors(interceptors ...CallInterceptor) FactoryOption {
	return factoryOptionFn(func(f *Factory) {
		f.interceptors = append(f.interceptors, interceptors...)
	})
}

// defaultsDisabledOpt is a marker for creating a Factory without any defaults set.
type defaultsDisabledOpt struct{}

func (defaultsDisabledOpt) apply(f *Factory) {}

// WithDefaultsDisabled creates a Factory without the default JSON-RPC transport.
func WithDefaultsDisabled() FactoryOption {
	return defaultsDisabledOpt{}
}

// NewFactory creates a new Factory applying the provided configurations.
func NewFactory(options ...FactoryOption) *Factory {
	f := &Factory{
		transports:   make(map[a2a.TransportProtocol]TransportFactory),
		interceptors: make([]CallInterceptor, 0),
	}

	applyDefaults := true
	for _, o := range options {
		if _, ok := o.(defaultsDisabledOpt); ok {
			applyDefaults = false
			break
		}
	}

	if applyDefaults {
		for _, o := range defaultOptions {
			o.apply(f)
		}
	}

	for _, o := range options {
		o.apply(f)
	}

	return f
}

// WithAdditionalOptions creates a new Factory with the additionally provided options.
func WithAdditionalOptions(f *Factory, opts ...FactoryOption) *Factory {
	options := []FactoryOption{
		WithDefaultsDisabled(),
		WithConfig(f.config),
		WithCallInterceptors(f.interceptors...),
	}
	for k, v := range f.transports {
		options = append(options, WithTransport(k, v))
	}
	return NewFactory(append(options, opts...)...)
}
