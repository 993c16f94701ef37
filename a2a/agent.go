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

package a2a

// AgentCapabilities define optional capabilities supported by an agent. Request handlers
// consult them to decide whether streaming and push notification operations are permitted.
type AgentCapabilities struct {
	// Extensions is a list of protocol extensions supported by the agent.
	Extensions []AgentExtension `json:"extensions,omitempty"`

	// PushNotifications indicates if the agent supports sending push notifications for asynchronous task updates.
	PushNotifications bool `json:"pushNotifications,omitempty"`

	// StateTransitionHistory indicates if the agent exposes the history of task status changes.
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`

	// Streaming indicates if the agent supports streaming responses.
	Streaming bool `json:"streaming,omitempty"`
}

// AgentCard is a self-describing manifest for an agent served at the well-known agent card path.
type AgentCard struct {
	// AdditionalInterfaces lists transports available in addition to the preferred one.
	AdditionalInterfaces []AgentInterface `json:"additionalInterfaces,omitempty"`

	// Capabilities is a declaration of optional capabilities supported by the agent.
	Capabilities AgentCapabilities `json:"capabilities"`

	// DefaultInputModes a default set of supported input MIME types for all skills.
	DefaultInputModes []string `json:"defaultInputModes"`

	// DefaultOutputModes is a default set of supported output MIME types for all skills.
	DefaultOutputModes []string `json:"defaultOutputModes"`

	// Description is a human-readable description of the agent.
	Description string `json:"description"`

	// DocumentationURL is an optional URL to the agent's documentation.
	DocumentationURL string `json:"documentationUrl,omitempty"`

	// IconURL is an optional URL to an icon for the agent.
	IconURL string `json:"iconUrl,omitempty"`

	// Name is a human-readable name for the agent.
	Name string `json:"name"`

	// PreferredTransport is the transport available at URL. Defaults to JSONRPC.
	PreferredTransport TransportProtocol `json:"preferredTransport,omitempty"`

	// ProtocolVersion is the version of the A2A protocol the agent speaks.
	ProtocolVersion ProtocolVersion `json:"protocolVersion"`

	// Provider contains information about the agent's service provider.
	Provider *AgentProvider `json:"provider,omitempty"`

	// Security lists alternative sets of schemes a client must satisfy, any one set is enough.
	Security []SecurityRequirements `json:"security,omitempty"`

	// SecuritySchemes declares the schemes referenced by Security.
	SecuritySchemes map[SecuritySchemeName]SecurityScheme `json:"securitySchemes,omitempty"`

	// Skills is the set of skills, or distinct capabilities, that the agent can perform.
	Skills []AgentSkill `json:"skills"`

	// URL is the preferred endpoint for interacting with the agent.
	URL string `json:"url"`

	// Version is the agent's own version number. The format is defined by the provider.
	Version string `json:"version"`
}

// SecuritySchemeName is the key of a scheme in [AgentCard.SecuritySchemes].
type SecuritySchemeName string

// SecurityRequirements maps scheme names to the scopes required for them.
type SecurityRequirements map[SecuritySchemeName][]string

// SecuritySchemeType is the discriminator of [SecurityScheme].
type SecuritySchemeType string

const (
	SecuritySchemeTypeAPIKey        SecuritySchemeType = "apiKey"
	SecuritySchemeTypeHTTP          SecuritySchemeType = "http"
	SecuritySchemeTypeOAuth2        SecuritySchemeType = "oauth2"
	SecuritySchemeTypeOpenIDConnect SecuritySchemeType = "openIdConnect"
	SecuritySchemeTypeMutualTLS     SecuritySchemeType = "mutualTLS"
)

// SecurityScheme describes how a client authenticates. Which fields are set depends on Type.
type SecurityScheme struct {
	Type        SecuritySchemeType `json:"type"`
	Description string             `json:"description,omitempty"`

	// Name and In locate the key of an apiKey scheme, In is one of "header", "query" or "cookie".
	Name string `json:"name,omitempty"`
	In   string `json:"in,omitempty"`

	// Scheme is the HTTP authorization scheme of an http scheme, e.g. "Bearer".
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty"`

	// Flows are the OAuth 2.0 flows of an oauth2 scheme, kept as raw JSON objects.
	Flows map[string]any `json:"flows,omitempty"`

	OpenIDConnectURL string `json:"openIdConnectUrl,omitempty"`
}

// AgentExtension is a declaration of a protocol extension supported by an Agent.
type AgentExtension struct {
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Required    bool           `json:"required,omitempty"`
	URI         string         `json:"uri"`
}

// AgentInterface declares a combination of a target URL and a transport protocol.
type AgentInterface struct {
	Transport TransportProtocol `json:"transport"`
	URL       string            `json:"url"`
}

// AgentProvider represents the service provider of an agent.
type AgentProvider struct {
	// Org is the name of the agent provider's organization.
	Org string `json:"organization"`

	// URL is a URL for the agent provider's website or relevant documentation.
	URL string `json:"url"`
}

// AgentSkill represents a distinct capability or function that an agent can perform.
type AgentSkill struct {
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	ID          string   `json:"id"`
	InputModes  []string `json:"inputModes,omitempty"`
	Name        string   `json:"name"`
	OutputModes []string `json:"outputModes,omitempty"`
	Tags        []string `json:"tags"`
}

// TransportProtocol represents a transport protocol which a client and an agent can use
// for communication. Custom protocols are allowed and the type MUST NOT be treated as an enum.
type TransportProtocol string

const (
	// TransportProtocolJSONRPC defines the JSON-RPC transport protocol.
	TransportProtocolJSONRPC TransportProtocol = "JSONRPC"
	// TransportProtocolGRPC defines the gRPC transport protocol.
	TransportProtocolGRPC TransportProtocol = "GRPC"
	// TransportProtocolWebSocket is JSON-RPC over a websocket, with streaming responses sent
	// as frames sharing the request id. It is not part of the core protocol.
	TransportProtocolWebSocket TransportProtocol = "WEBSOCKET"
)
