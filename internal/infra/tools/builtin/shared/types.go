package shared

import "context"

// Property describes one tool parameter.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// ParameterSchema is the JSON schema advertised to the model.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is what the model sees.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolMetadata describes a tool to the registry.
type ToolMetadata struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

// ToolCall is one invocation requested by a running agent. RawArguments, when
// set, is parsed (and repaired if malformed) instead of Arguments.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	RawArguments string         `json:"raw_arguments,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	InstanceID   string         `json:"instance_id,omitempty"`
}

// ToolResult is the outcome returned to the agent.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  string         `json:"content"`
	Error    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tool is implemented by every builtin tool.
type Tool interface {
	Definition() ToolDefinition
	Metadata() ToolMetadata
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)
}
