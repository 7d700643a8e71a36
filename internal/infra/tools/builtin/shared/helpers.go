package shared

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseArguments returns call.Arguments, or decodes RawArguments. Malformed
// JSON from the model is repaired once before giving up.
func ParseArguments(call ToolCall) (map[string]any, error) {
	raw := strings.TrimSpace(call.RawArguments)
	if raw == "" {
		if call.Arguments == nil {
			return map[string]any{}, nil
		}
		return call.Arguments, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return args, nil
}

// StringArg fetches a string-like argument, returning "" when absent or nil.
func StringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	value, ok := args[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// ToolError builds an error result with a formatted message.
func ToolError(callID string, format string, args ...any) (*ToolResult, error) {
	err := fmt.Errorf(format, args...)
	return &ToolResult{CallID: callID, Content: err.Error(), Error: err}, nil
}

// RequireStringArg extracts a required non-empty string argument, returning a
// ToolResult error if the argument is missing, not a string, or blank.
func RequireStringArg(args map[string]any, callID, key string) (string, *ToolResult) {
	raw, ok := args[key].(string)
	if !ok {
		err := fmt.Errorf("missing '%s'", key)
		return "", &ToolResult{CallID: callID, Content: err.Error(), Error: err}
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		err := fmt.Errorf("%s cannot be empty", key)
		return "", &ToolResult{CallID: callID, Content: err.Error(), Error: err}
	}
	return trimmed, nil
}
