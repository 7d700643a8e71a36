package shared

import (
	"testing"
)

func TestNewBaseTool_BothNamesSet(t *testing.T) {
	bt := NewBaseTool(ToolDefinition{Name: "my_tool"}, ToolMetadata{Name: "my_tool"})
	if bt.Definition().Name != "my_tool" {
		t.Fatalf("expected def name 'my_tool', got %q", bt.Definition().Name)
	}
	if bt.Metadata().Name != "my_tool" {
		t.Fatalf("expected meta name 'my_tool', got %q", bt.Metadata().Name)
	}
}

func TestNewBaseTool_DefOnly(t *testing.T) {
	bt := NewBaseTool(ToolDefinition{Name: "from_def"}, ToolMetadata{Category: "test"})
	if bt.Metadata().Name != "from_def" {
		t.Fatalf("expected meta name auto-synced to 'from_def', got %q", bt.Metadata().Name)
	}
}

func TestNewBaseTool_MetaOnly(t *testing.T) {
	bt := NewBaseTool(ToolDefinition{Description: "test"}, ToolMetadata{Name: "from_meta"})
	if bt.Definition().Name != "from_meta" {
		t.Fatalf("expected def name auto-synced to 'from_meta', got %q", bt.Definition().Name)
	}
}

func TestParseArgumentsRepairsMalformedJSON(t *testing.T) {
	args, err := ParseArguments(ToolCall{RawArguments: `{"templateID": "worker-default", "justification": 'split work',}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := StringArg(args, "templateID"); got != "worker-default" {
		t.Fatalf("templateID = %q", got)
	}
	if got := StringArg(args, "justification"); got != "split work" {
		t.Fatalf("justification = %q", got)
	}
}

func TestParseArgumentsPrefersStructured(t *testing.T) {
	args, err := ParseArguments(ToolCall{Arguments: map[string]any{"role": "worker"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if StringArg(args, "role") != "worker" {
		t.Fatalf("expected structured arguments to pass through")
	}
}

func TestRequireStringArg(t *testing.T) {
	if _, res := RequireStringArg(map[string]any{"k": "  "}, "c1", "k"); res == nil || res.Error == nil {
		t.Fatalf("expected blank value to fail")
	}
	if v, res := RequireStringArg(map[string]any{"k": " v "}, "c1", "k"); res != nil || v != "v" {
		t.Fatalf("expected trimmed value, got %q", v)
	}
}
