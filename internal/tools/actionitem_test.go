package tools

import (
	"errors"
	"testing"

	"github.com/haulvox/haulvox/pkg/types"
)

func TestExtractActionItem_LoadSearch(t *testing.T) {
	item, ok := ExtractActionItem(types.ToolResult{
		Call:   types.ToolCall{Name: "loadsearch"},
		Result: `{"loads":[{"id":"LD-1"},{"id":"LD-2"}],"total":2}`,
	})
	if !ok {
		t.Fatal("expected an action item")
	}
	if item.Type != "load_options" {
		t.Errorf("unexpected type %q", item.Type)
	}
	if item.Summary != "Found 2 matching loads." {
		t.Errorf("unexpected summary %q", item.Summary)
	}
	if len(item.ActionButtons) == 0 {
		t.Error("expected action buttons")
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestExtractActionItem_Invoice(t *testing.T) {
	item, ok := ExtractActionItem(types.ToolResult{
		Call:   types.ToolCall{Name: "invoice"},
		Result: `{"invoice_number":"INV-LD-1","total":2610.9}`,
	})
	if !ok {
		t.Fatal("expected an action item")
	}
	if item.Type != "invoice" {
		t.Errorf("unexpected type %q", item.Type)
	}
	if item.Summary != "Invoice INV-LD-1 for $2610.9." {
		t.Errorf("unexpected summary %q", item.Summary)
	}
}

func TestExtractActionItem_UnknownToolYieldsNothing(t *testing.T) {
	_, ok := ExtractActionItem(types.ToolResult{
		Call:   types.ToolCall{Name: "mystery"},
		Result: `{"a":1}`,
	})
	if ok {
		t.Error("unknown tool must not yield an action item")
	}
}

func TestExtractActionItem_FailedExecutionYieldsNothing(t *testing.T) {
	_, ok := ExtractActionItem(types.ToolResult{
		Call:   types.ToolCall{Name: "loadsearch"},
		Result: `{"loads":[]}`,
		Err:    errors.New("board unreachable"),
	})
	if ok {
		t.Error("failed execution must not yield an action item")
	}
}

func TestExtractActionItem_MalformedResultYieldsNothing(t *testing.T) {
	_, ok := ExtractActionItem(types.ToolResult{
		Call:   types.ToolCall{Name: "loadsearch"},
		Result: `not json`,
	})
	if ok {
		t.Error("malformed result must not yield an action item")
	}
}

func TestExtractActionItem_Deterministic(t *testing.T) {
	res := types.ToolResult{
		Call:   types.ToolCall{Name: "parking"},
		Result: `{"locations":[{"name":"TA"}]}`,
	}
	a, _ := ExtractActionItem(res)
	b, _ := ExtractActionItem(res)
	if a.Type != b.Type || a.Title != b.Title || a.Summary != b.Summary {
		t.Error("extraction is not deterministic")
	}
}
