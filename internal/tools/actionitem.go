package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/haulvox/haulvox/pkg/types"
)

// ExtractActionItem derives a UI card from a completed tool-call/result pair.
// The mapping is pure and deterministic: the same result always yields the
// same card. Unrecognized tools and failed executions yield no card.
func ExtractActionItem(res types.ToolResult) (types.ActionItem, bool) {
	if res.Err != nil {
		return types.ActionItem{}, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(res.Result), &data); err != nil {
		return types.ActionItem{}, false
	}

	item := types.ActionItem{
		Data:      data,
		CreatedAt: time.Now(),
	}

	switch res.Call.Name {
	case "loadsearch":
		item.Type = "load_options"
		item.Title = "Load options"
		item.Summary = fmt.Sprintf("Found %s matching loads.", countOf(data, "loads"))
		item.ActionButtons = []types.ActionButton{
			{Label: "Call broker", Action: "broker_call", Payload: data},
			{Label: "Save search", Action: "save_search"},
		}

	case "hosstatus":
		item.Type = "hos_status"
		item.Title = "Hours of service"
		item.Summary = fmt.Sprintf("%v drive hours remaining in the current window.",
			data["drive_remaining_hours"])

	case "fuelstops":
		item.Type = "fuel_stops"
		item.Title = "Fuel stops"
		item.Summary = fmt.Sprintf("Found %s fuel stops on the route.", countOf(data, "stops"))
		item.ActionButtons = []types.ActionButton{
			{Label: "Navigate", Action: "navigate", Payload: data},
		}

	case "parking":
		item.Type = "parking"
		item.Title = "Truck parking"
		item.Summary = fmt.Sprintf("Found %s parking locations nearby.", countOf(data, "locations"))
		item.ActionButtons = []types.ActionButton{
			{Label: "Navigate", Action: "navigate", Payload: data},
		}

	case "invoice":
		item.Type = "invoice"
		item.Title = "Invoice draft"
		item.Summary = fmt.Sprintf("Invoice %v for $%v.", data["invoice_number"], data["total"])
		item.ActionButtons = []types.ActionButton{
			{Label: "Send invoice", Action: "send_invoice", Payload: data},
			{Label: "Edit", Action: "edit_invoice", Payload: data},
		}

	case "brokercall":
		item.Type = "broker_call"
		item.Title = "Broker call started"
		item.Summary = fmt.Sprintf("Calling %v about load %v.", data["broker_name"], data["load_id"])
		item.ActionButtons = []types.ActionButton{
			{Label: "Call status", Action: "call_status", Payload: data},
		}

	default:
		return types.ActionItem{}, false
	}

	return item, true
}

// countOf formats the length of the named array field in data, or "0" when
// the field is absent or not an array.
func countOf(data map[string]any, field string) string {
	arr, ok := data[field].([]any)
	if !ok {
		return "0"
	}
	return fmt.Sprintf("%d", len(arr))
}
