// Package brokercall provides the built-in "brokercall" dispatch tool, which
// bridges a browser conversation to the outbound telephone call flow.
package brokercall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/types"
)

// CallRequest carries everything the telephone flow needs to negotiate a
// load with a broker on the driver's behalf.
type CallRequest struct {
	// PhoneNumber is the broker's number in E.164 form.
	PhoneNumber string

	// BrokerName is the broker's company name, used in the greeting.
	BrokerName string

	// LoadID identifies the posting being negotiated.
	LoadID string

	// TargetRate is the total rate in dollars the driver wants to reach.
	TargetRate float64

	// Notes carries extra negotiation context for the call prompt.
	Notes string
}

// Dialer starts an outbound negotiation call. Implemented by the call
// orchestrator; the tool layer never sees carrier details.
type Dialer interface {
	StartCall(ctx context.Context, req CallRequest) (callID string, err error)
}

// callArgs is the JSON-decoded input for the "brokercall" tool.
type callArgs struct {
	PhoneNumber string  `json:"phone_number"`
	BrokerName  string  `json:"broker_name"`
	LoadID      string  `json:"load_id"`
	TargetRate  float64 `json:"target_rate"`
	Notes       string  `json:"notes"`
}

// callResult is the JSON-encoded output of the "brokercall" tool.
type callResult struct {
	CallID     string `json:"call_id"`
	BrokerName string `json:"broker_name"`
	LoadID     string `json:"load_id"`
	Status     string `json:"status"`
}

// Tools returns the broker-call tools, bound to the given dialer.
func Tools(d Dialer) []tools.Tool {
	handler := func(ctx context.Context, args string) (string, error) {
		var a callArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("brokercall: failed to parse arguments: %w", err)
		}
		if a.PhoneNumber == "" {
			return "", fmt.Errorf("brokercall: phone_number must not be empty")
		}

		callID, err := d.StartCall(ctx, CallRequest{
			PhoneNumber: a.PhoneNumber,
			BrokerName:  a.BrokerName,
			LoadID:      a.LoadID,
			TargetRate:  a.TargetRate,
			Notes:       a.Notes,
		})
		if err != nil {
			return "", fmt.Errorf("brokercall: start call: %w", err)
		}

		res, err := json.Marshal(callResult{
			CallID:     callID,
			BrokerName: a.BrokerName,
			LoadID:     a.LoadID,
			Status:     "ringing",
		})
		if err != nil {
			return "", fmt.Errorf("brokercall: failed to encode result: %w", err)
		}
		return string(res), nil
	}

	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "brokercall",
				Description: "Place an outbound call to a broker and negotiate a load on the driver's behalf. Returns immediately with a call ID; the negotiation outcome arrives later.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"phone_number": map[string]any{
							"type":        "string",
							"description": "Broker phone number in E.164 form, e.g. +13125550142.",
						},
						"broker_name": map[string]any{
							"type":        "string",
							"description": "Broker company name.",
						},
						"load_id": map[string]any{
							"type":        "string",
							"description": "Load board identifier of the posting to negotiate.",
						},
						"target_rate": map[string]any{
							"type":        "number",
							"description": "Total rate in dollars the driver wants to reach.",
						},
						"notes": map[string]any{
							"type":        "string",
							"description": "Extra negotiation context, e.g. equipment or timing constraints.",
						},
					},
					"required": []string{"phone_number"},
				},
			},
			Handler: handler,
		},
	}
}
