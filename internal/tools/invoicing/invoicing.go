// Package invoicing provides the built-in "invoice" dispatch tool: a
// deterministic invoice-draft calculator for a completed load.
package invoicing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/types"
)

// invoiceArgs is the JSON-decoded input for the "invoice" tool.
type invoiceArgs struct {
	// LoadID identifies the completed load being invoiced.
	LoadID string `json:"load_id"`

	// Broker is the bill-to party.
	Broker string `json:"broker"`

	// Rate is the agreed line-haul rate in dollars.
	Rate float64 `json:"rate"`

	// Miles is the loaded distance, used for the fuel surcharge.
	Miles int `json:"miles"`

	// FuelSurchargePerMile is the per-mile surcharge in dollars. Optional.
	FuelSurchargePerMile float64 `json:"fuel_surcharge_per_mile"`

	// Detention is the detention charge in dollars. Optional.
	Detention float64 `json:"detention"`

	// Lumper is the lumper fee to pass through in dollars. Optional.
	Lumper float64 `json:"lumper"`
}

// LineItem is a single row on the invoice draft.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// invoiceResult is the JSON-encoded output of the "invoice" tool.
type invoiceResult struct {
	// InvoiceNumber is derived deterministically from the load ID.
	InvoiceNumber string `json:"invoice_number"`

	LoadID string     `json:"load_id"`
	Broker string     `json:"broker"`
	Items  []LineItem `json:"items"`

	// Total is the sum of all line items, rounded to cents.
	Total float64 `json:"total"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Draft computes the invoice draft for a load. The output is a pure function
// of the input, so regenerating a draft for the same load is idempotent.
func Draft(a invoiceArgs) invoiceResult {
	items := []LineItem{
		{Description: "Line haul", Amount: roundCents(a.Rate)},
	}
	if a.FuelSurchargePerMile > 0 && a.Miles > 0 {
		items = append(items, LineItem{
			Description: fmt.Sprintf("Fuel surcharge (%d mi)", a.Miles),
			Amount:      roundCents(a.FuelSurchargePerMile * float64(a.Miles)),
		})
	}
	if a.Detention > 0 {
		items = append(items, LineItem{Description: "Detention", Amount: roundCents(a.Detention)})
	}
	if a.Lumper > 0 {
		items = append(items, LineItem{Description: "Lumper fee", Amount: roundCents(a.Lumper)})
	}

	var total float64
	for _, it := range items {
		total += it.Amount
	}

	return invoiceResult{
		InvoiceNumber: "INV-" + a.LoadID,
		LoadID:        a.LoadID,
		Broker:        a.Broker,
		Items:         items,
		Total:         roundCents(total),
	}
}

// invoiceHandler implements the "invoice" tool.
func invoiceHandler(_ context.Context, args string) (string, error) {
	var a invoiceArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("invoicing: failed to parse arguments: %w", err)
	}
	if a.LoadID == "" {
		return "", fmt.Errorf("invoicing: load_id must not be empty")
	}
	if a.Rate <= 0 {
		return "", fmt.Errorf("invoicing: rate must be positive, got %v", a.Rate)
	}

	res, err := json.Marshal(Draft(a))
	if err != nil {
		return "", fmt.Errorf("invoicing: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the invoicing tools ready for registration.
func Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "invoice",
				Description: "Draft an invoice for a completed load: line haul, fuel surcharge, detention, and lumper fees with a computed total.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"load_id": map[string]any{
							"type":        "string",
							"description": "Identifier of the completed load.",
						},
						"broker": map[string]any{
							"type":        "string",
							"description": "Bill-to broker company name.",
						},
						"rate": map[string]any{
							"type":        "number",
							"description": "Agreed line-haul rate in dollars.",
						},
						"miles": map[string]any{
							"type":        "integer",
							"description": "Loaded miles, used for the fuel surcharge.",
						},
						"fuel_surcharge_per_mile": map[string]any{
							"type":        "number",
							"description": "Optional per-mile fuel surcharge in dollars.",
						},
						"detention": map[string]any{
							"type":        "number",
							"description": "Optional detention charge in dollars.",
						},
						"lumper": map[string]any{
							"type":        "number",
							"description": "Optional lumper fee in dollars.",
						},
					},
					"required": []string{"load_id", "rate"},
				},
			},
			Handler: invoiceHandler,
		},
	}
}
