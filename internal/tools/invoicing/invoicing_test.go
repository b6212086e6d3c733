package invoicing

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDraft_LineHaulOnly(t *testing.T) {
	res := Draft(invoiceArgs{LoadID: "LD-1", Broker: "Apex", Rate: 2610.90})
	if res.InvoiceNumber != "INV-LD-1" {
		t.Errorf("invoice number = %q", res.InvoiceNumber)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(res.Items))
	}
	if res.Total != 2610.90 {
		t.Errorf("total = %v, want 2610.90", res.Total)
	}
}

func TestDraft_AllCharges(t *testing.T) {
	res := Draft(invoiceArgs{
		LoadID: "LD-2", Rate: 2000,
		Miles: 1000, FuelSurchargePerMile: 0.35,
		Detention: 150, Lumper: 75,
	})
	if len(res.Items) != 4 {
		t.Fatalf("expected 4 line items, got %d", len(res.Items))
	}
	// 2000 + 350 + 150 + 75
	if res.Total != 2575 {
		t.Errorf("total = %v, want 2575", res.Total)
	}
}

func TestDraft_RoundsToCents(t *testing.T) {
	res := Draft(invoiceArgs{
		LoadID: "LD-3", Rate: 1000,
		Miles: 967, FuelSurchargePerMile: 0.333,
	})
	// 967 * 0.333 = 322.011 → 322.01
	if res.Items[1].Amount != 322.01 {
		t.Errorf("surcharge = %v, want 322.01", res.Items[1].Amount)
	}
}

func TestDraft_Idempotent(t *testing.T) {
	a := invoiceArgs{LoadID: "LD-4", Rate: 1500, Detention: 100}
	first := Draft(a)
	second := Draft(a)
	if first.Total != second.Total || first.InvoiceNumber != second.InvoiceNumber {
		t.Error("draft is not idempotent")
	}
}

func TestInvoiceHandler(t *testing.T) {
	handler := Tools()[0].Handler

	out, err := handler(context.Background(), `{"load_id":"LD-1","broker":"Apex","rate":2610.90}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var res invoiceResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if res.Broker != "Apex" {
		t.Errorf("broker = %q", res.Broker)
	}
}

func TestInvoiceHandler_Validation(t *testing.T) {
	handler := Tools()[0].Handler

	if _, err := handler(context.Background(), `{"load_id":"","rate":100}`); err == nil {
		t.Error("expected error for empty load_id")
	}
	if _, err := handler(context.Background(), `{"load_id":"LD-1","rate":0}`); err == nil {
		t.Error("expected error for non-positive rate")
	}
}
