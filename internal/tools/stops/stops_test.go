package stops

import (
	"context"
	"encoding/json"
	"testing"
)

func testDirectory() *Directory {
	return NewDirectory(
		[]FuelStop{
			{Name: "Loves #312", City: "Amarillo, TX", DieselPrice: 3.59, DEF: true},
			{Name: "Pilot #204", City: "Amarillo, TX", DieselPrice: 3.64, DEF: true},
			{Name: "TA OKC", City: "Oklahoma City, OK", DieselPrice: 3.52, DEF: true},
		},
		[]ParkingLot{
			{Name: "Loves #312", City: "Amarillo, TX", Spaces: 85, Reservable: true},
			{Name: "TA OKC", City: "Oklahoma City, OK", Spaces: 120, Reservable: true},
		},
	)
}

func TestFuelNear_FiltersByCity(t *testing.T) {
	got := testDirectory().FuelNear("Amarillo", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(got))
	}
}

func TestFuelNear_RespectsMax(t *testing.T) {
	got := testDirectory().FuelNear("Amarillo", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 stop, got %d", len(got))
	}
}

func TestParkingNear(t *testing.T) {
	got := testDirectory().ParkingNear("Oklahoma City", 10)
	if len(got) != 1 || got[0].Name != "TA OKC" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestFuelHandler(t *testing.T) {
	d := testDirectory()
	var fuelHandler func(context.Context, string) (string, error)
	for _, tool := range d.Tools() {
		if tool.Definition.Name == "fuelstops" {
			fuelHandler = tool.Handler
		}
	}
	if fuelHandler == nil {
		t.Fatal("fuelstops tool not found")
	}

	out, err := fuelHandler(context.Background(), `{"near":"Amarillo"}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var res fuelResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(res.Stops) != 2 {
		t.Errorf("expected 2 stops, got %d", len(res.Stops))
	}
}

func TestParkingHandler_DefaultMax(t *testing.T) {
	d := NewDirectory(nil, nil)
	var parkingHandler func(context.Context, string) (string, error)
	for _, tool := range d.Tools() {
		if tool.Definition.Name == "parking" {
			parkingHandler = tool.Handler
		}
	}
	if parkingHandler == nil {
		t.Fatal("parking tool not found")
	}

	out, err := parkingHandler(context.Background(), `{"near":""}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var res parkingResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(res.Locations) > 3 {
		t.Errorf("default max is 3, got %d", len(res.Locations))
	}
}
