// Package stops provides the built-in "fuelstops" and "parking" dispatch
// tools, backed by an in-memory point-of-interest directory keyed by city.
package stops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/types"
)

// FuelStop is a single truck-stop entry in the directory.
type FuelStop struct {
	Name string `json:"name"`

	// City is the "City, ST" location.
	City string `json:"city"`

	// Exit is the highway exit description.
	Exit string `json:"exit"`

	// DieselPrice is the posted per-gallon diesel price in dollars.
	DieselPrice float64 `json:"diesel_price"`

	// DEF reports whether DEF is available at the pump.
	DEF bool `json:"def"`
}

// ParkingLot is a single truck-parking entry in the directory.
type ParkingLot struct {
	Name string `json:"name"`
	City string `json:"city"`
	Exit string `json:"exit"`

	// Spaces is the total number of truck spaces.
	Spaces int `json:"spaces"`

	// Reservable reports whether spaces can be reserved ahead.
	Reservable bool `json:"reservable"`
}

// Directory is the in-memory POI source behind both tools.
type Directory struct {
	fuel    []FuelStop
	parking []ParkingLot
}

// NewDirectory returns a directory over the given entries. Nil slices yield
// the built-in demo data.
func NewDirectory(fuel []FuelStop, parking []ParkingLot) *Directory {
	if fuel == nil {
		fuel = demoFuel()
	}
	if parking == nil {
		parking = demoParking()
	}
	return &Directory{fuel: fuel, parking: parking}
}

// nearArgs is the JSON-decoded input for both tools.
type nearArgs struct {
	// Near is the city to search around, matched case-insensitively by prefix.
	Near string `json:"near"`

	// MaxResults caps the number of returned entries. Defaults to 3.
	MaxResults int `json:"max_results"`
}

// fuelResult is the JSON-encoded output of the "fuelstops" tool.
type fuelResult struct {
	Stops []FuelStop `json:"stops"`
}

// parkingResult is the JSON-encoded output of the "parking" tool.
type parkingResult struct {
	Locations []ParkingLot `json:"locations"`
}

func cityMatches(entry, query string) bool {
	return strings.HasPrefix(strings.ToLower(entry), strings.ToLower(strings.TrimSpace(query)))
}

// FuelNear returns fuel stops in or near the given city.
func (d *Directory) FuelNear(city string, max int) []FuelStop {
	var out []FuelStop
	for _, s := range d.fuel {
		if city == "" || cityMatches(s.City, city) {
			out = append(out, s)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

// ParkingNear returns parking locations in or near the given city.
func (d *Directory) ParkingNear(city string, max int) []ParkingLot {
	var out []ParkingLot
	for _, p := range d.parking {
		if city == "" || cityMatches(p.City, city) {
			out = append(out, p)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

func (d *Directory) fuelHandler(_ context.Context, args string) (string, error) {
	var a nearArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("stops: failed to parse arguments: %w", err)
	}
	if a.MaxResults <= 0 {
		a.MaxResults = 3
	}
	res, err := json.Marshal(fuelResult{Stops: d.FuelNear(a.Near, a.MaxResults)})
	if err != nil {
		return "", fmt.Errorf("stops: failed to encode result: %w", err)
	}
	return string(res), nil
}

func (d *Directory) parkingHandler(_ context.Context, args string) (string, error) {
	var a nearArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("stops: failed to parse arguments: %w", err)
	}
	if a.MaxResults <= 0 {
		a.MaxResults = 3
	}
	res, err := json.Marshal(parkingResult{Locations: d.ParkingNear(a.Near, a.MaxResults)})
	if err != nil {
		return "", fmt.Errorf("stops: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the fuel and parking tools ready for registration.
func (d *Directory) Tools() []tools.Tool {
	nearSchema := func(what string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"near": map[string]any{
					"type":        "string",
					"description": "City to search around, e.g. \"Amarillo\" or \"Amarillo, TX\".",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of " + what + " to return. Defaults to 3.",
				},
			},
			"required": []string{"near"},
		}
	}

	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "fuelstops",
				Description: "Find truck stops with diesel near a city, with posted prices and DEF availability.",
				Parameters:  nearSchema("stops"),
			},
			Handler: d.fuelHandler,
		},
		{
			Definition: types.ToolDefinition{
				Name:        "parking",
				Description: "Find overnight truck parking near a city, including space counts and whether spots are reservable.",
				Parameters:  nearSchema("locations"),
			},
			Handler: d.parkingHandler,
		},
	}
}

func demoFuel() []FuelStop {
	return []FuelStop{
		{Name: "Loves #312", City: "Amarillo, TX", Exit: "I-40 exit 74", DieselPrice: 3.59, DEF: true},
		{Name: "Pilot #204", City: "Amarillo, TX", Exit: "I-40 exit 76", DieselPrice: 3.64, DEF: true},
		{Name: "TA Oklahoma City", City: "Oklahoma City, OK", Exit: "I-40 exit 140", DieselPrice: 3.52, DEF: true},
		{Name: "Flying J #617", City: "Joplin, MO", Exit: "I-44 exit 4", DieselPrice: 3.48, DEF: false},
		{Name: "Petro Effingham", City: "Effingham, IL", Exit: "I-70 exit 160", DieselPrice: 3.71, DEF: true},
	}
}

func demoParking() []ParkingLot {
	return []ParkingLot{
		{Name: "Loves #312", City: "Amarillo, TX", Exit: "I-40 exit 74", Spaces: 85, Reservable: true},
		{Name: "Cargill lot", City: "Oklahoma City, OK", Exit: "I-40 exit 142", Spaces: 40, Reservable: false},
		{Name: "TA Oklahoma City", City: "Oklahoma City, OK", Exit: "I-40 exit 140", Spaces: 120, Reservable: true},
		{Name: "Rest area MM 58", City: "Joplin, MO", Exit: "I-44 mile 58", Spaces: 22, Reservable: false},
		{Name: "Petro Effingham", City: "Effingham, IL", Exit: "I-70 exit 160", Spaces: 150, Reservable: true},
	}
}
