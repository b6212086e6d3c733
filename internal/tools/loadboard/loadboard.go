// Package loadboard provides the built-in "loadsearch" dispatch tool.
//
// The tool searches an in-memory load board for freight matching an origin,
// optional destination, and optional equipment type. Results are sorted by
// rate per mile, best first.
//
// All handlers are safe for concurrent use.
package loadboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/types"
)

// Load is a single posting on the board.
type Load struct {
	// ID is the board-assigned load identifier.
	ID string `json:"id"`

	// Origin and Destination are "City, ST" strings.
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	// Equipment is the trailer type required ("van", "reefer", "flatbed").
	Equipment string `json:"equipment"`

	// Miles is the loaded distance.
	Miles int `json:"miles"`

	// Rate is the posted total rate in dollars.
	Rate float64 `json:"rate"`

	// RatePerMile is Rate / Miles, precomputed for sorting and display.
	RatePerMile float64 `json:"rate_per_mile"`

	// PickupDate is the requested pickup date, ISO 8601.
	PickupDate string `json:"pickup_date"`

	// Broker is the posting broker's company name.
	Broker string `json:"broker"`

	// BrokerPhone is the broker's contact number in E.164 form.
	BrokerPhone string `json:"broker_phone"`
}

// Board is an in-memory load board searchable by the "loadsearch" tool.
type Board struct {
	loads []Load
}

// NewBoard returns a board holding the given postings. A nil slice yields a
// board seeded with the built-in demo postings.
func NewBoard(loads []Load) *Board {
	if loads == nil {
		loads = demoLoads()
	}
	return &Board{loads: loads}
}

// searchArgs is the JSON-decoded input for the "loadsearch" tool.
type searchArgs struct {
	// Origin is the pickup city, matched case-insensitively by prefix.
	Origin string `json:"origin"`

	// Destination optionally narrows results to a delivery city.
	Destination string `json:"destination"`

	// Equipment optionally narrows results to a trailer type.
	Equipment string `json:"equipment"`

	// MaxResults caps the number of returned loads. Defaults to 5.
	MaxResults int `json:"max_results"`
}

// searchResult is the JSON-encoded output of the "loadsearch" tool.
type searchResult struct {
	// Loads holds the matching postings, best rate per mile first.
	Loads []Load `json:"loads"`

	// Total is the number of matches before MaxResults was applied.
	Total int `json:"total"`
}

// Search returns the loads matching the given filters, sorted by rate per
// mile descending.
func (b *Board) Search(origin, destination, equipment string) []Load {
	var out []Load
	for _, l := range b.loads {
		if origin != "" && !cityMatches(l.Origin, origin) {
			continue
		}
		if destination != "" && !cityMatches(l.Destination, destination) {
			continue
		}
		if equipment != "" && !strings.EqualFold(l.Equipment, equipment) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RatePerMile > out[j].RatePerMile
	})
	return out
}

// cityMatches reports whether the posting city matches the query. The query
// may be a bare city name ("Dallas") or a full "City, ST" string.
func cityMatches(posting, query string) bool {
	posting = strings.ToLower(posting)
	query = strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(posting, query)
}

// searchHandler implements the "loadsearch" tool against the board.
func (b *Board) searchHandler(_ context.Context, args string) (string, error) {
	var a searchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("loadboard: failed to parse arguments: %w", err)
	}
	if a.Origin == "" {
		return "", fmt.Errorf("loadboard: origin must not be empty")
	}
	if a.MaxResults <= 0 {
		a.MaxResults = 5
	}

	matches := b.Search(a.Origin, a.Destination, a.Equipment)
	total := len(matches)
	if len(matches) > a.MaxResults {
		matches = matches[:a.MaxResults]
	}

	res, err := json.Marshal(searchResult{Loads: matches, Total: total})
	if err != nil {
		return "", fmt.Errorf("loadboard: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the load board tools ready for registration.
func (b *Board) Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "loadsearch",
				Description: "Search the load board for available freight. Returns matching loads sorted by rate per mile, including broker contact details for follow-up calls.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"origin": map[string]any{
							"type":        "string",
							"description": "Pickup city, e.g. \"Dallas\" or \"Dallas, TX\".",
						},
						"destination": map[string]any{
							"type":        "string",
							"description": "Optional delivery city to narrow results.",
						},
						"equipment": map[string]any{
							"type":        "string",
							"description": "Optional trailer type.",
							"enum":        []string{"van", "reefer", "flatbed"},
						},
						"max_results": map[string]any{
							"type":        "integer",
							"description": "Maximum number of loads to return. Defaults to 5.",
						},
					},
					"required": []string{"origin"},
				},
			},
			Handler: b.searchHandler,
		},
	}
}

// Vocabulary returns the proper nouns on the board: origin and destination
// cities (without state suffix) and broker names. Used as recognition hints
// and as the transcript-correction vocabulary.
func (b *Board) Vocabulary() []string {
	seen := make(map[string]bool)
	var vocab []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		vocab = append(vocab, s)
	}
	city := func(s string) string {
		if i := strings.Index(s, ","); i >= 0 {
			return strings.TrimSpace(s[:i])
		}
		return s
	}
	for _, l := range b.loads {
		add(city(l.Origin))
		add(city(l.Destination))
		add(l.Broker)
	}
	return vocab
}

// demoLoads seeds the board when no postings are supplied.
func demoLoads() []Load {
	return []Load{
		{
			ID: "LD-1042", Origin: "Dallas, TX", Destination: "Chicago, IL",
			Equipment: "van", Miles: 967, Rate: 2610.90, RatePerMile: 2.70,
			PickupDate: "2026-09-02", Broker: "Apex Logistics", BrokerPhone: "+13125550142",
		},
		{
			ID: "LD-1043", Origin: "Dallas, TX", Destination: "Atlanta, GA",
			Equipment: "van", Miles: 781, Rate: 1874.40, RatePerMile: 2.40,
			PickupDate: "2026-09-02", Broker: "Southern Freight Co", BrokerPhone: "+14045550178",
		},
		{
			ID: "LD-1044", Origin: "Dallas, TX", Destination: "Denver, CO",
			Equipment: "reefer", Miles: 794, Rate: 2342.30, RatePerMile: 2.95,
			PickupDate: "2026-09-03", Broker: "Summit Produce Lines", BrokerPhone: "+13035550119",
		},
		{
			ID: "LD-1045", Origin: "Fort Worth, TX", Destination: "Chicago, IL",
			Equipment: "flatbed", Miles: 985, Rate: 3004.25, RatePerMile: 3.05,
			PickupDate: "2026-09-02", Broker: "Ironside Transport", BrokerPhone: "+18155550163",
		},
		{
			ID: "LD-1046", Origin: "Houston, TX", Destination: "Memphis, TN",
			Equipment: "van", Miles: 585, Rate: 1404.00, RatePerMile: 2.40,
			PickupDate: "2026-09-04", Broker: "Delta Brokerage", BrokerPhone: "+19015550187",
		},
	}
}
