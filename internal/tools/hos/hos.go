// Package hos provides the built-in "hosstatus" dispatch tool.
//
// The tool computes remaining drive, duty, and cycle time from a driver's
// current log under the property-carrying limits: 11 hours driving inside a
// 14-hour on-duty window, 70 hours on duty in 8 days, and a 30-minute break
// required after 8 cumulative hours of driving.
package hos

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/pkg/types"
)

const (
	driveLimitHours  = 11.0
	windowLimitHours = 14.0
	cycleLimitHours  = 70.0
	breakAfterHours  = 8.0
)

// DriverLog is the duty state the remaining-time computation works from.
type DriverLog struct {
	// DriveToday is hours driven since the last 10-hour reset.
	DriveToday float64 `json:"drive_today"`

	// OnDutyToday is hours on duty (driving or not) since the last reset.
	OnDutyToday float64 `json:"on_duty_today"`

	// CycleUsed is on-duty hours in the current 8-day cycle.
	CycleUsed float64 `json:"cycle_used"`

	// SinceBreak is hours driven since the last 30-minute break.
	SinceBreak float64 `json:"since_break"`
}

// Status is the computed remaining-time summary.
type Status struct {
	// DriveRemainingHours is the least of the drive, window, and cycle
	// remainders. Zero means the driver must stop.
	DriveRemainingHours float64 `json:"drive_remaining_hours"`

	// WindowRemainingHours is time left in the 14-hour on-duty window.
	WindowRemainingHours float64 `json:"window_remaining_hours"`

	// CycleRemainingHours is time left in the 70-hour/8-day cycle.
	CycleRemainingHours float64 `json:"cycle_remaining_hours"`

	// BreakRequiredIn is driving hours until a 30-minute break is required.
	// Zero means the break is due now.
	BreakRequiredIn float64 `json:"break_required_in"`

	// Compliant is false when any limit is already exceeded.
	Compliant bool `json:"compliant"`
}

// Compute derives the remaining-time summary from a driver log.
func Compute(log DriverLog) Status {
	driveLeft := driveLimitHours - log.DriveToday
	windowLeft := windowLimitHours - log.OnDutyToday
	cycleLeft := cycleLimitHours - log.CycleUsed
	breakIn := breakAfterHours - log.SinceBreak

	s := Status{
		DriveRemainingHours:  round1(math.Max(0, math.Min(driveLeft, math.Min(windowLeft, cycleLeft)))),
		WindowRemainingHours: round1(math.Max(0, windowLeft)),
		CycleRemainingHours:  round1(math.Max(0, cycleLeft)),
		BreakRequiredIn:      round1(math.Max(0, breakIn)),
		Compliant:            driveLeft >= 0 && windowLeft >= 0 && cycleLeft >= 0,
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// statusHandler implements the "hosstatus" tool.
func statusHandler(_ context.Context, args string) (string, error) {
	var log DriverLog
	if err := json.Unmarshal([]byte(args), &log); err != nil {
		return "", fmt.Errorf("hos: failed to parse arguments: %w", err)
	}
	if log.DriveToday < 0 || log.OnDutyToday < 0 || log.CycleUsed < 0 || log.SinceBreak < 0 {
		return "", fmt.Errorf("hos: logged hours must not be negative")
	}

	res, err := json.Marshal(Compute(log))
	if err != nil {
		return "", fmt.Errorf("hos: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the hours-of-service tools ready for registration.
func Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "hosstatus",
				Description: "Compute remaining drive, duty-window, and cycle hours from the driver's current log, plus when the next 30-minute break is due.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"drive_today": map[string]any{
							"type":        "number",
							"description": "Hours driven since the last 10-hour reset.",
						},
						"on_duty_today": map[string]any{
							"type":        "number",
							"description": "Hours on duty since the last reset.",
						},
						"cycle_used": map[string]any{
							"type":        "number",
							"description": "On-duty hours used in the current 8-day cycle.",
						},
						"since_break": map[string]any{
							"type":        "number",
							"description": "Hours driven since the last 30-minute break.",
						},
					},
					"required": []string{"drive_today", "on_duty_today", "cycle_used"},
				},
			},
			Handler: statusHandler,
		},
	}
}
