package hos

import (
	"context"
	"encoding/json"
	"testing"
)

func TestCompute_FreshDriver(t *testing.T) {
	s := Compute(DriverLog{})
	if s.DriveRemainingHours != 11 {
		t.Errorf("drive remaining = %v, want 11", s.DriveRemainingHours)
	}
	if s.WindowRemainingHours != 14 {
		t.Errorf("window remaining = %v, want 14", s.WindowRemainingHours)
	}
	if s.CycleRemainingHours != 70 {
		t.Errorf("cycle remaining = %v, want 70", s.CycleRemainingHours)
	}
	if !s.Compliant {
		t.Error("fresh driver should be compliant")
	}
}

func TestCompute_WindowBindsBeforeDriveLimit(t *testing.T) {
	// 6 driven but 12 on duty: only 2 hours of window left.
	s := Compute(DriverLog{DriveToday: 6, OnDutyToday: 12, CycleUsed: 30})
	if s.DriveRemainingHours != 2 {
		t.Errorf("drive remaining = %v, want 2 (window-bound)", s.DriveRemainingHours)
	}
}

func TestCompute_CycleBindsWhenNearlyExhausted(t *testing.T) {
	s := Compute(DriverLog{DriveToday: 1, OnDutyToday: 2, CycleUsed: 69.5})
	if s.DriveRemainingHours != 0.5 {
		t.Errorf("drive remaining = %v, want 0.5 (cycle-bound)", s.DriveRemainingHours)
	}
}

func TestCompute_OverLimitClampsToZero(t *testing.T) {
	s := Compute(DriverLog{DriveToday: 12, OnDutyToday: 15, CycleUsed: 72, SinceBreak: 9})
	if s.DriveRemainingHours != 0 || s.WindowRemainingHours != 0 || s.CycleRemainingHours != 0 {
		t.Errorf("remainders not clamped: %+v", s)
	}
	if s.BreakRequiredIn != 0 {
		t.Errorf("break required in = %v, want 0", s.BreakRequiredIn)
	}
	if s.Compliant {
		t.Error("over-limit driver must not be compliant")
	}
}

func TestCompute_BreakCountdown(t *testing.T) {
	s := Compute(DriverLog{DriveToday: 5, OnDutyToday: 6, CycleUsed: 20, SinceBreak: 5.5})
	if s.BreakRequiredIn != 2.5 {
		t.Errorf("break required in = %v, want 2.5", s.BreakRequiredIn)
	}
}

func TestStatusHandler(t *testing.T) {
	handler := Tools()[0].Handler

	out, err := handler(context.Background(), `{"drive_today":6,"on_duty_today":8,"cycle_used":40,"since_break":2}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var s Status
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if s.DriveRemainingHours != 5 {
		t.Errorf("drive remaining = %v, want 5", s.DriveRemainingHours)
	}
	if !s.Compliant {
		t.Error("expected compliant")
	}
}

func TestStatusHandler_NegativeHoursRejected(t *testing.T) {
	handler := Tools()[0].Handler
	if _, err := handler(context.Background(), `{"drive_today":-1,"on_duty_today":0,"cycle_used":0}`); err == nil {
		t.Fatal("expected error for negative hours")
	}
}
