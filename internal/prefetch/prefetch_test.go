package prefetch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/internal/tools/hos"
	"github.com/haulvox/haulvox/internal/tools/stops"
)

func fullRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	if err := r.RegisterAll(hos.Tools()); err != nil {
		t.Fatalf("register hos: %v", err)
	}
	if err := r.RegisterAll(stops.NewDirectory(nil, nil).Tools()); err != nil {
		t.Fatalf("register stops: %v", err)
	}
	return r
}

func TestFetch_AllSources(t *testing.T) {
	f := New(fullRegistry(t), time.Second)

	snap := f.Fetch(context.Background(), Request{
		HOSArgs: `{"drive_today":6,"on_duty_today":8,"cycle_used":40}`,
		Near:    "Amarillo",
	})

	if snap.HOS == "" {
		t.Error("HOS not fetched")
	}
	if snap.FuelStops == "" {
		t.Error("fuel stops not fetched")
	}
	if snap.Parking == "" {
		t.Error("parking not fetched")
	}
	if snap.Empty() {
		t.Error("snapshot reported empty")
	}
}

func TestFetch_MissingToolsTolerated(t *testing.T) {
	r := tools.NewRegistry()
	if err := r.RegisterAll(hos.Tools()); err != nil {
		t.Fatalf("register hos: %v", err)
	}
	f := New(r, time.Second)

	snap := f.Fetch(context.Background(), Request{
		HOSArgs: `{"drive_today":1,"on_duty_today":2,"cycle_used":3}`,
		Near:    "Amarillo",
	})

	if snap.HOS == "" {
		t.Error("HOS fetch should still succeed")
	}
	if snap.FuelStops != "" || snap.Parking != "" {
		t.Error("unregistered sources must stay empty")
	}
}

func TestFetch_SkipsUnrequestedSources(t *testing.T) {
	f := New(fullRegistry(t), time.Second)

	snap := f.Fetch(context.Background(), Request{Near: "Amarillo"})
	if snap.HOS != "" {
		t.Error("HOS fetched without args")
	}
	if snap.FuelStops == "" {
		t.Error("fuel stops not fetched")
	}
}

func TestFetch_TimeoutYieldsEmptyField(t *testing.T) {
	r := tools.NewRegistry()
	slow := tools.Tool{
		Definition: hos.Tools()[0].Definition,
		Handler: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	if err := r.Register(slow); err != nil {
		t.Fatalf("register: %v", err)
	}

	f := New(r, 20*time.Millisecond)
	snap := f.Fetch(context.Background(), Request{
		HOSArgs: `{"drive_today":1,"on_duty_today":1,"cycle_used":1}`,
	})
	if !snap.Empty() {
		t.Errorf("expected empty snapshot after timeout, got %+v", snap)
	}
}

func TestSystemMessage(t *testing.T) {
	snap := Snapshot{HOS: `{"drive_remaining_hours":5}`}
	msg := snap.SystemMessage()
	if !strings.Contains(msg, "Hours of service") {
		t.Errorf("message missing HOS section: %q", msg)
	}
	if strings.Contains(msg, "fuel") {
		t.Errorf("message should omit unfetched sections: %q", msg)
	}

	if (Snapshot{}).SystemMessage() != "" {
		t.Error("empty snapshot must yield empty message")
	}
}
