// Package prefetch performs the best-effort context fetch at session start.
//
// Drivers open most sessions with the same handful of questions: how many
// hours do I have left, where can I fuel, where can I park tonight. Fetching
// those answers up front and folding them into a system message lets the LLM
// answer immediately instead of spending a tool round-trip mid-conversation.
//
// The fetch is speculative: every source failure is tolerated, partial
// results are fine, and an empty result never aborts the session.
package prefetch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haulvox/haulvox/internal/tools"
)

// DefaultTimeout bounds the whole fetch when the caller does not configure one.
const DefaultTimeout = 2 * time.Second

// Request describes what to fetch for a starting session.
type Request struct {
	// HOSArgs is the JSON argument payload for the "hosstatus" tool, built
	// from the driver's current log. Empty skips the HOS fetch.
	HOSArgs string

	// Near is the city to search fuel and parking around. Empty skips both.
	Near string
}

// Snapshot holds the raw JSON results of the fetch. Empty fields mean that
// source failed or was skipped.
type Snapshot struct {
	HOS       string
	FuelStops string
	Parking   string
}

// Empty reports whether nothing at all was fetched.
func (s Snapshot) Empty() bool {
	return s.HOS == "" && s.FuelStops == "" && s.Parking == ""
}

// SystemMessage folds the fetched facts into a system-level message for the
// LLM history. Returns the empty string when the snapshot is empty.
func (s Snapshot) SystemMessage() string {
	if s.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Current context, fetched automatically at session start:\n")
	if s.HOS != "" {
		b.WriteString("Hours of service: " + s.HOS + "\n")
	}
	if s.FuelStops != "" {
		b.WriteString("Nearby fuel stops: " + s.FuelStops + "\n")
	}
	if s.Parking != "" {
		b.WriteString("Nearby truck parking: " + s.Parking + "\n")
	}
	b.WriteString("Use these facts when relevant instead of calling the matching tool again.")
	return b.String()
}

// Fetcher runs the session-start fetch against the tool registry, so the
// pre-fetched facts are exactly what the matching tool calls would return.
type Fetcher struct {
	registry *tools.Registry
	timeout  time.Duration
	log      *slog.Logger
}

// New returns a Fetcher over the given registry. A non-positive timeout
// falls back to [DefaultTimeout].
func New(registry *tools.Registry, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		registry: registry,
		timeout:  timeout,
		log:      slog.Default().With("component", "prefetch"),
	}
}

// Fetch runs the requested sources in parallel, bounded by the fetcher's
// timeout. It always returns a usable Snapshot; failures surface only as
// empty fields and debug logs.
func (f *Fetcher) Fetch(ctx context.Context, req Request) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var snap Snapshot
	eg, egCtx := errgroup.WithContext(ctx)

	if req.HOSArgs != "" {
		eg.Go(func() error {
			out, err := f.registry.Execute(egCtx, "hosstatus", req.HOSArgs)
			if err != nil {
				f.log.Debug("hos fetch failed", "error", err)
				return nil
			}
			snap.HOS = out
			return nil
		})
	}
	if req.Near != "" {
		eg.Go(func() error {
			out, err := f.registry.Execute(egCtx, "fuelstops", nearArgs(req.Near))
			if err != nil {
				f.log.Debug("fuel fetch failed", "error", err)
				return nil
			}
			snap.FuelStops = out
			return nil
		})
		eg.Go(func() error {
			out, err := f.registry.Execute(egCtx, "parking", nearArgs(req.Near))
			if err != nil {
				f.log.Debug("parking fetch failed", "error", err)
				return nil
			}
			snap.Parking = out
			return nil
		})
	}

	// Goroutines never return errors; Wait only provides the join point.
	_ = eg.Wait()
	return snap
}

func nearArgs(city string) string {
	// City names come from config or the driver profile, not free text, so a
	// minimal escape is enough here.
	city = strings.ReplaceAll(city, `"`, ``)
	return `{"near":"` + city + `"}`
}
