// Package mock provides an in-memory test double for the store interfaces.
//
// Store records every saved summary and call record and serves reads from the
// same maps, so tests can assert on persistence without a database. All
// methods are safe for concurrent use.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/haulvox/haulvox/pkg/store"
	"github.com/haulvox/haulvox/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Store is a configurable in-memory implementation of [store.Store].
type Store struct {
	mu sync.Mutex

	// SaveSummaryErr, when non-nil, is returned by SaveSummary.
	SaveSummaryErr error

	// SaveCallErr, when non-nil, is returned by SaveCall.
	SaveCallErr error

	// PingErr, when non-nil, is returned by Ping.
	PingErr error

	summaries map[string]types.SessionSummary
	calls     map[string]store.CallRecord
}

// Ping returns PingErr.
func (m *Store) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

// SaveSummary implements [store.SummaryStore].
func (m *Store) SaveSummary(_ context.Context, summary types.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveSummaryErr != nil {
		return m.SaveSummaryErr
	}
	if m.summaries == nil {
		m.summaries = make(map[string]types.SessionSummary)
	}
	m.summaries[summary.SessionID] = summary
	return nil
}

// GetSummary implements [store.SummaryStore].
func (m *Store) GetSummary(_ context.Context, sessionID string) (*types.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, ok := m.summaries[sessionID]
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

// RecentSummaries implements [store.SummaryStore].
func (m *Store) RecentSummaries(_ context.Context, limit int) ([]types.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SessionSummary, 0, len(m.summaries))
	for _, s := range m.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveCall implements [store.CallStore], honoring the generation guard.
func (m *Store) SaveCall(_ context.Context, rec store.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveCallErr != nil {
		return m.SaveCallErr
	}
	if m.calls == nil {
		m.calls = make(map[string]store.CallRecord)
	}
	if prev, ok := m.calls[rec.CallID]; ok && prev.Result.Generation > rec.Result.Generation {
		return nil
	}
	m.calls[rec.CallID] = rec
	return nil
}

// GetCall implements [store.CallStore].
func (m *Store) GetCall(_ context.Context, callID string) (*store.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.calls[callID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RecentCalls implements [store.CallStore].
func (m *Store) RecentCalls(_ context.Context, limit int) ([]store.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CallRecord, 0, len(m.calls))
	for _, rec := range m.calls {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SummaryCount reports how many summaries have been saved.
func (m *Store) SummaryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.summaries)
}

// CallCount reports how many call records have been saved.
func (m *Store) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
