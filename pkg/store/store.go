// Package store defines persistence for finished conversations: browser
// session summaries and telephone negotiation outcomes.
//
// The interfaces are public so that external packages can supply alternative
// backends (Postgres, SQLite, in-memory, …) without depending on haulvox
// internals. Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"time"

	"github.com/haulvox/haulvox/pkg/types"
)

// CallRecord is the persisted form of one outbound negotiation call.
type CallRecord struct {
	// CallID is the internal call identifier.
	CallID string

	// CarrierSID is the telephony provider's identifier for the same call.
	CarrierSID string

	// To is the dialed number in E.164 form.
	To string

	// BrokerName and LoadID describe what was negotiated.
	BrokerName string
	LoadID     string

	// Result is the negotiation outcome, transcript included.
	// Result.Generation increases when a later transcript analysis supersedes
	// the live outcome, so saving a record must never overwrite a row with a
	// higher stored generation.
	Result types.NegotiationResult

	// StartedAt and EndedAt bound the call lifetime.
	StartedAt time.Time
	EndedAt   time.Time
}

// SummaryStore persists browser session summaries.
type SummaryStore interface {
	// SaveSummary upserts a finished session summary keyed by SessionID.
	SaveSummary(ctx context.Context, summary types.SessionSummary) error

	// GetSummary retrieves a summary by session ID.
	// Returns (nil, nil) when the session is unknown.
	GetSummary(ctx context.Context, sessionID string) (*types.SessionSummary, error)

	// RecentSummaries returns the most recently ended sessions, newest first.
	// limit of 0 applies an implementation default.
	RecentSummaries(ctx context.Context, limit int) ([]types.SessionSummary, error)
}

// CallStore persists negotiation call records.
type CallStore interface {
	// SaveCall upserts a call record keyed by CallID. An upsert with a lower
	// Result.Generation than the stored row must leave the row unchanged.
	SaveCall(ctx context.Context, rec CallRecord) error

	// GetCall retrieves a call record by internal call ID.
	// Returns (nil, nil) when the call is unknown.
	GetCall(ctx context.Context, callID string) (*CallRecord, error)

	// RecentCalls returns the most recently ended calls, newest first.
	// limit of 0 applies an implementation default.
	RecentCalls(ctx context.Context, limit int) ([]CallRecord, error)
}

// Store combines both persistence concerns.
type Store interface {
	SummaryStore
	CallStore
}
