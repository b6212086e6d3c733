// Package postgres provides a PostgreSQL-backed implementation of the haulvox
// persistence layer: browser session summaries and telephone negotiation call
// records.
//
// Both concerns share a single [pgxpool.Pool]. Transcripts and action items
// are stored as JSONB documents; the fields the dispatcher queries on (load,
// broker, outcome, recency) are first-class columns.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveSummary(ctx, summary)
//	_ = st.SaveCall(ctx, record)
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haulvox/haulvox/pkg/store"
	"github.com/haulvox/haulvox/pkg/types"
)

// defaultListLimit bounds RecentSummaries and RecentCalls when the caller
// passes 0.
const defaultListLimit = 50

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed persistence store. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSummary implements [store.SummaryStore].
func (s *Store) SaveSummary(ctx context.Context, summary types.SessionSummary) error {
	if summary.SessionID == "" {
		return errors.New("postgres store: summary has no session id")
	}
	transcript, err := json.Marshal(summary.Transcript)
	if err != nil {
		return fmt.Errorf("postgres store: encode transcript: %w", err)
	}
	items, err := json.Marshal(summary.ActionItems)
	if err != nil {
		return fmt.Errorf("postgres store: encode action items: %w", err)
	}

	const q = `
		INSERT INTO sessions (session_id, transcript, action_items, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
		    transcript   = EXCLUDED.transcript,
		    action_items = EXCLUDED.action_items,
		    started_at   = EXCLUDED.started_at,
		    ended_at     = EXCLUDED.ended_at`

	if _, err := s.pool.Exec(ctx, q,
		summary.SessionID, transcript, items, summary.StartedAt, summary.EndedAt,
	); err != nil {
		return fmt.Errorf("postgres store: save summary: %w", err)
	}
	return nil
}

// GetSummary implements [store.SummaryStore].
func (s *Store) GetSummary(ctx context.Context, sessionID string) (*types.SessionSummary, error) {
	const q = `
		SELECT session_id, transcript, action_items, started_at, ended_at
		FROM   sessions
		WHERE  session_id = $1`

	summary, err := scanSummary(s.pool.QueryRow(ctx, q, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get summary: %w", err)
	}
	return summary, nil
}

// RecentSummaries implements [store.SummaryStore].
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]types.SessionSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const q = `
		SELECT session_id, transcript, action_items, started_at, ended_at
		FROM   sessions
		ORDER  BY ended_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent summaries: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.SessionSummary, error) {
		sum, err := scanSummary(row)
		if err != nil {
			return types.SessionSummary{}, err
		}
		return *sum, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan summaries: %w", err)
	}
	if summaries == nil {
		summaries = []types.SessionSummary{}
	}
	return summaries, nil
}

// SaveCall implements [store.CallStore]. The generation guard in the upsert
// keeps a late transcript-analysis result from being clobbered by a replayed
// earlier write.
func (s *Store) SaveCall(ctx context.Context, rec store.CallRecord) error {
	if rec.CallID == "" {
		return errors.New("postgres store: call record has no call id")
	}
	transcript, err := json.Marshal(rec.Result.Transcript)
	if err != nil {
		return fmt.Errorf("postgres store: encode transcript: %w", err)
	}

	const q = `
		INSERT INTO calls
		    (call_id, carrier_sid, destination, broker_name, load_id,
		     agreed, rate, rate_per_mile, notes, generation, finalized,
		     duration_ns, transcript, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (call_id) DO UPDATE SET
		    carrier_sid   = EXCLUDED.carrier_sid,
		    destination   = EXCLUDED.destination,
		    broker_name   = EXCLUDED.broker_name,
		    load_id       = EXCLUDED.load_id,
		    agreed        = EXCLUDED.agreed,
		    rate          = EXCLUDED.rate,
		    rate_per_mile = EXCLUDED.rate_per_mile,
		    notes         = EXCLUDED.notes,
		    generation    = EXCLUDED.generation,
		    finalized     = EXCLUDED.finalized,
		    duration_ns   = EXCLUDED.duration_ns,
		    transcript    = EXCLUDED.transcript,
		    started_at    = EXCLUDED.started_at,
		    ended_at      = EXCLUDED.ended_at
		WHERE calls.generation <= EXCLUDED.generation`

	if _, err := s.pool.Exec(ctx, q,
		rec.CallID, rec.CarrierSID, rec.To, rec.BrokerName, rec.LoadID,
		rec.Result.Agreed, rec.Result.NegotiatedRate, rec.Result.NegotiatedRatePerMile,
		rec.Result.Notes, rec.Result.Generation, rec.Result.Finalized,
		rec.Result.CallDuration.Nanoseconds(), transcript, rec.StartedAt, rec.EndedAt,
	); err != nil {
		return fmt.Errorf("postgres store: save call: %w", err)
	}
	return nil
}

// GetCall implements [store.CallStore].
func (s *Store) GetCall(ctx context.Context, callID string) (*store.CallRecord, error) {
	const q = callSelect + ` WHERE call_id = $1`

	rec, err := scanCall(s.pool.QueryRow(ctx, q, callID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get call: %w", err)
	}
	return rec, nil
}

// RecentCalls implements [store.CallStore].
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]store.CallRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const q = callSelect + ` ORDER BY ended_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent calls: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.CallRecord, error) {
		rec, err := scanCall(row)
		if err != nil {
			return store.CallRecord{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan calls: %w", err)
	}
	if records == nil {
		records = []store.CallRecord{}
	}
	return records, nil
}

const callSelect = `
	SELECT call_id, carrier_sid, destination, broker_name, load_id,
	       agreed, rate, rate_per_mile, notes, generation, finalized,
	       duration_ns, transcript, started_at, ended_at
	FROM   calls`

// row is the subset of pgx.Row/CollectableRow both scan helpers need.
type row interface {
	Scan(dest ...any) error
}

func scanSummary(r row) (*types.SessionSummary, error) {
	var (
		sum        types.SessionSummary
		transcript []byte
		items      []byte
	)
	if err := r.Scan(&sum.SessionID, &transcript, &items, &sum.StartedAt, &sum.EndedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(transcript, &sum.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := json.Unmarshal(items, &sum.ActionItems); err != nil {
		return nil, fmt.Errorf("decode action items: %w", err)
	}
	return &sum, nil
}

func scanCall(r row) (*store.CallRecord, error) {
	var (
		rec        store.CallRecord
		durationNS int64
		transcript []byte
	)
	if err := r.Scan(
		&rec.CallID, &rec.CarrierSID, &rec.To, &rec.BrokerName, &rec.LoadID,
		&rec.Result.Agreed, &rec.Result.NegotiatedRate, &rec.Result.NegotiatedRatePerMile,
		&rec.Result.Notes, &rec.Result.Generation, &rec.Result.Finalized,
		&durationNS, &transcript, &rec.StartedAt, &rec.EndedAt,
	); err != nil {
		return nil, err
	}
	rec.Result.CallDuration = time.Duration(durationNS)
	if err := json.Unmarshal(transcript, &rec.Result.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &rec, nil
}
