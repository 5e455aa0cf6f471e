package telemetry

import (
	"context"
	"time"
)

// Query selects stored records. Zero values disable a filter; Limit keeps
// the most recent matches.
type Query struct {
	Start   time.Time
	End     time.Time
	Session string
	Limit   int
}

// Match reports whether rec satisfies the time and session filters.
func (q Query) Match(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Session != "" && rec.Session != q.Session {
		return false
	}
	return true
}

// Querier is implemented by sinks that can read records back.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Record, error)
}

// Store persists records and supports querying.
type Store interface {
	Sink
	Querier
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Apply filters recs and keeps the most recent Limit matches.
func (q Query) Apply(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}
