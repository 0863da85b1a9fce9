package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/enrichcall/internal/bundle"
)

// Entry is one routed event and its outcome.
type Entry struct {
	ID          int64
	Seq         int64
	FlowToken   string
	Kind        string
	PhoneNumber string
	// NumberKey is the normalized form of PhoneNumber, used for lookups.
	NumberKey   string
	State       string
	Outcome     string
	CallID      string
	Matched     int
	Payload     bundle.Bundle
	ContentHash string
}

// Filter narrows Read. Zero fields match everything.
type Filter struct {
	FlowToken string
	NumberKey string
	Kind      string
	Limit     int
}

// Append writes e. Writing the same (flow token, seq) twice is a no-op.
// ContentHash is computed from Payload when the caller leaves it empty.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	var payload sql.NullString
	if e.Payload != nil {
		data, err := bundle.MarshalCanonical(e.Payload)
		if err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
		if e.ContentHash == "" {
			hash, err := bundle.Hash(e.Payload)
			if err != nil {
				return fmt.Errorf("append entry: %w", err)
			}
			e.ContentHash = hash
		}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(seq, flow_token, kind, phone_number, number_key, state, outcome, call_id, matched, payload, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_token, seq) DO NOTHING
	`,
		e.Seq,
		e.FlowToken,
		e.Kind,
		e.PhoneNumber,
		e.NumberKey,
		e.State,
		e.Outcome,
		e.CallID,
		e.Matched,
		payload,
		e.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// Read returns entries matching f ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) Read(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.FlowToken != "" {
		where = append(where, "flow_token = ?")
		args = append(args, f.FlowToken)
	}
	if f.NumberKey != "" {
		where = append(where, "number_key = ?")
		args = append(args, f.NumberKey)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	query := `
		SELECT id, seq, flow_token, kind, phone_number, number_key, state, outcome, call_id, matched, payload, content_hash
		FROM events`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY seq ASC, id ASC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Count returns the number of journaled events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// LastSeq returns the highest seq written, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM events").Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		payload sql.NullString
	)
	err := rows.Scan(
		&e.ID,
		&e.Seq,
		&e.FlowToken,
		&e.Kind,
		&e.PhoneNumber,
		&e.NumberKey,
		&e.State,
		&e.Outcome,
		&e.CallID,
		&e.Matched,
		&payload,
		&e.ContentHash,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}
	if payload.Valid {
		var b bundle.Bundle
		if err := json.Unmarshal([]byte(payload.String), &b); err != nil {
			return Entry{}, fmt.Errorf("unmarshal payload for event %d: %w", e.ID, err)
		}
		e.Payload = b
	}
	return e, nil
}
