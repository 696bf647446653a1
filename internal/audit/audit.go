package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a recorded operation ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one recorded directory mutation.
type Entry struct {
	ID         string    // UUID, generated when empty
	RecordedAt time.Time // Filled with time.Now() when zero
	Op         string    // Wire operation name, e.g. "add_group_member"
	EntityID   string    // Primary subject, e.g. the user id
	TargetID   string    // Secondary subject, e.g. the group id
	RequestID  string    // X-Request-Id of the originating call
	Outcome    Outcome
	Detail     string // Error text for failed outcomes
}

// Record appends one entry, filling in ID and RecordedAt when unset.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if r == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, recorded_at_unix_ms, op, entity_id, target_id, request_id, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RecordedAt.UnixMilli(), e.Op, e.EntityID, e.TargetID, e.RequestID, string(e.Outcome), e.Detail)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A limit of zero or
// less defaults to 50.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recorded_at_unix_ms, op, entity_id, target_id, request_id, outcome, detail
		FROM audit_log
		ORDER BY recorded_at_unix_ms DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recordedAt int64
		var outcome string
		if err := rows.Scan(&e.ID, &recordedAt, &e.Op, &e.EntityID, &e.TargetID, &e.RequestID, &outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.RecordedAt = time.UnixMilli(recordedAt)
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded before the retention window and returns
// the number removed.
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if r == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM audit_log WHERE recorded_at_unix_ms < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return res.RowsAffected()
}
