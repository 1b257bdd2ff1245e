package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("journal: not found")

// ReadDispatches returns every dispatch ordered by seq.
// Returns an empty slice, not nil, for an empty journal.
func (j *Journal) ReadDispatches(ctx context.Context) ([]DispatchRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, journal_seq, action_type, payload, payload_digest
		FROM dispatches
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	dispatches := []DispatchRecord{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return dispatches, nil
}

// ReadDispatch returns one dispatch, or ErrNotFound.
func (j *Journal) ReadDispatch(ctx context.Context, id string) (DispatchRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, journal_seq, action_type, payload, payload_digest
		FROM dispatches
		WHERE id = ?
	`, id)

	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DispatchRecord{}, fmt.Errorf("dispatch %s: %w", id, ErrNotFound)
	}
	return d, err
}

// ReadRuns returns the saga runs for dispatchID, or every run when
// dispatchID is empty, ordered by the journal seq at which they started.
func (j *Journal) ReadRuns(ctx context.Context, dispatchID string) ([]RunRecord, error) {
	query := `
		SELECT id, dispatch_id, saga, outcome, error, started_seq, finished_seq
		FROM saga_runs
	`
	var args []any
	if dispatchID != "" {
		query += ` WHERE dispatch_id = ?`
		args = append(args, dispatchID)
	}
	query += ` ORDER BY started_seq ASC, id ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.DispatchID, &r.Saga, &r.Outcome, &r.Error, &r.StartedSeq, &r.FinishedSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Stats counts dispatches and runs, with runs broken down by outcome and
// by saga.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Outcomes: map[string]int64{},
		Sagas:    map[string]int64{},
	}

	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatches`).Scan(&st.Dispatches); err != nil {
		return Stats{}, fmt.Errorf("count dispatches: %w", err)
	}

	if err := j.countBy(ctx, "outcome", st.Outcomes); err != nil {
		return Stats{}, err
	}
	if err := j.countBy(ctx, "saga", st.Sagas); err != nil {
		return Stats{}, err
	}
	for _, n := range st.Outcomes {
		st.Runs += n
	}
	return st, nil
}

// countBy fills into with saga_runs counts grouped by column. column is
// always a constant from this file.
func (j *Journal) countBy(ctx context.Context, column string, into map[string]int64) error {
	rows, err := j.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM saga_runs GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("count runs by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan run count: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(s scanner) (DispatchRecord, error) {
	var d DispatchRecord
	if err := s.Scan(&d.ID, &d.Seq, &d.JournalSeq, &d.ActionType, &d.Payload, &d.PayloadDigest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DispatchRecord{}, err
		}
		return DispatchRecord{}, fmt.Errorf("scan dispatch: %w", err)
	}
	return d, nil
}
