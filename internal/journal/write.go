package journal

import (
	"context"
	"fmt"
)

// WriteDispatch inserts a dispatch record.
// ON CONFLICT(id) DO NOTHING: writing the same dispatch twice is a no-op.
func (j *Journal) WriteDispatch(ctx context.Context, d DispatchRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, seq, journal_seq, action_type, payload, payload_digest)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		d.Seq,
		d.JournalSeq,
		d.ActionType,
		d.Payload,
		d.PayloadDigest,
	)
	if err != nil {
		return fmt.Errorf("write dispatch %s: %w", d.ID, err)
	}
	return nil
}

// WriteRun inserts a saga run record and returns its ID.
func (j *Journal) WriteRun(ctx context.Context, r RunRecord) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO saga_runs
		(dispatch_id, saga, outcome, error, started_seq, finished_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		r.DispatchID,
		r.Saga,
		r.Outcome,
		r.Error,
		r.StartedSeq,
		r.FinishedSeq,
	)
	if err != nil {
		return 0, fmt.Errorf("write run %s/%s: %w", r.Saga, r.DispatchID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write run: last insert id: %w", err)
	}
	return id, nil
}
