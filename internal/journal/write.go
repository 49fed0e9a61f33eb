package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IniZio/reim/internal/store"
)

// Record inserts one transition. Recording the same (index, seq) twice
// keeps the first row.
func (j *Journal) Record(ctx context.Context, tr store.Transition) error {
	state, hash, err := marshalState(tr.State)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO transitions
		(store_index, seq, name, action, payload, state, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(store_index, seq) DO NOTHING
	`,
		tr.Index,
		tr.Seq,
		tr.Name,
		tr.Action,
		marshalPayload(tr.Payload),
		state,
		hash,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Hook returns a commit hook that records every transition. Stores
// cannot fail a commit, so write errors are logged and dropped.
func (j *Journal) Hook(ctx context.Context, logger *slog.Logger) store.CommitHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(tr store.Transition) {
		if err := j.Record(ctx, tr); err != nil {
			logger.Warn("journal write failed",
				"index", tr.Index,
				"seq", tr.Seq,
				"action", tr.Action,
				"error", err)
		}
	}
}

// Prune deletes every transition of store index older than seq and
// returns the number of rows removed.
func (j *Journal) Prune(ctx context.Context, index int, before int64) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM transitions
		WHERE store_index = ? AND seq < ?
	`, index, before)
	if err != nil {
		return 0, fmt.Errorf("prune transitions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune transitions: %w", err)
	}
	return n, nil
}
