package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// Entry is one recorded transition.
type Entry struct {
	Index   int
	Name    string
	Seq     int64
	Action  string
	Payload value.Value // Array of dispatch arguments, or Null
	State   value.Value
	Hash    string
}

// At returns the state store index committed at seq. Returns an error
// wrapping ErrNotFound if there is no such transition.
func (j *Journal) At(ctx context.Context, index int, seq int64) (value.Value, error) {
	var data string
	err := j.db.QueryRowContext(ctx, `
		SELECT state
		FROM transitions
		WHERE store_index = ? AND seq = ?
	`, index, seq).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: index %d seq %d", ErrNotFound, index, seq)
	}
	if err != nil {
		return nil, fmt.Errorf("read transition: %w", err)
	}

	state, err := unmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("read transition: %w", err)
	}
	return state, nil
}

// History returns every transition of store index ordered by seq.
// Returns an empty slice (not nil) if nothing was recorded.
func (j *Journal) History(ctx context.Context, index int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT store_index, seq, name, action, payload, state, state_hash
		FROM transitions
		WHERE store_index = ?
		ORDER BY seq ASC
	`, index)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
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
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}

// Len returns the number of recorded transitions across all stores.
func (j *Journal) Len(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return n, nil
}

// Resolver adapts At to store.WithHistory.
func (j *Journal) Resolver(ctx context.Context) store.HistoryFunc {
	return func(index int, seq int64) (value.Value, error) {
		return j.At(ctx, index, seq)
	}
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e       Entry
		payload string
		state   string
	)
	if err := rows.Scan(&e.Index, &e.Seq, &e.Name, &e.Action, &payload, &state, &e.Hash); err != nil {
		return Entry{}, fmt.Errorf("scan transition: %w", err)
	}

	var err error
	if e.Payload, err = unmarshalValue(payload); err != nil {
		return Entry{}, fmt.Errorf("transition %d/%d payload: %w", e.Index, e.Seq, err)
	}
	if e.State, err = unmarshalValue(state); err != nil {
		return Entry{}, fmt.Errorf("transition %d/%d state: %w", e.Index, e.Seq, err)
	}
	return e, nil
}
