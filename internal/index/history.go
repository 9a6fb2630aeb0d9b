package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/simlog/internal/value"
)

// HistoryFilter narrows History. Empty fields match everything.
type HistoryFilter struct {
	Condition string
	Run       string
	Action    string
	Limit     int // most recent N entries; 0 means all
}

// Action is one indexed action log entry.
type Action struct {
	Condition string       `json:"condition"`
	Run       string       `json:"run,omitempty"`
	Key       string       `json:"key"`
	LoggedAt  time.Time    `json:"logged_at"`
	ID        string       `json:"id,omitempty"`
	Action    string       `json:"action"`
	Message   string       `json:"message"`
	Object    string       `json:"object,omitempty"`
	Entry     value.Object `json:"entry"`
}

// History returns matching action log entries oldest first. Entries whose
// key is not a timestamp have a zero LoggedAt and sort first.
func (x *Index) History(ctx context.Context, f HistoryFilter) ([]Action, error) {
	var (
		where []string
		args  []any
	)
	if f.Condition != "" {
		where = append(where, "condition_key = ?")
		args = append(args, f.Condition)
	}
	if f.Run != "" {
		where = append(where, "run_key = ?")
		args = append(args, f.Run)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}

	query := `SELECT condition_key, run_key, log_key, logged_at, entry_id, action, message, object, entry FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY logged_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		var (
			a        Action
			loggedAt string
			raw      string
		)
		if err := rows.Scan(&a.Condition, &a.Run, &a.Key, &loggedAt, &a.ID, &a.Action, &a.Message, &a.Object, &raw); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if loggedAt != "" {
			if a.LoggedAt, err = time.Parse(time.RFC3339, loggedAt); err != nil {
				return nil, fmt.Errorf("parse logged_at %q: %w", loggedAt, err)
			}
		}
		if a.Entry, err = value.ParseObject([]byte(raw)); err != nil {
			return nil, fmt.Errorf("decode entry %q: %w", a.Key, err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	slices.Reverse(actions)
	return actions, nil
}

// Stats counts the rows in each table.
func (x *Index) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"conditions", &s.Conditions},
		{"runs", &s.Runs},
		{"outputs", &s.Outputs},
		{"actions", &s.Actions},
	}
	for _, c := range counts {
		if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return s, nil
}

// BuiltFrom returns the source recorded by the last Rebuild. ok is false
// for an index that was never built.
func (x *Index) BuiltFrom(ctx context.Context) (src Source, ok bool, err error) {
	rows, err := x.db.QueryContext(ctx, `SELECT key, value FROM index_meta WHERE key IN ('source', 'digest')`)
	if err != nil {
		return Source{}, false, fmt.Errorf("query index meta: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Source{}, false, fmt.Errorf("scan index meta: %w", err)
		}
		ok = true
		switch k {
		case "source":
			src.Path = v
		case "digest":
			src.Digest = v
		}
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Source{}, false, fmt.Errorf("iterate index meta: %w", err)
	}
	return src, ok, nil
}
