package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/value"
)

// Source identifies the document an index was built from.
type Source struct {
	Path   string
	Digest string
}

// Stats counts the rows in the index.
type Stats struct {
	Conditions int `json:"conditions"`
	Runs       int `json:"runs"`
	Outputs    int `json:"outputs"`
	Actions    int `json:"actions"`
}

// Rebuild replaces the index contents with doc in a single transaction.
//
// Condition log entries mirrored from runs (level "run") and output log
// entries are skipped; the run's own log already holds them.
func (x *Index) Rebuild(ctx context.Context, doc value.Object, src Source) (Stats, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"actions", "outputs", "runs", "conditions", "index_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return Stats{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var stats Stats
	for _, icKey := range doc.SortedKeys() {
		ic, ok := doc.Object(icKey)
		if !ok {
			continue
		}
		if err := insertRecord(ctx, tx, "conditions", icKey, "", ic); err != nil {
			return Stats{}, err
		}
		stats.Conditions++

		n, err := insertActions(ctx, tx, icKey, "", ic, true)
		if err != nil {
			return Stats{}, err
		}
		stats.Actions += n

		sims, _ := ic.Object("simulations")
		for _, runKey := range sims.SortedKeys() {
			run, ok := sims.Object(runKey)
			if !ok {
				continue
			}
			if err := insertRecord(ctx, tx, "runs", runKey, icKey, run); err != nil {
				return Stats{}, err
			}
			stats.Runs++

			n, err := insertActions(ctx, tx, icKey, runKey, run, false)
			if err != nil {
				return Stats{}, err
			}
			stats.Actions += n

			outputs, _ := run.Object("outputs")
			for _, dir := range outputs.SortedKeys() {
				out, ok := outputs.Object(dir)
				if !ok {
					continue
				}
				if err := insertOutput(ctx, tx, icKey, runKey, dir, out); err != nil {
					return Stats{}, err
				}
				stats.Outputs++
			}
		}
	}

	meta := map[string]string{
		"source":   src.Path,
		"digest":   src.Digest,
		"built_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return Stats{}, fmt.Errorf("write index meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit rebuild: %w", err)
	}
	return stats, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, table, key, conditionKey string, rec value.Object) error {
	raw, err := value.MarshalCanonical(rec)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", table, key, err)
	}
	meta, _ := rec.Object("meta")

	switch table {
	case "conditions":
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conditions (key, information, date_created, last_edited, record)
			VALUES (?, ?, ?, ?, ?)
		`, key, rec.String("information"), nullable(meta.String("dateCreated")), nullable(meta.String("lastEdited")), string(raw))
	default:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (condition_key, key, information, software, date_created, last_edited, record)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, conditionKey, key, rec.String("information"), nullable(meta.String("software")),
			nullable(meta.String("dateCreated")), nullable(meta.String("lastEdited")), string(raw))
	}
	if err != nil {
		return fmt.Errorf("insert %s %q: %w", table, key, err)
	}
	return nil
}

func insertOutput(ctx context.Context, tx *sql.Tx, icKey, runKey, dir string, out value.Object) error {
	meta, _ := out.Object("meta")
	isRun, _ := meta["isRun"].(value.Bool)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outputs (condition_key, run_key, dir, information, is_run, date_created)
		VALUES (?, ?, ?, ?, ?, ?)
	`, icKey, runKey, dir, out.String("information"), bool(isRun), nullable(meta.String("dateCreated")))
	if err != nil {
		return fmt.Errorf("insert output %q: %w", dir, err)
	}
	return nil
}

func insertActions(ctx context.Context, tx *sql.Tx, icKey, runKey string, rec value.Object, skipMirrored bool) (int, error) {
	log, _ := rec.Object("action_log")
	keys := log.SortedKeys()
	record.SortLogKeys(keys)
	n := 0
	for _, key := range keys {
		entry, ok := log.Object(key)
		if !ok {
			continue
		}
		if skipMirrored && entry.String("level") == "run" {
			continue
		}

		raw, err := value.MarshalCanonical(entry)
		if err != nil {
			return 0, fmt.Errorf("encode log entry %q: %w", key, err)
		}

		loggedAt := ""
		if ts, err := record.ParseTimestamp(key); err == nil {
			loggedAt = ts.UTC().Format(time.RFC3339)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO actions (condition_key, run_key, log_key, logged_at, entry_id, action, message, object, entry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, icKey, runKey, key, loggedAt, entry.String("id"), entry.String("act"), entry.String("msg"),
			entry.String("object"), string(raw))
		if err != nil {
			return 0, fmt.Errorf("insert log entry %q: %w", key, err)
		}
		n++
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
