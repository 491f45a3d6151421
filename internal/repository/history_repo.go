package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	hmi "extruder_hmi"
)

type HistorySQLite struct {
	db *sql.DB
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite { return &HistorySQLite{db: db} }

var _ HistoryRepo = (*HistorySQLite)(nil)

// Timestamps are stored as RFC3339Nano text so lexical order equals time
// order and sub-second tick timing survives a reload.
const tsLayout = time.RFC3339Nano

const (
	insertEntrySQL = `
		INSERT INTO history_entries
			(id, ts, temps, relays, motors, manual_duty_z1, manual_duty_z2,
			 target_z1, target_z2, status, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectSinceSQL = `
		SELECT ts, temps, relays, motors, manual_duty_z1, manual_duty_z2,
		       target_z1, target_z2, status, mode
		FROM history_entries WHERE ts >= ? ORDER BY ts ASC
	`

	pruneSQL = `DELETE FROM history_entries WHERE ts < ?`
)

func marshalMap(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Append inserts one sample row. The row id is generated here.
func (r *HistorySQLite) Append(ctx context.Context, e hmi.HistoryEntry) error {
	temps, err := marshalMap(e.Temps)
	if err != nil {
		return fmt.Errorf("marshal temps: %w", err)
	}
	relays, err := marshalMap(e.Relays)
	if err != nil {
		return fmt.Errorf("marshal relays: %w", err)
	}
	motors, err := marshalMap(e.Motors)
	if err != nil {
		return fmt.Errorf("marshal motors: %w", err)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.ExecContext(ctx, insertEntrySQL,
		uuid.NewString(),
		ts.UTC().Format(tsLayout),
		temps,
		relays,
		motors,
		e.ManualDutyZ1,
		e.ManualDutyZ2,
		e.TargetZ1,
		e.TargetZ2,
		e.Status,
		e.Mode,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// LoadSince returns entries at or after cutoff in ascending time order,
// for seeding the recorder at startup.
func (r *HistorySQLite) LoadSince(ctx context.Context, cutoff time.Time) ([]hmi.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectSinceSQL, cutoff.UTC().Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("select history since %s: %w", cutoff, err)
	}
	defer func() { _ = rows.Close() }()

	var out []hmi.HistoryEntry
	for rows.Next() {
		var (
			e                   hmi.HistoryEntry
			tsStr               string
			temps, relays, mots string
		)
		if err := rows.Scan(
			&tsStr,
			&temps,
			&relays,
			&mots,
			&e.ManualDutyZ1,
			&e.ManualDutyZ2,
			&e.TargetZ1,
			&e.TargetZ2,
			&e.Status,
			&e.Mode,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}

		ts, err := time.Parse(tsLayout, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", tsStr, err)
		}
		e.Timestamp = ts

		if err := json.Unmarshal([]byte(temps), &e.Temps); err != nil {
			return nil, fmt.Errorf("unmarshal temps: %w", err)
		}
		if err := json.Unmarshal([]byte(relays), &e.Relays); err != nil {
			return nil, fmt.Errorf("unmarshal relays: %w", err)
		}
		if err := json.Unmarshal([]byte(mots), &e.Motors); err != nil {
			return nil, fmt.Errorf("unmarshal motors: %w", err)
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

// Prune deletes rows older than cutoff, mirroring the recorder's eviction.
func (r *HistorySQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneSQL, cutoff.UTC().Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history before %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for history prune: %w", err)
	}
	return n, nil
}
