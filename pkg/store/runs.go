package store

import (
	"context"
	"database/sql"
	"errors"
)

const runColumns = "id, started_at, finished_at, last_stage, outcome, lines"

// DefaultRunLimit applies when ListRuns is given no positive limit.
const DefaultRunLimit = 20

func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) error {
	var finished sql.NullString
	if r.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, formatTime(r.StartedAt), finished, r.LastStage, r.Outcome, r.Lines)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r                      Run
		started                string
		finished, stage, outcm sql.NullString
		lines                  sql.NullInt64
	)
	if err := row.Scan(&r.ID, &started, &finished, &stage, &outcm, &lines); err != nil {
		return nil, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		if t, err := parseTime(finished.String); err == nil {
			r.FinishedAt = &t
		}
	}
	r.LastStage = stage.String
	r.Outcome = outcm.String
	r.Lines = int(lines.Int64)
	return &r, nil
}
