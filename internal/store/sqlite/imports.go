package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"instrument-catalogv1/internal/model"
)

const importCols = `id, source, started_at, finished_at, rows_in, rows_ok, rows_err, status, errors, log_url`

// InsertImport persists a freshly started import record.
func (s *Store) InsertImport(ctx context.Context, rec *model.ImportRecord) error {
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal import errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instrument_imports (`+importCols+`)
		VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Source, rec.StartedAt.UnixNano(),
		rec.RowsIn, rec.RowsOK, rec.RowsErr, rec.Status, string(errsJSON), nullable(rec.LogURL))
	if err != nil {
		return fmt.Errorf("sqlite insert import: %w", err)
	}
	return nil
}

// UpdateImportTerminal writes the single terminal update for an import:
// finished_at, row counts, status and the error list.
func (s *Store) UpdateImportTerminal(ctx context.Context, rec *model.ImportRecord) error {
	if rec.FinishedAt == nil {
		return fmt.Errorf("sqlite update import %s: finished_at not set", rec.ID)
	}
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal import errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE instrument_imports
		SET finished_at = ?, rows_in = ?, rows_ok = ?, rows_err = ?, status = ?, errors = ?
		WHERE id = ?
	`, rec.FinishedAt.UnixNano(), rec.RowsIn, rec.RowsOK, rec.RowsErr,
		rec.Status, string(errsJSON), rec.ID)
	if err != nil {
		return fmt.Errorf("sqlite update import: %w", err)
	}
	return nil
}

// MarkImportFailed records a failed import: status, finished_at and the
// error list change, row counts stay whatever they were.
func (s *Store) MarkImportFailed(ctx context.Context, id string, finishedAt time.Time, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal import errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE instrument_imports
		SET finished_at = ?, status = ?, errors = ?
		WHERE id = ?
	`, finishedAt.UnixNano(), model.ImportStatusFailed, string(errsJSON), id)
	if err != nil {
		return fmt.Errorf("sqlite fail import: %w", err)
	}
	return nil
}

// ImportByID returns the import record with the given id, or nil if absent.
func (s *Store) ImportByID(ctx context.Context, id string) (*model.ImportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+importCols+` FROM instrument_imports WHERE id = ?`, id)
	rec, err := scanImport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListImports returns all import records, most recent first.
func (s *Store) ListImports(ctx context.Context) ([]model.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importCols+` FROM instrument_imports ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list imports: %w", err)
	}
	defer rows.Close()

	var out []model.ImportRecord
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanImport(r rowScanner) (model.ImportRecord, error) {
	var (
		rec              model.ImportRecord
		startedNS        int64
		finishedNS       sql.NullInt64
		errsJSON, logURL sql.NullString
	)
	err := r.Scan(&rec.ID, &rec.Source, &startedNS, &finishedNS,
		&rec.RowsIn, &rec.RowsOK, &rec.RowsErr, &rec.Status, &errsJSON, &logURL)
	if err != nil {
		return model.ImportRecord{}, fmt.Errorf("sqlite scan import: %w", err)
	}
	rec.StartedAt = time.Unix(0, startedNS).UTC()
	if finishedNS.Valid {
		t := time.Unix(0, finishedNS.Int64).UTC()
		rec.FinishedAt = &t
	}
	rec.Errors = []string{}
	if errsJSON.Valid && errsJSON.String != "" {
		if err := json.Unmarshal([]byte(errsJSON.String), &rec.Errors); err != nil {
			return model.ImportRecord{}, fmt.Errorf("unmarshal import errors: %w", err)
		}
	}
	rec.LogURL = logURL.String
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
