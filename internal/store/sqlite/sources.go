package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"instrument-catalogv1/internal/model"
)

const sourceCols = `id, name, type, config, schedule_cron, enabled, last_run_at, last_status`

// InsertSource registers an upstream feed.
func (s *Store) InsertSource(ctx context.Context, src *model.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instrument_sources (`+sourceCols+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`, src.ID, src.Name, src.Type, nullable(src.Config), nullable(src.ScheduleCron),
		src.Enabled, nullable(src.LastStatus))
	if err != nil {
		return fmt.Errorf("sqlite insert source: %w", err)
	}
	return nil
}

// ListSources returns all registered feeds ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceCols+` FROM instrument_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list sources: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// SourceByName returns the feed with the given name, or nil if absent.
func (s *Store) SourceByName(ctx context.Context, name string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceCols+` FROM instrument_sources WHERE name = ?`, name)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &src, nil
}

// TouchSourceRun stamps the last run time and status on a feed after an
// import against it finishes.
func (s *Store) TouchSourceRun(ctx context.Context, id string, at time.Time, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE instrument_sources SET last_run_at = ?, last_status = ? WHERE id = ?
	`, at.UnixNano(), status, id)
	if err != nil {
		return fmt.Errorf("sqlite touch source: %w", err)
	}
	return nil
}

func scanSource(r rowScanner) (model.Source, error) {
	var (
		src                      model.Source
		config, cron, lastStatus sql.NullString
		lastRunNS                sql.NullInt64
	)
	err := r.Scan(&src.ID, &src.Name, &src.Type, &config, &cron,
		&src.Enabled, &lastRunNS, &lastStatus)
	if err != nil {
		return model.Source{}, fmt.Errorf("sqlite scan source: %w", err)
	}
	src.Config = config.String
	src.ScheduleCron = cron.String
	src.LastStatus = lastStatus.String
	if lastRunNS.Valid {
		t := time.Unix(0, lastRunNS.Int64).UTC()
		src.LastRunAt = &t
	}
	return src, nil
}
