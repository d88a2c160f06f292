package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"instrument-catalogv1/internal/model"
)

const instrumentCols = `instrument_id, instrument_token, exchange_token, tradingsymbol, name,
	last_price, expiry, strike, tick_size, lot_size, instrument_type, segment, exchange,
	created_at, updated_at`

// UpsertInstruments writes a batch of instruments inside tx. Rows whose
// instrument_token already exists have every mutable field and updated_at
// replaced; created_at is preserved.
func (s *Store) UpsertInstruments(ctx context.Context, tx *sql.Tx, batch []model.Instrument) error {
	if len(batch) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instruments (`+instrumentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument_token) DO UPDATE SET
			exchange_token  = excluded.exchange_token,
			tradingsymbol   = excluded.tradingsymbol,
			name            = excluded.name,
			last_price      = excluded.last_price,
			expiry          = excluded.expiry,
			strike          = excluded.strike,
			tick_size       = excluded.tick_size,
			lot_size        = excluded.lot_size,
			instrument_type = excluded.instrument_type,
			segment         = excluded.segment,
			exchange        = excluded.exchange,
			updated_at      = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, in := range batch {
		var name, expiry any
		if in.Name != "" {
			name = in.Name
		}
		if in.Expiry != "" {
			expiry = in.Expiry
		}
		var strike any
		if in.Strike != nil {
			strike = *in.Strike
		}
		_, err := stmt.ExecContext(ctx,
			in.ID, in.InstrumentToken, in.ExchangeToken, in.TradingSymbol, name,
			in.LastPrice, expiry, strike, in.TickSize, in.LotSize,
			in.InstrumentType, in.Segment, in.Exchange,
			in.CreatedAt.UnixNano(), in.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("sqlite upsert %s: %w", in.InstrumentToken, err)
		}
	}
	return nil
}

// DeleteAllInstruments removes every instrument row inside tx. Used by
// replace-existing imports so the wipe and the re-inserts commit together.
func (s *Store) DeleteAllInstruments(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM instruments`); err != nil {
		return fmt.Errorf("sqlite delete instruments: %w", err)
	}
	return nil
}

// IdentityRow is one stored (exchange, token) -> id mapping.
type IdentityRow struct {
	Exchange string
	Token    string
	ID       string
}

// IdentityRows returns every stored identity mapping. The import pipeline
// preloads these once per batch instead of querying per row.
func (s *Store) IdentityRows(ctx context.Context) ([]IdentityRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exchange, instrument_token, instrument_id FROM instruments`)
	if err != nil {
		return nil, fmt.Errorf("sqlite identity rows: %w", err)
	}
	defer rows.Close()

	var out []IdentityRow
	for rows.Next() {
		var r IdentityRow
		if err := rows.Scan(&r.Exchange, &r.Token, &r.ID); err != nil {
			return nil, fmt.Errorf("sqlite scan identity row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InstrumentByID returns the instrument with the given id, or nil if absent.
func (s *Store) InstrumentByID(ctx context.Context, id string) (*model.Instrument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instrumentCols+` FROM instruments WHERE instrument_id = ?`, id)
	return scanOptionalInstrument(row)
}

// InstrumentByToken returns the instrument with the given unique token,
// or nil if absent.
func (s *Store) InstrumentByToken(ctx context.Context, token string) (*model.Instrument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instrumentCols+` FROM instruments WHERE instrument_token = ?`, token)
	return scanOptionalInstrument(row)
}

// InstrumentsByIDs returns the instruments for ids, preserving the input
// order and silently dropping unknown ids.
func (s *Store) InstrumentsByIDs(ctx context.Context, ids []string) ([]model.Instrument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instrumentCols+` FROM instruments WHERE instrument_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite select by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Instrument, len(ids))
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		byID[in.ID] = in
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Instrument, 0, len(byID))
	for _, id := range ids {
		if in, ok := byID[id]; ok {
			out = append(out, in)
		}
	}
	return out, nil
}

// ClearInstruments deletes all instrument rows and returns how many it removed.
func (s *Store) ClearInstruments(ctx context.Context) (int, error) {
	total, err := s.CountInstruments(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM instruments`); err != nil {
		return 0, fmt.Errorf("sqlite clear instruments: %w", err)
	}
	return total, nil
}

// CountInstruments returns the total instrument row count.
func (s *Store) CountInstruments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count instruments: %w", err)
	}
	return n, nil
}

// Filter is the conjunctive predicate for catalog queries. Query, when
// set, adds a case-insensitive substring match on tradingsymbol, name
// or instrument_token.
type Filter struct {
	Query          string
	Segment        string
	Exchange       string
	InstrumentType string
}

func (f Filter) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.Segment != "" {
		clauses = append(clauses, "segment = ?")
		args = append(args, f.Segment)
	}
	if f.Exchange != "" {
		clauses = append(clauses, "exchange = ?")
		args = append(args, f.Exchange)
	}
	if f.InstrumentType != "" {
		clauses = append(clauses, "instrument_type = ?")
		args = append(args, f.InstrumentType)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		clauses = append(clauses,
			"(tradingsymbol LIKE ? COLLATE NOCASE OR name LIKE ? COLLATE NOCASE OR instrument_token LIKE ?)")
		args = append(args, like, like, like)
	}
	return strings.Join(clauses, " AND "), args
}

// CountMatching returns how many instruments satisfy the filter.
func (s *Store) CountMatching(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instruments WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite count matching: %w", err)
	}
	return n, nil
}

// SelectMatching returns up to limit filtered instruments starting at
// offset, ordered by case-insensitive tradingsymbol. The ordering is the
// contract the search engine's cursors and candidate window rely on.
func (s *Store) SelectMatching(ctx context.Context, f Filter, limit, offset int) ([]model.Instrument, error) {
	where, args := f.where()
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instrumentCols+` FROM instruments
		WHERE `+where+`
		ORDER BY tradingsymbol COLLATE NOCASE
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite select matching: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(r rowScanner) (model.Instrument, error) {
	var (
		in                   model.Instrument
		name, expiry         sql.NullString
		strike               sql.NullFloat64
		createdNS, updatedNS int64
	)
	err := r.Scan(
		&in.ID, &in.InstrumentToken, &in.ExchangeToken, &in.TradingSymbol, &name,
		&in.LastPrice, &expiry, &strike, &in.TickSize, &in.LotSize,
		&in.InstrumentType, &in.Segment, &in.Exchange,
		&createdNS, &updatedNS,
	)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("sqlite scan instrument: %w", err)
	}
	in.Name = name.String
	in.Expiry = expiry.String
	if strike.Valid {
		v := strike.Float64
		in.Strike = &v
	}
	in.CreatedAt = time.Unix(0, createdNS).UTC()
	in.UpdatedAt = time.Unix(0, updatedNS).UTC()
	return in, nil
}

func scanOptionalInstrument(row *sql.Row) (*model.Instrument, error) {
	in, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}
