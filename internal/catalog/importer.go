package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"instrument-catalogv1/internal/model"
)

// requiredColumns must all appear in the CSV header, in any order.
var requiredColumns = []string{
	"instrument_token",
	"exchange_token",
	"tradingsymbol",
	"name",
	"last_price",
	"expiry",
	"strike",
	"tick_size",
	"lot_size",
	"instrument_type",
	"segment",
	"exchange",
}

// ImportSummary reports the outcome of one CSV import.
// RowsIn == RowsOK + RowsErr always holds on return.
type ImportSummary struct {
	RowsIn  int
	RowsOK  int
	RowsErr int
	Errors  []string
}

// ImportCSV streams an untrusted CSV source into the catalog. Row-level
// defects are recorded and skipped; the import only fails outright on a
// bad header (ValidationError, nothing written) or a storage failure.
//
// The whole import runs in one transaction: with replaceExisting the
// delete-all and the re-inserts commit or roll back together, so a
// mid-import failure never leaves the table half-cleared.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, replaceExisting bool) (ImportSummary, error) {
	start := time.Now()
	summary := ImportSummary{Errors: []string{}}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are handled per field
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return summary, Validationf("CSV file is missing headers")
	}
	colIdx, missing := indexHeader(header)
	if len(missing) > 0 {
		return summary, Validationf("Missing required columns: %s", strings.Join(missing, ", "))
	}

	resolver, err := s.loadIdentityResolver(ctx)
	if err != nil {
		return summary, err
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if replaceExisting {
			if err := s.store.DeleteAllInstruments(ctx, tx); err != nil {
				return err
			}
		}

		batch := make([]model.Instrument, 0, s.batchSize)
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return Validationf("malformed CSV at row %d: %v", summary.RowsIn+1, err)
			}

			summary.RowsIn++
			in, err := buildInstrument(record, colIdx, resolver, time.Now().UTC())
			if err != nil {
				summary.RowsErr++
				summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", summary.RowsIn, err))
				continue
			}
			summary.RowsOK++

			batch = append(batch, in)
			if len(batch) >= s.batchSize {
				if err := s.flushBatch(ctx, tx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return s.flushBatch(ctx, tx, batch)
	})
	if err != nil {
		if IsValidation(err) {
			return summary, err
		}
		return summary, storagef("import csv", err)
	}

	s.flushCache(ctx)
	if s.prom != nil {
		s.prom.ImportDur.Observe(time.Since(start).Seconds())
		s.prom.ImportRowsTotal.WithLabelValues("ok").Add(float64(summary.RowsOK))
		s.prom.ImportRowsTotal.WithLabelValues("err").Add(float64(summary.RowsErr))
	}
	s.log.Info("import finished",
		"rows_in", summary.RowsIn,
		"rows_ok", summary.RowsOK,
		"rows_err", summary.RowsErr,
		"replace", replaceExisting,
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
	return summary, nil
}

func (s *Service) flushBatch(ctx context.Context, tx *sql.Tx, batch []model.Instrument) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	if err := s.store.UpsertInstruments(ctx, tx, batch); err != nil {
		return err
	}
	if s.prom != nil {
		s.prom.UpsertBatchDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// indexHeader maps column name -> position and reports which required
// columns are absent, sorted for a stable error message.
func indexHeader(header []string) (map[string]int, []string) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return idx, missing
}

// buildInstrument validates one CSV record and produces the row to
// upsert. Any returned error is row-scoped: the caller records it and
// moves on.
func buildInstrument(record []string, colIdx map[string]int, resolver *identityResolver, now time.Time) (model.Instrument, error) {
	field := func(col string) string {
		i, ok := colIdx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	token := field("instrument_token")
	if token == "" {
		return model.Instrument{}, fmt.Errorf("instrument_token is required")
	}
	exchangeToken := field("exchange_token")
	if exchangeToken == "" {
		return model.Instrument{}, fmt.Errorf("exchange_token is required")
	}
	symbol := field("tradingsymbol")
	if symbol == "" {
		return model.Instrument{}, fmt.Errorf("tradingsymbol is required")
	}
	instrumentType := field("instrument_type")
	if instrumentType == "" {
		return model.Instrument{}, fmt.Errorf("instrument_type is required")
	}
	segment := field("segment")
	if segment == "" {
		return model.Instrument{}, fmt.Errorf("segment is required")
	}
	exchange := field("exchange")
	if exchange == "" {
		return model.Instrument{}, fmt.Errorf("exchange is required")
	}

	lastPrice, err := parseFloatField(field("last_price"), "last_price", false)
	if err != nil {
		return model.Instrument{}, err
	}
	strike, strikeSet, err := parseOptionalFloat(field("strike"), "strike")
	if err != nil {
		return model.Instrument{}, err
	}
	tickSize, err := parseFloatField(field("tick_size"), "tick_size", true)
	if err != nil {
		return model.Instrument{}, err
	}
	lotSize, err := parseIntField(field("lot_size"), "lot_size", true)
	if err != nil {
		return model.Instrument{}, err
	}

	instrumentType = strings.ToUpper(instrumentType)
	segment = strings.ToUpper(segment)
	exchange = strings.ToUpper(exchange)

	in := model.Instrument{
		ID:              resolver.Resolve(exchange, token),
		InstrumentToken: token,
		ExchangeToken:   exchangeToken,
		TradingSymbol:   symbol,
		Name:            field("name"),
		LastPrice:       lastPrice,
		Expiry:          field("expiry"),
		TickSize:        tickSize,
		LotSize:         lotSize,
		InstrumentType:  instrumentType,
		Segment:         segment,
		Exchange:        exchange,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if strikeSet {
		in.Strike = &strike
	}
	return in, nil
}

func parseFloatField(v, field string, required bool) (float64, error) {
	if v == "" {
		if required {
			return 0, fmt.Errorf("%s is required", field)
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid float for %s: %s", field, v)
	}
	return f, nil
}

func parseOptionalFloat(v, field string) (float64, bool, error) {
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("Invalid float for %s: %s", field, v)
	}
	return f, true, nil
}

func parseIntField(v, field string, required bool) (int, error) {
	if v == "" {
		if required {
			return 0, fmt.Errorf("%s is required", field)
		}
		return 0, nil
	}
	// Feeds routinely emit integers as "75.0"; accept the float form.
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid integer for %s: %s", field, v)
	}
	return int(f), nil
}
