package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"instrument-catalogv1/internal/store/sqlite"
)

const csvHeader = "instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange"

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, Options{})
}

// csvOf joins the standard header with the given data rows.
func csvOf(rows ...string) *strings.Reader {
	return strings.NewReader(csvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

// eqRow renders a plain equity row for the standard header.
func eqRow(token, symbol, name, lastPrice string) string {
	return fmt.Sprintf("%s,%s,%s,%s,%s,,,0.05,1,EQ,NSE,NSE", token, "x"+token, symbol, name, lastPrice)
}

func mustImport(t *testing.T, s *Service, rows ...string) ImportSummary {
	t.Helper()
	summary, err := s.ImportCSV(context.Background(), csvOf(rows...), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.RowsErr != 0 {
		t.Fatalf("unexpected row errors: %v", summary.Errors)
	}
	return summary
}
