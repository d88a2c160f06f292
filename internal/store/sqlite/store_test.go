package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"instrument-catalogv1/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testInstrument(token, symbol string) model.Instrument {
	now := time.Now().UTC()
	return model.Instrument{
		ID:              "ins_" + token,
		InstrumentToken: token,
		ExchangeToken:   "x" + token,
		TradingSymbol:   symbol,
		Name:            symbol + " Ltd",
		LastPrice:       100,
		TickSize:        0.05,
		LotSize:         1,
		InstrumentType:  "EQ",
		Segment:         "NSE",
		Exchange:        "NSE",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func insert(t *testing.T, st *Store, batch ...model.Instrument) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx *sql.Tx) error {
		return st.UpsertInstruments(context.Background(), tx, batch)
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestUpsertConflictPreservesIdentity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	orig := testInstrument("100", "INFY")
	orig.CreatedAt = time.Unix(0, 1_700_000_000_000_000_000).UTC()
	orig.UpdatedAt = orig.CreatedAt
	insert(t, st, orig)

	update := testInstrument("100", "INFY-RENAMED")
	update.ID = "ins_other" // conflict resolution must ignore this
	update.LastPrice = 1555.25
	update.UpdatedAt = orig.CreatedAt.Add(time.Hour)
	insert(t, st, update)

	n, _ := st.CountInstruments(ctx)
	if n != 1 {
		t.Fatalf("expected 1 row after conflict, got %d", n)
	}

	got, err := st.InstrumentByToken(ctx, "100")
	if err != nil {
		t.Fatalf("by token: %v", err)
	}
	if got.ID != orig.ID {
		t.Errorf("instrument_id must survive the upsert: %s vs %s", got.ID, orig.ID)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("created_at must survive the upsert: %v vs %v", got.CreatedAt, orig.CreatedAt)
	}
	if got.TradingSymbol != "INFY-RENAMED" || got.LastPrice != 1555.25 {
		t.Errorf("mutable fields not replaced: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("updated_at must advance")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if err := st.UpsertInstruments(ctx, tx, []model.Instrument{testInstrument("100", "INFY")}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel back, got %v", err)
	}

	n, _ := st.CountInstruments(ctx)
	if n != 0 {
		t.Errorf("rollback left %d rows", n)
	}
}

func TestNullableFieldsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bare := testInstrument("100", "INFY")
	bare.Name = ""
	strike := 21000.0
	option := testInstrument("101", "NIFTY24SEP21000CE")
	option.Expiry = "2024-09-26"
	option.Strike = &strike
	insert(t, st, bare, option)

	got, _ := st.InstrumentByToken(ctx, "100")
	if got.Name != "" || got.Expiry != "" || got.Strike != nil {
		t.Errorf("absent optionals must stay absent: %+v", got)
	}

	got, _ = st.InstrumentByToken(ctx, "101")
	if got.Expiry != "2024-09-26" {
		t.Errorf("expiry lost: %q", got.Expiry)
	}
	if got.Strike == nil || *got.Strike != 21000 {
		t.Errorf("strike lost: %v", got.Strike)
	}
}

func TestInstrumentsByIDsPreservesOrder(t *testing.T) {
	st := newTestStore(t)
	insert(t, st,
		testInstrument("100", "INFY"),
		testInstrument("101", "TCS"),
		testInstrument("102", "WIPRO"),
	)

	got, err := st.InstrumentsByIDs(context.Background(),
		[]string{"ins_102", "ins_missing", "ins_100"})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ins_102" || got[1].ID != "ins_100" {
		t.Errorf("wrong rows or order: %+v", got)
	}
}

func TestLookupMissReturnsNil(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if got, err := st.InstrumentByID(ctx, "ins_missing"); err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
	if got, err := st.InstrumentByToken(ctx, "999"); err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestSelectMatchingFilterAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fut := testInstrument("200", "NIFTY24SEPFUT")
	fut.Segment = "NFO-FUT"
	fut.InstrumentType = "FUT"
	insert(t, st,
		testInstrument("100", "infy"),
		testInstrument("101", "TCS"),
		testInstrument("102", "INFIBEAM"),
		fut,
	)

	got, err := st.SelectMatching(ctx, Filter{Query: "INF"}, 10, 0)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	// NOCASE ordering: INFIBEAM before infy.
	if got[0].TradingSymbol != "INFIBEAM" || got[1].TradingSymbol != "infy" {
		t.Errorf("wrong order: %s, %s", got[0].TradingSymbol, got[1].TradingSymbol)
	}

	n, err := st.CountMatching(ctx, Filter{Segment: "NFO-FUT", InstrumentType: "FUT"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("segment filter expected 1, got %d", n)
	}

	page, err := st.SelectMatching(ctx, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("select page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("offset page expected 2 rows, got %d", len(page))
	}
}

func TestImportRecordRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := &model.ImportRecord{
		ID:        "imp_1",
		Source:    "zerodha",
		StartedAt: time.Now().UTC(),
		Status:    model.ImportStatusProcessing,
		Errors:    []string{},
	}
	if err := st.InsertImport(ctx, rec); err != nil {
		t.Fatalf("insert import: %v", err)
	}

	got, err := st.ImportByID(ctx, "imp_1")
	if err != nil {
		t.Fatalf("import by id: %v", err)
	}
	if got == nil || got.Status != model.ImportStatusProcessing {
		t.Fatalf("record not stored: %+v", got)
	}
	if got.FinishedAt != nil {
		t.Error("finished_at must be NULL while processing")
	}
	if got.Errors == nil {
		t.Error("errors must scan as an empty slice, not nil")
	}

	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.RowsIn = 5
	rec.RowsOK = 4
	rec.RowsErr = 1
	rec.Status = model.ImportStatusCompletedWithErrors
	rec.Errors = []string{"Row 2: tick_size is required"}
	if err := st.UpdateImportTerminal(ctx, rec); err != nil {
		t.Fatalf("update terminal: %v", err)
	}

	got, _ = st.ImportByID(ctx, "imp_1")
	if got.Status != model.ImportStatusCompletedWithErrors || got.RowsOK != 4 {
		t.Errorf("terminal update not applied: %+v", got)
	}
	if len(got.Errors) != 1 {
		t.Errorf("errors not round-tripped: %v", got.Errors)
	}

	if missing, err := st.ImportByID(ctx, "imp_missing"); err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown import; got %v, %v", missing, err)
	}
}

func TestSourceRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	src := &model.Source{
		ID:      "src_1",
		Name:    "zerodha",
		Type:    "csv",
		Enabled: true,
	}
	if err := st.InsertSource(ctx, src); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	got, err := st.SourceByName(ctx, "zerodha")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if got == nil || got.ID != "src_1" || !got.Enabled {
		t.Fatalf("source not stored: %+v", got)
	}
	if got.LastRunAt != nil {
		t.Error("last_run_at must start NULL")
	}

	ranAt := time.Now().UTC()
	if err := st.TouchSourceRun(ctx, "src_1", ranAt, model.ImportStatusCompleted); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = st.SourceByName(ctx, "zerodha")
	if got.LastRunAt == nil || got.LastStatus != model.ImportStatusCompleted {
		t.Errorf("run stamp not applied: %+v", got)
	}
}
