package catalog

import (
	"context"
	"strings"
	"testing"
)

func seedEquities(t *testing.T, s *Service) {
	t.Helper()
	mustImport(t, s,
		eqRow("100", "INFY", "Infosys", "1500"),
		eqRow("101", "TCS", "Tata Consultancy", "3500"),
		eqRow("102", "WIPRO", "Wipro", "400"),
		eqRow("103", "SBIN", "State Bank of India", "600"),
		eqRow("104", "HDFCBANK", "HDFC Bank", "1600"),
		eqRow("105", "ICICIBANK", "ICICI Bank", "1100"),
		eqRow("106", "RELIANCE", "Reliance Industries", "2900"),
	)
}

func TestDecodeCursor(t *testing.T) {
	cases := []struct {
		cursor  string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"40", 40, false},
		{"-5", 0, false}, // negative clamps to zero
		{"abc", 0, true},
		{"12.5", 0, true},
	}
	for _, tc := range cases {
		got, err := DecodeCursor(tc.cursor)
		if tc.wantErr {
			if !IsValidation(err) {
				t.Errorf("cursor %q: expected ValidationError, got %v", tc.cursor, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("cursor %q: unexpected error %v", tc.cursor, err)
		}
		if got != tc.want {
			t.Errorf("cursor %q: expected %d, got %d", tc.cursor, tc.want, got)
		}
	}
}

func TestSearchInvalidCursorIsClientFault(t *testing.T) {
	s := newTestService(t)
	_, err := s.Search(context.Background(), SearchRequest{Cursor: "bogus"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPaginationCompleteness(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)

	seen := map[string]bool{}
	var symbols []string
	cursor := ""
	pages := 0
	for {
		res, err := s.Search(ctx, SearchRequest{Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		if res.Total != 7 {
			t.Errorf("page %d: expected total 7, got %d", pages, res.Total)
		}
		for _, in := range res.Items {
			if seen[in.ID] {
				t.Errorf("duplicate instrument %s across pages", in.TradingSymbol)
			}
			seen[in.ID] = true
			symbols = append(symbols, in.TradingSymbol)
		}
		pages++
		if res.NextCursor == nil {
			break
		}
		cursor = *res.NextCursor
	}

	if len(symbols) != 7 {
		t.Fatalf("expected all 7 instruments across pages, got %d", len(symbols))
	}
	for i := 1; i < len(symbols); i++ {
		if strings.ToUpper(symbols[i-1]) > strings.ToUpper(symbols[i]) {
			t.Errorf("symbols out of order: %q before %q", symbols[i-1], symbols[i])
		}
	}
	if pages != 3 {
		t.Errorf("expected 3 pages of size 3, got %d", pages)
	}
}

func TestSearchExactFilters(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)
	// One option to contrast with the equities.
	mustImport(t, s, "500,x500,NIFTY24DEC21000CE,,0,2024-12-26,21000,0.05,75,CE,NFO-OPT,NFO")

	res, err := s.Search(ctx, SearchRequest{Segment: "NFO-OPT", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 1 || len(res.Items) != 1 {
		t.Fatalf("expected exactly the option, got total=%d items=%d", res.Total, len(res.Items))
	}
	if res.Items[0].InstrumentToken != "500" {
		t.Errorf("wrong instrument: %s", res.Items[0].TradingSymbol)
	}

	// Filters are normalized to upper-case.
	res, err = s.Search(ctx, SearchRequest{Exchange: "nse", InstrumentType: "eq", Limit: 100})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 7 {
		t.Errorf("expected 7 NSE equities, got %d", res.Total)
	}
}

func TestFuzzyExactSymbolRanksFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)
	// Instruments with partial textual overlap with INFY.
	mustImport(t, s,
		eqRow("110", "INFIBEAM", "Infibeam Avenues", "20"),
		eqRow("111", "INFY-BE", "Infosys Series BE", "1500"),
	)

	res, err := s.Search(ctx, SearchRequest{Query: "INFY", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) == 0 {
		t.Fatal("expected results")
	}
	if res.Items[0].TradingSymbol != "INFY" {
		t.Errorf("exact symbol must rank first, got %s", res.Items[0].TradingSymbol)
	}
}

func TestFuzzySearchScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustImport(t, s,
		eqRow("100", "INFY", "Infosys", "1500"),
		eqRow("101", "TCS", "Tata Consultancy", "3500"),
	)

	res, err := s.Search(ctx, SearchRequest{Query: "INF", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Total)
	}
	if len(res.Items) != 1 || res.Items[0].TradingSymbol != "INFY" {
		t.Fatalf("expected INFY as the only ranked result, got %+v", res.Items)
	}
	if res.NextCursor != nil {
		t.Errorf("expected no next cursor, got %q", *res.NextCursor)
	}
}

func TestFuzzySearchMatchesToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)

	res, err := s.Search(ctx, SearchRequest{Query: "106", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].TradingSymbol != "RELIANCE" {
		t.Fatalf("token substring should match, got %+v", res.Items)
	}
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	s := newTestService(t)
	res, err := s.Search(context.Background(), SearchRequest{Query: "ZZZZZ", Limit: 10})
	if err != nil {
		t.Fatalf("empty search must succeed: %v", err)
	}
	if res.Total != 0 || len(res.Items) != 0 || res.NextCursor != nil {
		t.Errorf("expected an empty page, got %+v", res)
	}
}

func TestFuzzyPaginationWithinCandidateWindow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustImport(t, s,
		eqRow("200", "BANKBARODA", "Bank of Baroda", "250"),
		eqRow("201", "BANKINDIA", "Bank of India", "120"),
		eqRow("202", "HDFCBANK", "HDFC Bank", "1600"),
		eqRow("203", "ICICIBANK", "ICICI Bank", "1100"),
		eqRow("204", "AXISBANK", "Axis Bank", "1150"),
	)

	first, err := s.Search(ctx, SearchRequest{Query: "BANK", Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected a full first page, got %d", len(first.Items))
	}
	// The fuzzy path caps total at the end of the requested page, so it
	// never advertises a next cursor; deeper pages need an explicit one.
	if first.NextCursor != nil {
		t.Errorf("fuzzy path should not advertise a next cursor, got %q", *first.NextCursor)
	}

	second, err := s.Search(ctx, SearchRequest{Query: "BANK", Limit: 2, Cursor: "2"})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected two more ranked results, got %d", len(second.Items))
	}
	for _, a := range first.Items {
		for _, b := range second.Items {
			if a.ID == b.ID {
				t.Errorf("instrument %s appeared on both pages", a.TradingSymbol)
			}
		}
	}
}

func TestPointLookups(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)

	byToken, err := s.GetInstrumentByToken(ctx, "101")
	if err != nil {
		t.Fatalf("by token: %v", err)
	}
	if byToken.TradingSymbol != "TCS" {
		t.Errorf("wrong instrument: %s", byToken.TradingSymbol)
	}

	byID, err := s.GetInstrument(ctx, byToken.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if byID.InstrumentToken != "101" {
		t.Errorf("wrong instrument: %s", byID.InstrumentToken)
	}

	if _, err := s.GetInstrument(ctx, "ins_missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetInstrumentByToken(ctx, "999"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchLookupPreservesOrderAndDropsUnknown(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)

	tcs, _ := s.GetInstrumentByToken(ctx, "101")
	infy, _ := s.GetInstrumentByToken(ctx, "100")
	sbin, _ := s.GetInstrumentByToken(ctx, "103")

	got, err := s.GetInstrumentsByIDs(ctx, []string{sbin.ID, "ins_unknown", infy.ID, tcs.ID})
	if err != nil {
		t.Fatalf("batch lookup: %v", err)
	}
	want := []string{"SBIN", "INFY", "TCS"}
	if len(got) != len(want) {
		t.Fatalf("expected %d instruments, got %d", len(want), len(got))
	}
	for i, symbol := range want {
		if got[i].TradingSymbol != symbol {
			t.Errorf("position %d: expected %s, got %s", i, symbol, got[i].TradingSymbol)
		}
	}
}

func TestClearAndCount(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	seedEquities(t, s)

	n, err := s.ClearInstruments(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 deleted, got %d", n)
	}
	if count, _ := s.CountInstruments(ctx); count != 0 {
		t.Errorf("expected empty table, got %d", count)
	}
}
