package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"instrument-catalogv1/internal/model"
	"instrument-catalogv1/internal/store/sqlite"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// SearchRequest carries the search inputs. Cursor is the opaque token
// from a previous page's NextCursor; empty means the first page.
type SearchRequest struct {
	Query          string
	Segment        string
	Exchange       string
	InstrumentType string
	Limit          int
	Cursor         string
}

// SearchResult is one page of results. NextCursor is nil on the last
// page. Total is exact on the no-query path; on the fuzzy path it is
// capped by the candidate window.
type SearchResult struct {
	Items      []model.Instrument
	NextCursor *string
	Total      int
}

// DecodeCursor turns a cursor string back into a row offset. Empty means
// zero, non-numeric input is a client fault, negative values clamp to
// zero.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil {
		return 0, Validationf("invalid cursor: %q", cursor)
	}
	if offset < 0 {
		return 0, nil
	}
	return offset, nil
}

// Search serves filtered, optionally fuzzy-ranked, paginated lookups.
//
// Without a query it is a plain filtered scan ordered by case-insensitive
// tradingsymbol. With a query, a substring pre-filter bounds the set,
// at most maxCandidates lexicographically-first rows are pulled, and those
// candidates are re-ranked by fuzzy score before slicing the page. Matches
// outside the candidate window never rank.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	start := time.Now()

	offset, err := DecodeCursor(req.Cursor)
	if err != nil {
		return SearchResult{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	filter := sqlite.Filter{
		Query:          strings.TrimSpace(req.Query),
		Segment:        strings.ToUpper(req.Segment),
		Exchange:       strings.ToUpper(req.Exchange),
		InstrumentType: strings.ToUpper(req.InstrumentType),
	}

	var res SearchResult
	if filter.Query == "" {
		res, err = s.searchExact(ctx, filter, limit, offset)
	} else {
		res, err = s.searchFuzzy(ctx, filter, limit, offset)
	}
	if err != nil {
		return SearchResult{}, err
	}

	if s.prom != nil {
		s.prom.SearchesTotal.Inc()
		s.prom.SearchDur.Observe(time.Since(start).Seconds())
	}
	return res, nil
}

func (s *Service) searchExact(ctx context.Context, f sqlite.Filter, limit, offset int) (SearchResult, error) {
	total, err := s.store.CountMatching(ctx, f)
	if err != nil {
		return SearchResult{}, storagef("search count", err)
	}
	items, err := s.store.SelectMatching(ctx, f, limit, offset)
	if err != nil {
		return SearchResult{}, storagef("search select", err)
	}
	return SearchResult{
		Items:      items,
		NextCursor: nextCursor(offset, limit, total),
		Total:      total,
	}, nil
}

func (s *Service) searchFuzzy(ctx context.Context, f sqlite.Filter, limit, offset int) (SearchResult, error) {
	total, err := s.store.CountMatching(ctx, f)
	if err != nil {
		return SearchResult{}, storagef("search count", err)
	}

	// Bounded candidate window: enough rows to fill this page twice over,
	// never more than maxCandidates, never fewer than one page.
	candidateLimit := offset + limit*2
	if candidateLimit > s.maxCandidates {
		candidateLimit = s.maxCandidates
	}
	if candidateLimit < limit {
		candidateLimit = limit
	}

	candidates, err := s.store.SelectMatching(ctx, f, candidateLimit, 0)
	if err != nil {
		return SearchResult{}, storagef("search candidates", err)
	}
	if len(candidates) == 0 {
		return SearchResult{Total: total}, nil
	}

	type scored struct {
		in    model.Instrument
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, in := range candidates {
		text := in.TradingSymbol
		if in.Name != "" {
			text += " " + in.Name
		}
		ranked = append(ranked, scored{in: in, score: s.scorer.Score(f.Query, text)})
	}
	// Stable sort keeps the lexicographic store order as the tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > offset+limit {
		ranked = ranked[:offset+limit]
	}
	if total > len(ranked) {
		total = len(ranked)
	}

	var items []model.Instrument
	if offset < len(ranked) {
		end := offset + limit
		if end > len(ranked) {
			end = len(ranked)
		}
		items = make([]model.Instrument, 0, end-offset)
		for _, sc := range ranked[offset:end] {
			items = append(items, sc.in)
		}
	}

	return SearchResult{
		Items:      items,
		NextCursor: nextCursor(offset, limit, total),
		Total:      total,
	}, nil
}

func nextCursor(offset, limit, total int) *string {
	if offset+limit >= total {
		return nil
	}
	c := strconv.Itoa(offset + limit)
	return &c
}

// GetInstrument returns the instrument with the given id, or ErrNotFound.
// Reads go through the redis cache when one is configured.
func (s *Service) GetInstrument(ctx context.Context, id string) (*model.Instrument, error) {
	if s.cache != nil {
		if in := s.cache.GetInstrument(ctx, s.cache.IDKey(id)); in != nil {
			s.observeCache(true)
			return in, nil
		}
		s.observeCache(false)
	}
	in, err := s.store.InstrumentByID(ctx, id)
	if err != nil {
		return nil, storagef("get instrument", err)
	}
	if in == nil {
		return nil, ErrNotFound
	}
	if s.cache != nil {
		s.cache.PutInstrument(ctx, s.cache.IDKey(id), in)
	}
	return in, nil
}

// GetInstrumentByToken returns the instrument with the given unique
// exchange token, or ErrNotFound.
func (s *Service) GetInstrumentByToken(ctx context.Context, token string) (*model.Instrument, error) {
	if s.cache != nil {
		if in := s.cache.GetInstrument(ctx, s.cache.TokenKey(token)); in != nil {
			s.observeCache(true)
			return in, nil
		}
		s.observeCache(false)
	}
	in, err := s.store.InstrumentByToken(ctx, token)
	if err != nil {
		return nil, storagef("get instrument by token", err)
	}
	if in == nil {
		return nil, ErrNotFound
	}
	if s.cache != nil {
		s.cache.PutInstrument(ctx, s.cache.TokenKey(token), in)
	}
	return in, nil
}

// GetInstrumentsByIDs returns instruments in the order the ids were
// given, silently dropping unknown ids.
func (s *Service) GetInstrumentsByIDs(ctx context.Context, ids []string) ([]model.Instrument, error) {
	items, err := s.store.InstrumentsByIDs(ctx, ids)
	if err != nil {
		return nil, storagef("get instruments by ids", err)
	}
	return items, nil
}

// ClearInstruments deletes every instrument and reports how many were
// removed.
func (s *Service) ClearInstruments(ctx context.Context) (int, error) {
	n, err := s.store.ClearInstruments(ctx)
	if err != nil {
		return 0, storagef("clear instruments", err)
	}
	s.flushCache(ctx)
	return n, nil
}

// CountInstruments returns the total instrument count.
func (s *Service) CountInstruments(ctx context.Context) (int, error) {
	n, err := s.store.CountInstruments(ctx)
	if err != nil {
		return 0, storagef("count instruments", err)
	}
	return n, nil
}

func (s *Service) flushCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Flush(ctx)
	}
}

func (s *Service) observeCache(hit bool) {
	if s.prom == nil {
		return
	}
	if hit {
		s.prom.CacheHits.Inc()
	} else {
		s.prom.CacheMisses.Inc()
	}
}
