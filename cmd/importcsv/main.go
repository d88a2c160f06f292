// cmd/importcsv runs one CSV import against the catalog and prints the
// resulting ledger record.
//
// Usage:
//
//	go run ./cmd/importcsv --file=instruments.csv --source=zerodha --replace
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"instrument-catalogv1/internal/catalog"
	"instrument-catalogv1/internal/logger"
	sqlitestore "instrument-catalogv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	file := flag.String("file", "", "Path to the instrument CSV dump")
	source := flag.String("source", "custom", "Upstream feed name (zerodha, upstox, dhan, custom)")
	replace := flag.Bool("replace", false, "Delete existing instruments before importing")
	dbPath := flag.String("db", "data/catalog.db", "Path to the catalog database")
	flag.Parse()

	if *file == "" {
		log.Fatal("[importcsv] --file is required")
	}

	slogger := logger.Init("importcsv", slog.LevelInfo)

	store, err := sqlitestore.Open(sqlitestore.Config{Path: *dbPath})
	if err != nil {
		log.Fatalf("[importcsv] sqlite open failed: %v", err)
	}
	defer store.Close()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("[importcsv] open %s: %v", *file, err)
	}
	defer f.Close()

	svc := catalog.New(store, catalog.Options{Logger: slogger})

	ctx := logger.WithTraceID(context.Background(), logger.GenerateTraceID(*source, time.Now()))
	rec, err := svc.RunImport(ctx, *source, f, *replace)
	if err != nil {
		var ve *catalog.ValidationError
		if errors.As(err, &ve) {
			log.Fatalf("[importcsv] rejected: %v", ve)
		}
		log.Fatalf("[importcsv] import failed: %v", err)
	}

	fmt.Printf("import %s: %s\n", rec.ID, rec.Status)
	fmt.Printf("  rows in:  %d\n", rec.RowsIn)
	fmt.Printf("  rows ok:  %d\n", rec.RowsOK)
	fmt.Printf("  rows err: %d\n", rec.RowsErr)
	for _, e := range rec.Errors {
		fmt.Printf("  %s\n", e)
	}
}
