package catalog

import (
	"context"
	"encoding/hex"
	"io"
	"time"

	"github.com/google/uuid"

	"instrument-catalogv1/internal/model"
	"instrument-catalogv1/internal/notification"
)

func newImportID() string {
	u := uuid.New()
	return "imp_" + hex.EncodeToString(u[:])
}

// StartImport creates and persists a processing record for a new import
// job, returning it immediately so a caller can report progress before
// the job completes.
func (s *Service) StartImport(ctx context.Context, source string) (*model.ImportRecord, error) {
	if source == "" {
		return nil, Validationf("import source is required")
	}
	rec := &model.ImportRecord{
		ID:        newImportID(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Status:    model.ImportStatusProcessing,
		Errors:    []string{},
	}
	if err := s.store.InsertImport(ctx, rec); err != nil {
		return nil, storagef("start import", err)
	}
	return rec, nil
}

// FinishImport records the terminal state of an import from its row
// counts: completed when nothing failed, completed_with_errors otherwise.
// A record that already reached a terminal status stays there.
func (s *Service) FinishImport(ctx context.Context, id string, rowsIn, rowsOK, rowsErr int, errs []string) (*model.ImportRecord, error) {
	rec, err := s.GetImport(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, Validationf("import %s already %s", id, rec.Status)
	}

	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.RowsIn = rowsIn
	rec.RowsOK = rowsOK
	rec.RowsErr = rowsErr
	rec.Status = model.ImportStatusCompleted
	if rowsErr > 0 {
		rec.Status = model.ImportStatusCompletedWithErrors
	}
	rec.Errors = append([]string{}, errs...)

	if err := s.store.UpdateImportTerminal(ctx, rec); err != nil {
		return nil, storagef("finish import", err)
	}
	return s.GetImport(ctx, id)
}

// FailImport marks an import failed before the pipeline could report row
// counts. Counts keep whatever value they had.
func (s *Service) FailImport(ctx context.Context, id string, errs []string) (*model.ImportRecord, error) {
	rec, err := s.GetImport(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, Validationf("import %s already %s", id, rec.Status)
	}
	if err := s.store.MarkImportFailed(ctx, id, time.Now().UTC(), errs); err != nil {
		return nil, storagef("fail import", err)
	}
	return s.GetImport(ctx, id)
}

// GetImport returns the import record for id, or ErrNotFound.
func (s *Service) GetImport(ctx context.Context, id string) (*model.ImportRecord, error) {
	rec, err := s.store.ImportByID(ctx, id)
	if err != nil {
		return nil, storagef("get import", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListImports returns every import record, most recent first.
func (s *Service) ListImports(ctx context.Context) ([]model.ImportRecord, error) {
	recs, err := s.store.ListImports(ctx)
	if err != nil {
		return nil, storagef("list imports", err)
	}
	return recs, nil
}

// RunImport is the full import lifecycle: start a ledger record, stream
// the CSV through the pipeline, then finish (or fail) the record. The
// returned record is terminal. When the source matches a registered feed
// its last-run fields are stamped as well.
func (s *Service) RunImport(ctx context.Context, source string, r io.Reader, replaceExisting bool) (*model.ImportRecord, error) {
	rec, err := s.StartImport(ctx, source)
	if err != nil {
		return nil, err
	}
	s.log.Info("import started", "import_id", rec.ID, "source", source, "replace", replaceExisting)

	summary, err := s.ImportCSV(ctx, r, replaceExisting)
	if err != nil {
		failed, failErr := s.FailImport(ctx, rec.ID, []string{err.Error()})
		if failErr != nil {
			s.log.Error("could not mark import failed", "import_id", rec.ID, "err", failErr)
			failed = rec
		}
		s.touchSource(ctx, source, model.ImportStatusFailed)
		s.observeImport(model.ImportStatusFailed)
		s.notifyImport(ctx, failed)
		return failed, err
	}

	updated, err := s.FinishImport(ctx, rec.ID, summary.RowsIn, summary.RowsOK, summary.RowsErr, summary.Errors)
	if err != nil {
		return nil, err
	}
	s.touchSource(ctx, source, updated.Status)
	s.observeImport(updated.Status)
	s.notifyImport(ctx, updated)
	return updated, nil
}

// notifyImport pushes a feed alert for a terminal record. Delivery
// failures are logged, never surfaced to the import caller.
func (s *Service) notifyImport(ctx context.Context, rec *model.ImportRecord) {
	if s.notifier == nil || rec == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.ImportAlert(rec)); err != nil {
		s.log.Warn("import alert delivery failed", "import_id", rec.ID, "err", err)
	}
}

// touchSource stamps last_run_at/last_status on a registered feed, if the
// import source names one. Best effort; a miss is not an error.
func (s *Service) touchSource(ctx context.Context, name, status string) {
	src, err := s.store.SourceByName(ctx, name)
	if err != nil || src == nil {
		return
	}
	if err := s.store.TouchSourceRun(ctx, src.ID, time.Now().UTC(), status); err != nil {
		s.log.Warn("could not stamp source run", "source", name, "err", err)
	}
}

func (s *Service) observeImport(status string) {
	if s.prom != nil {
		s.prom.ImportsTotal.WithLabelValues(status).Inc()
	}
}
