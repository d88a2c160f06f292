package model

import "time"

// Import job status values. Transitions are one-way:
// processing -> completed | completed_with_errors | failed.
const (
	ImportStatusPending             = "pending"
	ImportStatusProcessing          = "processing"
	ImportStatusCompleted           = "completed"
	ImportStatusCompletedWithErrors = "completed_with_errors"
	ImportStatusFailed              = "failed"
)

// ImportRecord tracks one execution of the CSV import pipeline.
// Append-only except for the single terminal update.
type ImportRecord struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RowsIn     int        `json:"rows_in"`
	RowsOK     int        `json:"rows_ok"`
	RowsErr    int        `json:"rows_err"`
	Status     string     `json:"status"`
	Errors     []string   `json:"errors"`
	LogURL     string     `json:"log_url,omitempty"`
}

// Terminal reports whether the record has reached a final status.
func (r *ImportRecord) Terminal() bool {
	switch r.Status {
	case ImportStatusCompleted, ImportStatusCompletedWithErrors, ImportStatusFailed:
		return true
	}
	return false
}
