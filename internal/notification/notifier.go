// Package notification delivers catalog feed events (import completed,
// import failed) to external channels so feed operators hear about a bad
// upstream dump without polling the ledger.
package notification

import (
	"context"
	"fmt"
	"log"

	"instrument-catalogv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Source  string     `json:"source,omitempty"`
}

// ImportAlert builds the alert for a terminal import record: INFO for a
// clean import, WARNING when rows were skipped, CRITICAL on failure.
func ImportAlert(rec *model.ImportRecord) Alert {
	level := AlertInfo
	switch rec.Status {
	case model.ImportStatusCompletedWithErrors:
		level = AlertWarning
	case model.ImportStatusFailed:
		level = AlertCritical
	}

	msg := fmt.Sprintf("import %s: %d rows in, %d ok, %d skipped",
		rec.ID, rec.RowsIn, rec.RowsOK, rec.RowsErr)
	if rec.Status == model.ImportStatusFailed && len(rec.Errors) > 0 {
		msg = fmt.Sprintf("import %s failed: %s", rec.ID, rec.Errors[0])
	}

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("Instrument import %s (%s)", rec.Status, rec.Source),
		Message: msg,
		Source:  rec.Source,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
