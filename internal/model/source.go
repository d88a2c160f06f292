package model

import "time"

// Source is a registered upstream instrument feed (e.g. zerodha, upstox, dhan).
// Config is an opaque JSON blob interpreted by whoever schedules the feed.
type Source struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Config       string     `json:"config,omitempty"`
	ScheduleCron string     `json:"schedule_cron,omitempty"`
	Enabled      bool       `json:"enabled"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastStatus   string     `json:"last_status,omitempty"`
}
