package domain

import "time"

// BatchSummary is the aggregate outcome of one batch validation run.
type BatchSummary struct {
	// Processed counts every event selected for the batch, skipped ones included.
	Processed int `json:"processed"`
	// Validated counts events whose validation pass was persisted.
	Validated   int `json:"validated"`
	Publishable int `json:"publishable"`
	Errors      int `json:"errors"`
}

// Batch run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// BatchRun records one batch execution for status reporting.
type BatchRun struct {
	Trigger    string        `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Summary    BatchSummary  `json:"summary"`
	// Error is set when the batch could not list its events.
	Error string `json:"error,omitempty"`
}
