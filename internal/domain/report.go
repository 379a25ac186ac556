package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the outcome of one record in a batch run.
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusFailed  RecordStatus = "failed"
	RecordStatusSkipped RecordStatus = "skipped"
)

// RecordResult captures what happened to one variant or product.
type RecordResult struct {
	ID      string           `json:"id"`
	Row     int              `json:"row,omitempty"`
	Status  RecordStatus     `json:"status"`
	Error   string           `json:"error,omitempty"`
	Changes []MetafieldValue `json:"changes,omitempty"`
	Note    string           `json:"note,omitempty"`
}

// ReportTotals aggregates record outcomes. Dropped counts input lines that
// never became records because they failed to parse.
type ReportTotals struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Dropped int `json:"dropped"`
}

// Report is the run-level audit artifact. Each run builds a fresh report.
type Report struct {
	RunID      uuid.UUID `json:"runId"`
	Operation  string    `json:"operation"`
	Source     string    `json:"source,omitempty"`
	DryRun     bool      `json:"dryRun"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	ReportTotals
	Results []RecordResult `json:"results"`
}

// NewReport starts a report for operation.
func NewReport(operation, source string, dryRun bool, now time.Time) Report {
	return Report{
		RunID:     uuid.New(),
		Operation: operation,
		Source:    source,
		DryRun:    dryRun,
		StartedAt: now.UTC(),
		Results:   []RecordResult{},
	}
}

// Add appends a result and updates the totals.
func (r *Report) Add(result RecordResult) {
	switch result.Status {
	case RecordStatusSuccess:
		r.Success++
	case RecordStatusFailed:
		r.Failed++
	case RecordStatusSkipped:
		r.Skipped++
	}
	r.Results = append(r.Results, result)
}

// Finish stamps the completion time.
func (r *Report) Finish(now time.Time) {
	r.FinishedAt = now.UTC()
}

// Processed is the number of records with an outcome.
func (r Report) Processed() int {
	return r.Success + r.Failed + r.Skipped
}
