// Package models defines the persistent records shared across packages.
package models

import "time"

// StepRecord is one append-only log entry for an executed step.
type StepRecord struct {
	// ID is the unique identifier for the record.
	ID string `json:"id"`

	// RunID groups records produced by one interpreter run. Nested runs
	// get their own run ID.
	RunID string `json:"run_id"`

	// ParentRunID is set for nested runs.
	ParentRunID string `json:"parent_run_id,omitempty"`

	// Depth is the nesting level; 0 for a top-level run.
	Depth int `json:"depth"`

	// Sequence is the table the step belongs to (usually its path).
	Sequence string `json:"sequence"`

	// Step is the 1-based step counter within the run.
	Step int `json:"step"`

	// Name is the step name.
	Name string `json:"name"`

	// Prompt is the formatted template.
	Prompt string `json:"prompt"`

	// Output is the action output bound into the context.
	Output string `json:"output"`

	// Timestamp is when the step completed.
	Timestamp time.Time `json:"timestamp"`
}

// RunSummary aggregates the records of one run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Sequence  string    `json:"sequence"`
	Depth     int       `json:"depth"`
	Steps     int       `json:"steps"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
