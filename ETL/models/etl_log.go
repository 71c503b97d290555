package models

import (
	"context"
	"time"
)

// Run statuses stored in etl_run_log
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// RunSummary is what a run reports, whether it published or failed
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`

	TotalRecords     int                  `json:"total_records"`
	Accepted         int                  `json:"accepted"`
	Rejected         int                  `json:"rejected"`
	RejectedByReason map[RejectReason]int `json:"rejected_by_reason"`
	Superseded       int                  `json:"superseded"`
	Unchanged        int                  `json:"unchanged"`

	NewMembers  map[Dimension]int `json:"new_members"`
	ShiftFacts  int               `json:"shift_facts"`
	OrderFacts  int               `json:"order_facts"`
	Quarantined int               `json:"quarantined"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewRunSummary returns a summary with its maps ready for counting
func NewRunSummary(runID string, start time.Time) *RunSummary {
	return &RunSummary{
		RunID:            runID,
		StartTime:        start,
		Status:           RunStatusInProgress,
		RejectedByReason: make(map[RejectReason]int),
		NewMembers:       make(map[Dimension]int),
	}
}

// ETLRunLog is one row of etl_run_log
type ETLRunLog struct {
	ID                   int64     `json:"id"`
	RunID                string    `json:"run_id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               string    `json:"status"`
	TotalRecords         int       `json:"total_records"`
	Accepted             int       `json:"accepted"`
	Rejected             int       `json:"rejected"`
	RejectedByReason     string    `json:"rejected_by_reason"` // JSON object
	Superseded           int       `json:"superseded"`
	Unchanged            int       `json:"unchanged"`
	NewTimeMembers       int       `json:"new_time_members"`
	NewProviderMembers   int       `json:"new_provider_members"`
	NewZoneMembers       int       `json:"new_zone_members"`
	NewWeatherMembers    int       `json:"new_weather_members"`
	ShiftFacts           int       `json:"shift_facts"`
	OrderFacts           int       `json:"order_facts"`
	Quarantined          int       `json:"quarantined"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// ETLLogRepository stores the run log
type ETLLogRepository interface {
	// CreateETLLogTable creates etl_run_log if it does not exist
	CreateETLLogTable(ctx context.Context) error

	// CreateLogEntry inserts an in_progress row and returns its id
	CreateLogEntry(ctx context.Context, runID string, startTime time.Time) (int64, error)

	UpdateLogEntrySuccess(ctx context.Context, id int64, summary *RunSummary) error

	UpdateLogEntryFailure(ctx context.Context, id int64, endTime time.Time, errorMessage string) error

	// GetLastSuccessfulRun returns nil, nil when no run has succeeded yet
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)

	// GetETLRunStats returns the runs started in the last days
	GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error)

	GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error)
}

// ETLStateMonitor summarizes the run history for operators
type ETLStateMonitor struct {
	LastSuccessfulRun       *ETLRunLog `json:"last_successful_run"`
	LastFailedRun           *ETLRunLog `json:"last_failed_run,omitempty"`
	CurrentRun              *ETLRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int        `json:"total_successful_runs"`
	TotalFailedRuns         int        `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64    `json:"avg_execution_time_seconds"`
	TotalFactsPublished     int        `json:"total_facts_published"`
}
