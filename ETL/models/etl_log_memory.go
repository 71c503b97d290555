package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryETLLogRepository keeps etl_run_log rows in process memory.
// Dry runs and tests use it in place of MySQLETLLogRepository.
type MemoryETLLogRepository struct {
	mu   sync.Mutex
	rows []ETLRunLog
}

// NewMemoryETLLogRepository creates an empty in-memory run log
func NewMemoryETLLogRepository() *MemoryETLLogRepository {
	return &MemoryETLLogRepository{}
}

func (r *MemoryETLLogRepository) CreateETLLogTable(context.Context) error { return nil }

func (r *MemoryETLLogRepository) CreateLogEntry(_ context.Context, runID string, startTime time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, ETLRunLog{
		ID:        int64(len(r.rows) + 1),
		RunID:     runID,
		StartTime: startTime,
		EndTime:   startTime,
		Status:    RunStatusInProgress,
	})
	return int64(len(r.rows)), nil
}

func (r *MemoryETLLogRepository) UpdateLogEntrySuccess(_ context.Context, id int64, summary *RunSummary) error {
	reasons, err := json.Marshal(summary.RejectedByReason)
	if err != nil {
		return fmt.Errorf("encode rejection counts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	row, err := r.rowLocked(id)
	if err != nil {
		return err
	}
	row.EndTime = summary.EndTime
	row.Status = RunStatusSuccess
	row.TotalRecords = summary.TotalRecords
	row.Accepted = summary.Accepted
	row.Rejected = summary.Rejected
	row.RejectedByReason = string(reasons)
	row.Superseded = summary.Superseded
	row.Unchanged = summary.Unchanged
	row.NewTimeMembers = summary.NewMembers[DimTime]
	row.NewProviderMembers = summary.NewMembers[DimProvider]
	row.NewZoneMembers = summary.NewMembers[DimZone]
	row.NewWeatherMembers = summary.NewMembers[DimWeather]
	row.ShiftFacts = summary.ShiftFacts
	row.OrderFacts = summary.OrderFacts
	row.Quarantined = summary.Quarantined
	row.ExecutionTimeSeconds = summary.EndTime.Sub(summary.StartTime).Seconds()
	return nil
}

func (r *MemoryETLLogRepository) UpdateLogEntryFailure(_ context.Context, id int64, endTime time.Time, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, err := r.rowLocked(id)
	if err != nil {
		return err
	}
	row.EndTime = endTime
	row.Status = RunStatusFailed
	row.ErrorMessage = errorMessage
	row.ExecutionTimeSeconds = endTime.Sub(row.StartTime).Seconds()
	return nil
}

func (r *MemoryETLLogRepository) GetLastSuccessfulRun(context.Context) (*ETLRunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latestLocked(RunStatusSuccess, func(l ETLRunLog) time.Time { return l.EndTime }), nil
}

// GetETLRunStats returns the runs started in the last days, newest first
func (r *MemoryETLLogRepository) GetETLRunStats(_ context.Context, days int) ([]ETLRunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Now().AddDate(0, 0, -days)
	var logs []ETLRunLog
	for _, l := range r.rows {
		if !l.StartTime.Before(since) {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].StartTime.After(logs[j].StartTime) })
	return logs, nil
}

func (r *MemoryETLLogRepository) GetETLStateMonitor(context.Context) (*ETLStateMonitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	monitor := &ETLStateMonitor{
		LastSuccessfulRun: r.latestLocked(RunStatusSuccess, func(l ETLRunLog) time.Time { return l.EndTime }),
		LastFailedRun:     r.latestLocked(RunStatusFailed, func(l ETLRunLog) time.Time { return l.EndTime }),
		CurrentRun:        r.latestLocked(RunStatusInProgress, func(l ETLRunLog) time.Time { return l.StartTime }),
	}
	var totalSeconds float64
	for _, l := range r.rows {
		switch l.Status {
		case RunStatusSuccess:
			monitor.TotalSuccessfulRuns++
			monitor.TotalFactsPublished += l.ShiftFacts + l.OrderFacts
			totalSeconds += l.ExecutionTimeSeconds
		case RunStatusFailed:
			monitor.TotalFailedRuns++
		}
	}
	if monitor.TotalSuccessfulRuns > 0 {
		monitor.AvgExecutionTimeSeconds = totalSeconds / float64(monitor.TotalSuccessfulRuns)
	}
	return monitor, nil
}

func (r *MemoryETLLogRepository) rowLocked(id int64) (*ETLRunLog, error) {
	if id < 1 || int(id) > len(r.rows) {
		return nil, fmt.Errorf("run log entry %d not found", id)
	}
	return &r.rows[id-1], nil
}

func (r *MemoryETLLogRepository) latestLocked(status string, at func(ETLRunLog) time.Time) *ETLRunLog {
	var latest *ETLRunLog
	for i := range r.rows {
		l := r.rows[i]
		if l.Status != status {
			continue
		}
		if latest == nil || !at(l).Before(at(*latest)) {
			latest = &l
		}
	}
	return latest
}
