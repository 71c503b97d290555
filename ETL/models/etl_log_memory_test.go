package models

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRunLog_StateMonitor(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryETLLogRepository()
	start := time.Now().Add(-time.Hour)

	okID, _ := repo.CreateLogEntry(ctx, "run-ok", start)
	summary := NewRunSummary("run-ok", start)
	summary.EndTime = start.Add(2 * time.Second)
	summary.ShiftFacts, summary.OrderFacts = 3, 4
	summary.RejectedByReason[ReasonMissingField] = 1
	if err := repo.UpdateLogEntrySuccess(ctx, okID, summary); err != nil {
		t.Fatalf("UpdateLogEntrySuccess() error = %v", err)
	}

	failID, _ := repo.CreateLogEntry(ctx, "run-bad", start.Add(time.Minute))
	if err := repo.UpdateLogEntryFailure(ctx, failID, start.Add(2*time.Minute), "boom"); err != nil {
		t.Fatalf("UpdateLogEntryFailure() error = %v", err)
	}
	_, _ = repo.CreateLogEntry(ctx, "run-now", start.Add(3*time.Minute))

	monitor, err := repo.GetETLStateMonitor(ctx)
	if err != nil {
		t.Fatalf("GetETLStateMonitor() error = %v", err)
	}
	if monitor.LastSuccessfulRun == nil || monitor.LastSuccessfulRun.RunID != "run-ok" {
		t.Errorf("LastSuccessfulRun = %+v", monitor.LastSuccessfulRun)
	}
	if monitor.LastFailedRun == nil || monitor.LastFailedRun.ErrorMessage != "boom" {
		t.Errorf("LastFailedRun = %+v", monitor.LastFailedRun)
	}
	if monitor.CurrentRun == nil || monitor.CurrentRun.RunID != "run-now" {
		t.Errorf("CurrentRun = %+v", monitor.CurrentRun)
	}
	if monitor.TotalSuccessfulRuns != 1 || monitor.TotalFailedRuns != 1 || monitor.TotalFactsPublished != 7 {
		t.Errorf("totals = %+v", monitor)
	}
	if monitor.AvgExecutionTimeSeconds != 2 {
		t.Errorf("AvgExecutionTimeSeconds = %v, want 2", monitor.AvgExecutionTimeSeconds)
	}

	logs, _ := repo.GetETLRunStats(ctx, 1)
	if len(logs) != 3 || logs[0].RunID != "run-now" {
		t.Errorf("GetETLRunStats() = %+v, want newest first", logs)
	}
	if logs[2].RejectedByReason != `{"MissingField":1}` {
		t.Errorf("RejectedByReason = %s", logs[2].RejectedByReason)
	}
}

func TestMemoryRunLog_UnknownEntry(t *testing.T) {
	repo := NewMemoryETLLogRepository()
	if err := repo.UpdateLogEntryFailure(context.Background(), 3, time.Now(), "x"); err == nil {
		t.Error("UpdateLogEntryFailure() on a missing row should fail")
	}
}
