package models

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var runLogCols = []string{
	"id", "run_id", "start_time", "end_time", "status",
	"total_records", "accepted", "rejected", "rejected_by_reason",
	"superseded", "unchanged",
	"new_time_members", "new_provider_members", "new_zone_members", "new_weather_members",
	"shift_facts", "order_facts", "quarantined", "error_message", "execution_time_seconds",
}

func newMockRepo(t *testing.T) (*MySQLETLLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMySQLETLLogRepository(db), mock
}

func TestRunLog_CreateAndSucceed(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO etl_run_log").
		WithArgs("run-1", start).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.CreateLogEntry(ctx, "run-1", start)
	if err != nil || id != 7 {
		t.Fatalf("CreateLogEntry() = %d, %v", id, err)
	}

	summary := NewRunSummary("run-1", start)
	summary.EndTime = start.Add(1500 * time.Millisecond)
	summary.TotalRecords = 10
	summary.Accepted = 8
	summary.Rejected = 2
	summary.RejectedByReason[ReasonMissingField] = 2
	summary.NewMembers[DimProvider] = 1
	summary.ShiftFacts = 5
	summary.OrderFacts = 3
	summary.Quarantined = 3

	mock.ExpectExec("UPDATE etl_run_log").
		WithArgs(summary.EndTime, 10, 8, 2, `{"MissingField":2}`, 0, 0, 0, 1, 0, 0, 5, 3, 3, 1.5, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLogEntrySuccess(ctx, id, summary); err != nil {
		t.Fatalf("UpdateLogEntrySuccess() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunLog_Failure(t *testing.T) {
	repo, mock := newMockRepo(t)
	end := time.Now()

	mock.ExpectExec("UPDATE etl_run_log").
		WithArgs(end, "extract: unreadable source", end, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLogEntryFailure(context.Background(), 3, end, "extract: unreadable source"); err != nil {
		t.Fatalf("UpdateLogEntryFailure() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunLog_LastSuccessfulRunNone(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM etl_run_log").WillReturnRows(sqlmock.NewRows(runLogCols))

	got, err := repo.GetLastSuccessfulRun(context.Background())
	if err != nil || got != nil {
		t.Errorf("GetLastSuccessfulRun() = %+v, %v; want nil, nil", got, err)
	}
}

func TestRunLog_Stats(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runLogCols).
		AddRow(2, "run-2", start.Add(time.Hour), start.Add(time.Hour), "failed",
			0, 0, 0, "{}", 0, 0, 0, 0, 0, 0, 0, 0, 0, "lock timeout", 30.0).
		AddRow(1, "run-1", start, start.Add(2*time.Second), "success",
			10, 8, 2, `{"MissingField":2}`, 1, 0, 3, 1, 1, 1, 5, 3, 3, "", 2.0)
	mock.ExpectQuery("FROM etl_run_log").WithArgs(7).WillReturnRows(rows)

	logs, err := repo.GetETLRunStats(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetETLRunStats() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d runs, want 2", len(logs))
	}
	if logs[0].RunID != "run-2" || logs[0].ErrorMessage != "lock timeout" {
		t.Errorf("first run = %+v", logs[0])
	}
	if logs[1].ShiftFacts != 5 || logs[1].NewTimeMembers != 3 || logs[1].RejectedByReason != `{"MissingField":2}` {
		t.Errorf("second run = %+v", logs[1])
	}
}
