package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MySQLETLLogRepository implements ETLLogRepository on MySQL
type MySQLETLLogRepository struct {
	db *sql.DB
}

// NewMySQLETLLogRepository creates a run log repository
func NewMySQLETLLogRepository(db *sql.DB) *MySQLETLLogRepository {
	return &MySQLETLLogRepository{
		db: db,
	}
}

const runLogColumns = `
		id, run_id, start_time, IFNULL(end_time, start_time), status,
		total_records, accepted, rejected, IFNULL(rejected_by_reason, '{}'),
		superseded, unchanged,
		new_time_members, new_provider_members, new_zone_members, new_weather_members,
		shift_facts, order_facts, quarantined, IFNULL(error_message, ''), IFNULL(execution_time_seconds, 0)`

// CreateETLLogTable creates etl_run_log if it does not exist
func (r *MySQLETLLogRepository) CreateETLLogTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS etl_run_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status ENUM('success', 'failed', 'in_progress') NOT NULL DEFAULT 'in_progress',
		total_records INT DEFAULT 0,
		accepted INT DEFAULT 0,
		rejected INT DEFAULT 0,
		rejected_by_reason TEXT,
		superseded INT DEFAULT 0,
		unchanged INT DEFAULT 0,
		new_time_members INT DEFAULT 0,
		new_provider_members INT DEFAULT 0,
		new_zone_members INT DEFAULT 0,
		new_weather_members INT DEFAULT 0,
		shift_facts INT DEFAULT 0,
		order_facts INT DEFAULT 0,
		quarantined INT DEFAULT 0,
		error_message TEXT,
		execution_time_seconds FLOAT,
		UNIQUE KEY uq_run_id (run_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create etl_run_log: %w", err)
	}
	return nil
}

// CreateLogEntry inserts an in_progress row for the run
func (r *MySQLETLLogRepository) CreateLogEntry(ctx context.Context, runID string, startTime time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO etl_run_log (run_id, start_time, status) VALUES (?, ?, 'in_progress')`,
		runID, startTime)
	if err != nil {
		return 0, fmt.Errorf("insert run log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run log entry id: %w", err)
	}
	return id, nil
}

// UpdateLogEntrySuccess records the counts of a published run
func (r *MySQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, id int64, summary *RunSummary) error {
	reasons, err := json.Marshal(summary.RejectedByReason)
	if err != nil {
		return fmt.Errorf("encode rejection counts: %w", err)
	}

	query := `
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = 'success',
		total_records = ?,
		accepted = ?,
		rejected = ?,
		rejected_by_reason = ?,
		superseded = ?,
		unchanged = ?,
		new_time_members = ?,
		new_provider_members = ?,
		new_zone_members = ?,
		new_weather_members = ?,
		shift_facts = ?,
		order_facts = ?,
		quarantined = ?,
		execution_time_seconds = ?
	WHERE id = ?`

	_, err = r.db.ExecContext(ctx, query,
		summary.EndTime,
		summary.TotalRecords,
		summary.Accepted,
		summary.Rejected,
		string(reasons),
		summary.Superseded,
		summary.Unchanged,
		summary.NewMembers[DimTime],
		summary.NewMembers[DimProvider],
		summary.NewMembers[DimZone],
		summary.NewMembers[DimWeather],
		summary.ShiftFacts,
		summary.OrderFacts,
		summary.Quarantined,
		summary.EndTime.Sub(summary.StartTime).Seconds(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run log entry %d: %w", id, err)
	}
	return nil
}

// UpdateLogEntryFailure records the systemic cause of a failed run
func (r *MySQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, id int64, endTime time.Time, errorMessage string) error {
	query := `
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = 'failed',
		error_message = ?,
		execution_time_seconds = TIMESTAMPDIFF(MICROSECOND, start_time, ?) / 1000000
	WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, endTime, errorMessage, endTime, id); err != nil {
		return fmt.Errorf("update run log entry %d: %w", id, err)
	}
	return nil
}

// GetLastSuccessfulRun returns nil, nil when no run has succeeded yet
func (r *MySQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	return r.queryOne(ctx, `SELECT `+runLogColumns+`
	FROM etl_run_log
	WHERE status = 'success'
	ORDER BY end_time DESC
	LIMIT 1`)
}

// GetETLRunStats returns the runs started in the last days, newest first
func (r *MySQLETLLogRepository) GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runLogColumns+`
	FROM etl_run_log
	WHERE start_time >= DATE_SUB(NOW(), INTERVAL ? DAY)
	ORDER BY start_time DESC`, days)
	if err != nil {
		return nil, fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	var logs []ETLRunLog
	for rows.Next() {
		log, err := scanRunLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run stats: %w", err)
	}
	return logs, nil
}

// GetETLStateMonitor collects the last success, last failure, current run and totals
func (r *MySQLETLLogRepository) GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error) {
	lastSuccessful, err := r.GetLastSuccessfulRun(ctx)
	if err != nil {
		return nil, err
	}

	lastFailed, err := r.queryOne(ctx, `SELECT `+runLogColumns+`
	FROM etl_run_log
	WHERE status = 'failed'
	ORDER BY end_time DESC
	LIMIT 1`)
	if err != nil {
		return nil, err
	}

	currentRun, err := r.queryOne(ctx, `SELECT `+runLogColumns+`
	FROM etl_run_log
	WHERE status = 'in_progress'
	ORDER BY start_time DESC
	LIMIT 1`)
	if err != nil {
		return nil, err
	}

	var (
		totalSuccess, totalFailed, totalFacts sql.NullInt64
		avgExecution                          sql.NullFloat64
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			AVG(CASE WHEN status = 'success' THEN execution_time_seconds ELSE NULL END),
			SUM(CASE WHEN status = 'success' THEN shift_facts + order_facts ELSE 0 END)
		FROM etl_run_log`).Scan(&totalSuccess, &totalFailed, &avgExecution, &totalFacts)
	if err != nil {
		return nil, fmt.Errorf("query run totals: %w", err)
	}

	return &ETLStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		LastFailedRun:           lastFailed,
		CurrentRun:              currentRun,
		TotalSuccessfulRuns:     int(totalSuccess.Int64),
		TotalFailedRuns:         int(totalFailed.Int64),
		AvgExecutionTimeSeconds: avgExecution.Float64,
		TotalFactsPublished:     int(totalFacts.Int64),
	}, nil
}

func (r *MySQLETLLogRepository) queryOne(ctx context.Context, query string) (*ETLRunLog, error) {
	log, err := scanRunLog(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunLog(row rowScanner) (*ETLRunLog, error) {
	var log ETLRunLog
	err := row.Scan(
		&log.ID, &log.RunID, &log.StartTime, &log.EndTime, &log.Status,
		&log.TotalRecords, &log.Accepted, &log.Rejected, &log.RejectedByReason,
		&log.Superseded, &log.Unchanged,
		&log.NewTimeMembers, &log.NewProviderMembers, &log.NewZoneMembers, &log.NewWeatherMembers,
		&log.ShiftFacts, &log.OrderFacts, &log.Quarantined, &log.ErrorMessage, &log.ExecutionTimeSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run log row: %w", err)
	}
	return &log, nil
}
