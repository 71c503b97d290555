package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// QuarantineLoader records rejected and superseded raw records.
// Entries are keyed by raw reference and raw hash: identical rows from two
// files stay two entries, and re-running a batch rewrites rather than repeats them.
type QuarantineLoader struct {
	logger *utils.ETLLogger
}

// NewQuarantineLoader creates a new QuarantineLoader
func NewQuarantineLoader(logger *utils.ETLLogger) *QuarantineLoader {
	return &QuarantineLoader{logger: logger}
}

const upsertQuarantineQuery = `
	INSERT INTO etl_quarantine
	(raw_hash, run_id, raw_ref, source, reason, detail, payload, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	run_id = VALUES(run_id),
	reason = VALUES(reason),
	detail = VALUES(detail),
	payload = VALUES(payload),
	recorded_at = VALUES(recorded_at)`

// Load upserts the entries inside tx
func (l *QuarantineLoader) Load(ctx context.Context, tx *sql.Tx, entries []models.QuarantineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	args := make([][]any, 0, len(entries))
	for _, e := range entries {
		args = append(args, []any{e.RawHash, e.RunID, e.RawRef, string(e.Source), string(e.Reason),
			e.Detail, e.Payload, e.RecordedAt})
	}
	if err := execEach(ctx, tx, upsertQuarantineQuery, args); err != nil {
		return fmt.Errorf("load etl_quarantine: %w", err)
	}

	l.logger.Debug("quarantine entries loaded", "count", len(entries))
	return nil
}
