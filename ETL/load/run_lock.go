package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// DefaultLockName is the MySQL named lock every runner of the same store contends for
const DefaultLockName = "delivery_analytics_etl"

// acquireRunLock takes a MySQL named lock. GET_LOCK is bound to the session,
// so the lock holds a dedicated connection until released.
func acquireRunLock(ctx context.Context, db *sql.DB, name string, timeout time.Duration, logger *utils.ETLLogger) (func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("run lock connection: %w", err)
	}

	var got sql.NullInt64
	seconds := int(timeout.Seconds())
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, seconds).Scan(&got); err != nil {
		conn.Close()
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, fmt.Errorf("%w: %q after %s", ErrLockTimeout, name, timeout)
	}
	logger.Debug("run lock acquired", "lock", name)

	return func() {
		// the run context may already be done; release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var released sql.NullInt64
		if err := conn.QueryRowContext(releaseCtx, "SELECT RELEASE_LOCK(?)", name).Scan(&released); err != nil {
			logger.Warn("release run lock failed", "lock", name, "error", err)
		}
		conn.Close()
		logger.Debug("run lock released", "lock", name)
	}, nil
}
