package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

var (
	// ErrLockTimeout means another run held the run lock for longer than the lock timeout
	ErrLockTimeout = errors.New("run lock not acquired")

	// ErrForeignKeyViolation means a fact referenced a dimension member that does not exist
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrDuplicateNaturalKey means two members of a dimension claimed the same natural key
	ErrDuplicateNaturalKey = errors.New("duplicate natural key")
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452
)

// Loader is the analytical store a run reads from and publishes to
type Loader interface {
	// EnsureSchema creates every table that does not exist yet
	EnsureSchema(ctx context.Context) error

	// Lock takes the run lock; key assignment and publication happen while it is held
	Lock(ctx context.Context) (unlock func(), err error)

	// LoadDimensions returns every stored dimension member
	LoadDimensions(ctx context.Context) (*models.DimensionSnapshot, error)

	// LoadFactFingerprints maps every published fact's natural key to its fingerprint
	LoadFactFingerprints(ctx context.Context) (map[string]string, error)

	// Publish writes dimensions, facts and quarantine entries atomically
	Publish(ctx context.Context, data *models.TransformedData) error
}

// OLAPLoader is the MySQL implementation of Loader
type OLAPLoader struct {
	db          *sql.DB
	logger      *utils.ETLLogger
	lockName    string
	lockTimeout time.Duration

	dimensionLoader  *DimensionLoader
	factLoader       *FactLoader
	quarantineLoader *QuarantineLoader
}

// NewOLAPLoader creates a MySQL loader
func NewOLAPLoader(db *sql.DB, lockTimeout time.Duration, logger *utils.ETLLogger) *OLAPLoader {
	return &OLAPLoader{
		db:               db,
		logger:           logger,
		lockName:         DefaultLockName,
		lockTimeout:      lockTimeout,
		dimensionLoader:  NewDimensionLoader(logger),
		factLoader:       NewFactLoader(logger),
		quarantineLoader: NewQuarantineLoader(logger),
	}
}

func (l *OLAPLoader) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (l *OLAPLoader) Lock(ctx context.Context) (func(), error) {
	return acquireRunLock(ctx, l.db, l.lockName, l.lockTimeout, l.logger)
}

func (l *OLAPLoader) LoadDimensions(ctx context.Context) (*models.DimensionSnapshot, error) {
	return l.dimensionLoader.Snapshot(ctx, l.db)
}

func (l *OLAPLoader) LoadFactFingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT natural_key, fingerprint FROM fact_shift
		UNION ALL
		SELECT natural_key, fingerprint FROM fact_order`)
	if err != nil {
		return nil, fmt.Errorf("query fact fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]string)
	for rows.Next() {
		var nk, fp string
		if err := rows.Scan(&nk, &fp); err != nil {
			return nil, fmt.Errorf("scan fact fingerprint: %w", err)
		}
		fingerprints[nk] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read fact fingerprints: %w", err)
	}
	return fingerprints, nil
}

// Publish writes everything in one transaction; on any error nothing is committed
func (l *OLAPLoader) Publish(ctx context.Context, data *models.TransformedData) (err error) {
	startTime := time.Now()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publication: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				l.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err = l.dimensionLoader.Load(ctx, tx, data.Dimensions); err != nil {
		return classify(err)
	}
	if err = l.factLoader.LoadShiftFacts(ctx, tx, data.RunID, data.ShiftFacts); err != nil {
		return classify(err)
	}
	if err = l.factLoader.LoadOrderFacts(ctx, tx, data.RunID, data.OrderFacts); err != nil {
		return classify(err)
	}
	if err = l.quarantineLoader.Load(ctx, tx, data.Quarantine); err != nil {
		return classify(err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit publication: %w", err)
	}

	l.logger.Info("publication committed",
		"shift_facts", len(data.ShiftFacts),
		"order_facts", len(data.OrderFacts),
		"quarantined", len(data.Quarantine),
		"duration", time.Since(startTime))
	return nil
}

// classify maps MySQL constraint errors onto the package sentinels
func classify(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrNoReferencedRow:
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		case mysqlErrDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrDuplicateNaturalKey, err)
		}
	}
	return err
}

// execEach prepares query inside tx and executes it once per argument list
func execEach(ctx context.Context, tx *sql.Tx, query string, args [][]any) error {
	if len(args) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range args {
		if _, err := stmt.ExecContext(ctx, a...); err != nil {
			return err
		}
	}
	return nil
}
