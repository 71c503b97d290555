package load

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// PublishedState is what a run needs to know about the store before it builds anything
type PublishedState struct {
	Dimensions   *models.DimensionSnapshot
	Fingerprints map[string]string
}

// LoadManager drives the Loader for one run
type LoadManager struct {
	loader Loader
	logger *utils.ETLLogger
}

// NewLoadManager creates a new LoadManager over loader
func NewLoadManager(loader Loader, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		loader: loader,
		logger: logger,
	}
}

// Lock takes the run lock
func (m *LoadManager) Lock(ctx context.Context) (func(), error) {
	unlock, err := m.loader.Lock(ctx)
	if err != nil {
		m.logger.Error("run lock failed", "error", err)
		return nil, fmt.Errorf("take run lock: %w", err)
	}
	return unlock, nil
}

// ReadState loads stored dimension members and published fact fingerprints
func (m *LoadManager) ReadState(ctx context.Context) (*PublishedState, error) {
	snapshot, err := m.loader.LoadDimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dimensions: %w", err)
	}
	fingerprints, err := m.loader.LoadFactFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fact fingerprints: %w", err)
	}

	m.logger.Debug("published state read",
		"time", len(snapshot.Time),
		"providers", len(snapshot.Providers),
		"zones", len(snapshot.Zones),
		"weather", len(snapshot.Weather),
		"facts", len(fingerprints))
	return &PublishedState{Dimensions: snapshot, Fingerprints: fingerprints}, nil
}

// Load publishes one run's output
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData) error {
	startTime := time.Now()
	m.logger.LogStageStart("load")

	if err := m.loader.Publish(ctx, data); err != nil {
		m.logger.Error("publication failed, nothing written", "error", err)
		return fmt.Errorf("publish: %w", err)
	}

	m.logger.LogStageComplete("load", startTime, len(data.ShiftFacts)+len(data.OrderFacts)+len(data.Quarantine))
	return nil
}
