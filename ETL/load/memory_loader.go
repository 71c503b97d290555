package load

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// Publication stages a PublishHook is called at
const (
	StageDimensions = "dimensions"
	StageFacts      = "facts"
	StageQuarantine = "quarantine"
)

// MemoryLoader is an in-process Loader. Publish works on a copy of the state
// and swaps it in only when every step succeeded, like a committed transaction.
type MemoryLoader struct {
	runLock sync.Mutex

	mu    sync.RWMutex
	state *memoryState

	// PublishHook, when set, runs after each publication stage; an error
	// aborts the publication
	PublishHook func(stage string) error
}

type memoryState struct {
	time       map[int64]models.TimeDimension
	providers  map[int64]models.ProviderDimension
	zones      map[int64]models.ZoneDimension
	weather    map[int64]models.WeatherDimension
	shifts     map[string]models.ShiftFact
	orders     map[string]models.OrderFact
	quarantine map[string]models.QuarantineEntry
	lastFactID int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		time:       make(map[int64]models.TimeDimension),
		providers:  make(map[int64]models.ProviderDimension),
		zones:      make(map[int64]models.ZoneDimension),
		weather:    make(map[int64]models.WeatherDimension),
		shifts:     make(map[string]models.ShiftFact),
		orders:     make(map[string]models.OrderFact),
		quarantine: make(map[string]models.QuarantineEntry),
	}
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		time:       cloneMap(s.time),
		providers:  cloneMap(s.providers),
		zones:      cloneMap(s.zones),
		weather:    cloneMap(s.weather),
		shifts:     cloneMap(s.shifts),
		orders:     cloneMap(s.orders),
		quarantine: cloneMap(s.quarantine),
		lastFactID: s.lastFactID,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewMemoryLoader creates an empty MemoryLoader
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{state: newMemoryState()}
}

func (l *MemoryLoader) EnsureSchema(context.Context) error {
	return nil
}

func (l *MemoryLoader) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.runLock.Lock()
	return l.runLock.Unlock, nil
}

func (l *MemoryLoader) LoadDimensions(context.Context) (*models.DimensionSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.state
	snapshot := &models.DimensionSnapshot{
		Time:      valuesByKey(s.time),
		Providers: valuesByKey(s.providers),
		Zones:     valuesByKey(s.zones),
		Weather:   valuesByKey(s.weather),
	}
	return snapshot, nil
}

func valuesByKey[V any](m map[int64]V) []V {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]V, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (l *MemoryLoader) LoadFactFingerprints(context.Context) (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fingerprints := make(map[string]string, len(l.state.shifts)+len(l.state.orders))
	for nk, f := range l.state.shifts {
		fingerprints[nk] = f.Fingerprint
	}
	for nk, f := range l.state.orders {
		fingerprints[nk] = f.Fingerprint
	}
	return fingerprints, nil
}

func (l *MemoryLoader) Publish(ctx context.Context, data *models.TransformedData) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()

	if err := next.applyDimensions(data.Dimensions); err != nil {
		return err
	}
	if err := l.hook(ctx, StageDimensions); err != nil {
		return err
	}

	if err := next.applyFacts(data.ShiftFacts, data.OrderFacts); err != nil {
		return err
	}
	if err := l.hook(ctx, StageFacts); err != nil {
		return err
	}

	for _, e := range data.Quarantine {
		next.quarantine[quarantineKey(e)] = e
	}
	if err := l.hook(ctx, StageQuarantine); err != nil {
		return err
	}

	l.state = next
	return nil
}

func (l *MemoryLoader) hook(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", stage, err)
	}
	if l.PublishHook == nil {
		return nil
	}
	if err := l.PublishHook(stage); err != nil {
		return fmt.Errorf("publish %s: %w", stage, err)
	}
	return nil
}

func (s *memoryState) applyDimensions(changes models.DimensionChanges) error {
	for _, m := range changes.Time {
		if err := checkNaturalKey(s.time, m.Key, m.NaturalKey(), models.TimeDimension.NaturalKey); err != nil {
			return err
		}
		s.time[m.Key] = m
	}
	for _, m := range changes.Providers {
		if err := checkNaturalKey(s.providers, m.Key, m.NaturalKey, func(p models.ProviderDimension) string { return p.NaturalKey }); err != nil {
			return err
		}
		s.providers[m.Key] = m
	}
	for _, m := range changes.Zones {
		if err := checkNaturalKey(s.zones, m.Key, m.ZoneCode, func(z models.ZoneDimension) string { return z.ZoneCode }); err != nil {
			return err
		}
		s.zones[m.Key] = m
	}
	for _, m := range changes.Weather {
		if err := checkNaturalKey(s.weather, m.Key, m.NaturalKey, func(w models.WeatherDimension) string { return w.NaturalKey }); err != nil {
			return err
		}
		s.weather[m.Key] = m
	}
	return nil
}

// checkNaturalKey rejects a member whose natural key belongs to another surrogate key
// or whose surrogate key already names a different natural key
func checkNaturalKey[V any](members map[int64]V, key int64, naturalKey string, nkOf func(V) string) error {
	if current, ok := members[key]; ok && nkOf(current) != naturalKey {
		return fmt.Errorf("%w: key %d holds %q, not %q", ErrDuplicateNaturalKey, key, nkOf(current), naturalKey)
	}
	for k, m := range members {
		if k != key && nkOf(m) == naturalKey {
			return fmt.Errorf("%w: %q already has key %d", ErrDuplicateNaturalKey, naturalKey, k)
		}
	}
	return nil
}

func (s *memoryState) applyFacts(shifts []models.ShiftFact, orders []models.OrderFact) error {
	for _, f := range shifts {
		if err := s.checkRefs(f.NaturalKey, f.TimeKey, f.ProviderKey, f.ZoneKey, nil, f.WeatherKey); err != nil {
			return err
		}
		if current, ok := s.shifts[f.NaturalKey]; ok {
			f.ID = current.ID
		} else {
			s.lastFactID++
			f.ID = s.lastFactID
		}
		s.shifts[f.NaturalKey] = f
	}
	for _, f := range orders {
		if err := s.checkRefs(f.NaturalKey, f.TimeKey, f.ProviderKey, f.ZoneKey, f.CustomerZoneKey, f.WeatherKey); err != nil {
			return err
		}
		if current, ok := s.orders[f.NaturalKey]; ok {
			f.ID = current.ID
		} else {
			s.lastFactID++
			f.ID = s.lastFactID
		}
		s.orders[f.NaturalKey] = f
	}
	return nil
}

func (s *memoryState) checkRefs(nk string, timeKey, providerKey, zoneKey int64, customerZoneKey *int64, weatherKey int64) error {
	missing := func(dim models.Dimension, key int64) error {
		return fmt.Errorf("%w: fact %q references %s key %d", ErrForeignKeyViolation, nk, dim, key)
	}
	if _, ok := s.time[timeKey]; !ok {
		return missing(models.DimTime, timeKey)
	}
	if _, ok := s.providers[providerKey]; !ok {
		return missing(models.DimProvider, providerKey)
	}
	if _, ok := s.zones[zoneKey]; !ok {
		return missing(models.DimZone, zoneKey)
	}
	if customerZoneKey != nil {
		if _, ok := s.zones[*customerZoneKey]; !ok {
			return missing(models.DimZone, *customerZoneKey)
		}
	}
	if _, ok := s.weather[weatherKey]; !ok {
		return missing(models.DimWeather, weatherKey)
	}
	return nil
}

// ShiftFacts returns the published shift facts ordered by natural key
func (l *MemoryLoader) ShiftFacts() []models.ShiftFact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return valuesByName(l.state.shifts)
}

// OrderFacts returns the published order facts ordered by natural key
func (l *MemoryLoader) OrderFacts() []models.OrderFact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return valuesByName(l.state.orders)
}

// Quarantine returns the quarantine log ordered by raw reference
func (l *MemoryLoader) Quarantine() []models.QuarantineEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return valuesByName(l.state.quarantine)
}

// quarantineKey mirrors the (raw_ref, raw_hash) unique key of etl_quarantine
func quarantineKey(e models.QuarantineEntry) string {
	return e.RawRef + "\x00" + e.RawHash
}

func valuesByName[V any](m map[string]V) []V {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]V, 0, len(m))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}
