package load

import (
	"context"
	"errors"
	"testing"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

func TestMemoryLoader_PublishAndRead(t *testing.T) {
	l := NewMemoryLoader()
	ctx := context.Background()

	if err := l.Publish(ctx, sampleData()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	snapshot, _ := l.LoadDimensions(ctx)
	if len(snapshot.Zones) != 2 || snapshot.Zones[0].ZoneCode != "Z-100" {
		t.Errorf("Zones = %+v", snapshot.Zones)
	}

	fps, _ := l.LoadFactFingerprints(ctx)
	if fps["shift|northco|Z-100|2024-01-01|18:00-22:00"] != "fp-shift" || len(fps) != 2 {
		t.Errorf("fingerprints = %v", fps)
	}
	if len(l.Quarantine()) != 1 {
		t.Errorf("Quarantine = %d entries", len(l.Quarantine()))
	}
}

func TestMemoryLoader_UpsertKeepsFactIdentity(t *testing.T) {
	l := NewMemoryLoader()
	ctx := context.Background()

	if err := l.Publish(ctx, sampleData()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	id := l.ShiftFacts()[0].ID

	again := sampleData()
	again.ShiftFacts[0].Income = 175
	again.ShiftFacts[0].Fingerprint = "fp-shift-2"
	if err := l.Publish(ctx, again); err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}

	shifts := l.ShiftFacts()
	if len(shifts) != 1 {
		t.Fatalf("ShiftFacts = %d, want 1", len(shifts))
	}
	if shifts[0].ID != id || shifts[0].Income != 175 {
		t.Errorf("shift = %+v, want id %d and income 175", shifts[0], id)
	}
	if len(l.Quarantine()) != 1 {
		t.Errorf("re-quarantined entry duplicated: %d", len(l.Quarantine()))
	}
}

func TestMemoryLoader_FailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MemoryLoader, *models.TransformedData)
		wantErr error
	}{
		{
			name: "dangling reference",
			mutate: func(_ *MemoryLoader, d *models.TransformedData) {
				d.OrderFacts[0].ProviderKey = 99
			},
			wantErr: ErrForeignKeyViolation,
		},
		{
			name: "natural key claimed twice",
			mutate: func(_ *MemoryLoader, d *models.TransformedData) {
				d.Dimensions.Providers = append(d.Dimensions.Providers, models.ProviderDimension{Key: 2, NaturalKey: "northco"})
			},
			wantErr: ErrDuplicateNaturalKey,
		},
		{
			name: "storage failure after facts",
			mutate: func(l *MemoryLoader, _ *models.TransformedData) {
				l.PublishHook = func(stage string) error {
					if stage == StageFacts {
						return errStorage
					}
					return nil
				}
			},
			wantErr: errStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewMemoryLoader()
			data := sampleData()
			tt.mutate(l, data)

			err := l.Publish(context.Background(), data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Publish() error = %v, want %v", err, tt.wantErr)
			}

			snapshot, _ := l.LoadDimensions(context.Background())
			if len(snapshot.Time)+len(snapshot.Providers)+len(snapshot.Zones)+len(snapshot.Weather) != 0 {
				t.Errorf("dimensions written despite failure: %+v", snapshot)
			}
			if len(l.ShiftFacts())+len(l.OrderFacts())+len(l.Quarantine()) != 0 {
				t.Error("facts or quarantine written despite failure")
			}
		})
	}
}

var errStorage = errors.New("disk full")

func TestMemoryLoader_LockHonoursContext(t *testing.T) {
	l := NewMemoryLoader()

	unlock, err := l.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Lock(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Lock() error = %v, want context.Canceled", err)
	}
}
