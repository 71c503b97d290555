package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/load"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
	"github.com/LilVoxy/delivery_analytics/processor"
)

var batchTime = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, loader load.Loader) *Pipeline {
	t.Helper()
	p, err := New(config.GetConfig(), loader, utils.NopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func shiftRow(seq int, date, provider, zone, income string) models.RawRecord {
	fields := map[string]string{
		"Fecha":         date,
		"Nombre_Local":  provider,
		"CP_Local":      zone,
		"ingreso_total": income,
	}
	return models.RawRecord{
		Source:     models.SourceSpreadsheet,
		File:       "turnos.xlsx",
		Container:  "Turnos",
		Locator:    fmt.Sprint(seq + 2),
		IngestedAt: batchTime,
		Seq:        seq,
		Fields:     fields,
	}
}

func ocrShift(seq int, date, provider, zone, income string, at time.Time) models.RawRecord {
	return models.RawRecord{
		Source:     models.SourceOCR,
		File:       "captura.json",
		Container:  "captura-1",
		Locator:    "0",
		IngestedAt: at,
		Seq:        seq,
		Fields: map[string]string{
			"Fecha":    date,
			"Local":    provider,
			"CP_Local": zone,
			"ganancia": income,
		},
	}
}

func northCoBatch() []models.RawRecord {
	return []models.RawRecord{
		shiftRow(0, "2024-01-01", "NorthCo", "Z-100", "100"),
		shiftRow(1, "2024-01-02", "NorthCo", "Z-100", "110"),
		shiftRow(2, "2024-01-03", "NorthCo", "Z-100", "120"),
		ocrShift(3, "2024-01-01", "NorthCo", "Z-100", "$ 175", batchTime.Add(time.Hour)),
	}
}

func TestRun_LaterOCRSubmissionWins(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)

	summary, err := p.Run(context.Background(), "run-1", northCoBatch())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dims, _ := store.LoadDimensions(context.Background())
	if len(dims.Providers) != 1 || len(dims.Zones) != 1 || len(dims.Time) != 3 {
		t.Errorf("members: providers=%d zones=%d time=%d, want 1/1/3",
			len(dims.Providers), len(dims.Zones), len(dims.Time))
	}

	shifts := store.ShiftFacts()
	if len(shifts) != 3 {
		t.Fatalf("shift facts = %d, want 3", len(shifts))
	}
	if shifts[0].NaturalKey != "shift|northco|Z-100|2024-01-01|" || shifts[0].Income != 175 {
		t.Errorf("2024-01-01 fact = %s income %v, want the OCR income 175", shifts[0].NaturalKey, shifts[0].Income)
	}

	if summary.Superseded != 1 || summary.Status != models.RunStatusSuccess {
		t.Errorf("summary = %+v", summary)
	}
	quarantine := store.Quarantine()
	if len(quarantine) != 1 || quarantine[0].Reason != models.ReasonDuplicateSuperseded {
		t.Fatalf("quarantine = %+v, want one superseded entry", quarantine)
	}
	payload, err := processor.DecodeQuarantinePayload(quarantine[0].Payload)
	if err != nil {
		t.Fatalf("DecodeQuarantinePayload() error = %v", err)
	}
	if payload.Fields["ingreso_total"] != "100" {
		t.Errorf("superseded payload = %+v, want the earlier spreadsheet row", payload)
	}
}

func TestRun_MissingZoneIsRejectedOthersPublish(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)

	raws := []models.RawRecord{
		shiftRow(0, "2024-01-01", "NorthCo", "Z-100", "100"),
		shiftRow(1, "2024-01-02", "SouthCo", "", "90"),
	}
	summary, err := p.Run(context.Background(), "run-1", raws)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.RejectedByReason[models.ReasonMissingField] != 1 {
		t.Errorf("RejectedByReason = %v", summary.RejectedByReason)
	}
	dims, _ := store.LoadDimensions(context.Background())
	if len(dims.Providers) != 1 || dims.Providers[0].NaturalKey != "northco" {
		t.Errorf("providers = %+v, rejected record leaked a member", dims.Providers)
	}
	if len(dims.Time) != 1 {
		t.Errorf("time members = %d, want 1", len(dims.Time))
	}
	if len(store.ShiftFacts()) != 1 {
		t.Errorf("shift facts = %d, want 1", len(store.ShiftFacts()))
	}
	if q := store.Quarantine(); len(q) != 1 || q[0].Reason != models.ReasonMissingField {
		t.Errorf("quarantine = %+v", q)
	}
}

func TestRun_IdenticalRejectedRowsFromTwoFilesBothQuarantined(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)

	other := shiftRow(1, "2024-01-02", "SouthCo", "", "90")
	other.File = "otra.xlsx"
	raws := []models.RawRecord{
		shiftRow(1, "2024-01-02", "SouthCo", "", "90"),
		other,
	}
	if raws[0].Hash() != raws[1].Hash() {
		t.Fatalf("rows should share a content hash")
	}

	summary, err := p.Run(context.Background(), "run-1", raws)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.RejectedByReason[models.ReasonMissingField] != 2 {
		t.Errorf("RejectedByReason = %v", summary.RejectedByReason)
	}

	q := store.Quarantine()
	if len(q) != 2 {
		t.Fatalf("quarantine entries = %d, want 2", len(q))
	}
	if q[0].RawRef == q[1].RawRef {
		t.Errorf("both entries point at %q", q[0].RawRef)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	raws := append(northCoBatch(), shiftRow(4, "2024-01-04", "NorthCo", "Z-100", "-5"))
	if _, err := p.Run(ctx, "run-1", raws); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	dimsBefore, _ := store.LoadDimensions(ctx)
	shiftsBefore := store.ShiftFacts()
	quarantineBefore := len(store.Quarantine())

	summary, err := p.Run(ctx, "run-2", raws)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if summary.ShiftFacts != 0 || summary.Unchanged != 3 {
		t.Errorf("second run published %d facts, unchanged %d; want 0 and 3", summary.ShiftFacts, summary.Unchanged)
	}
	for _, dim := range models.Dimensions {
		if summary.NewMembers[dim] != 0 {
			t.Errorf("second run created %d %s members", summary.NewMembers[dim], dim)
		}
	}

	dimsAfter, _ := store.LoadDimensions(ctx)
	if fmt.Sprint(dimsAfter) != fmt.Sprint(dimsBefore) {
		t.Error("dimensions changed on re-run")
	}
	shiftsAfter := store.ShiftFacts()
	if len(shiftsAfter) != len(shiftsBefore) {
		t.Fatalf("shift facts %d -> %d", len(shiftsBefore), len(shiftsAfter))
	}
	for i := range shiftsAfter {
		if shiftsAfter[i] != shiftsBefore[i] {
			t.Errorf("fact %s changed on re-run", shiftsAfter[i].NaturalKey)
		}
	}
	if len(store.Quarantine()) != quarantineBefore {
		t.Errorf("quarantine %d -> %d entries", quarantineBefore, len(store.Quarantine()))
	}
}

func TestRun_SurrogateKeysStableAcrossRuns(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	if _, err := p.Run(ctx, "run-1", []models.RawRecord{shiftRow(0, "2024-01-01", "NorthCo", "Z-100", "100")}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before, _ := store.LoadDimensions(ctx)

	// "Alpha" sorts before "NorthCo" but must not steal its key
	second := []models.RawRecord{
		shiftRow(0, "2023-12-31", "Alpha", "1425", "80"),
		shiftRow(1, "2024-01-01", "NorthCo", "Z-100", "100"),
	}
	summary, err := p.Run(ctx, "run-2", second)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	after, _ := store.LoadDimensions(ctx)

	keys := map[string]int64{}
	for _, m := range after.Providers {
		keys[m.NaturalKey] = m.Key
	}
	if keys["northco"] != before.Providers[0].Key {
		t.Errorf("northco key %d -> %d", before.Providers[0].Key, keys["northco"])
	}
	if keys["alpha"] != before.Providers[0].Key+1 {
		t.Errorf("alpha key = %d, want %d", keys["alpha"], before.Providers[0].Key+1)
	}
	if summary.NewMembers[models.DimProvider] != 1 || summary.NewMembers[models.DimTime] != 1 {
		t.Errorf("NewMembers = %v", summary.NewMembers)
	}
}

func TestRun_LaterRunCorrectsFact(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	if _, err := p.Run(ctx, "run-1", []models.RawRecord{shiftRow(0, "2024-01-01", "NorthCo", "Z-100", "100")}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	id := store.ShiftFacts()[0].ID

	correction := ocrShift(0, "2024-01-01", "NorthCo", "Z-100", "150", batchTime.Add(24*time.Hour))
	summary, err := p.Run(ctx, "run-2", []models.RawRecord{correction})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	shifts := store.ShiftFacts()
	if len(shifts) != 1 || shifts[0].Income != 150 || shifts[0].ID != id {
		t.Errorf("shifts = %+v, want one corrected row with id %d", shifts, id)
	}
	if summary.ShiftFacts != 1 || summary.Unchanged != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_CountsAndReferencesHold(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)

	raws := northCoBatch()
	raws = append(raws,
		shiftRow(4, "2024-01-02", "SouthCo", "9999999", "10"), // unknown zone
		shiftRow(5, "1999-01-01", "SouthCo", "1425", "10"),    // implausible date
		shiftRow(6, "2024-01-02", "SouthCo", "1425", "abc"),   // coerced to 0 with a warning
		shiftRow(7, "2024-13-45", "SouthCo", "1425", "10"),    // unparseable date
	)

	summary, err := p.Run(context.Background(), "run-1", raws)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Accepted+summary.Rejected != summary.TotalRecords || summary.TotalRecords != len(raws) {
		t.Errorf("accepted %d + rejected %d != total %d", summary.Accepted, summary.Rejected, summary.TotalRecords)
	}
	if got := summary.ShiftFacts + summary.OrderFacts + summary.Superseded + summary.Unchanged; got != summary.Accepted {
		t.Errorf("facts+superseded+unchanged = %d, accepted = %d", got, summary.Accepted)
	}
	rejected := 0
	for _, n := range summary.RejectedByReason {
		rejected += n
	}
	if rejected != summary.Rejected {
		t.Errorf("RejectedByReason sums to %d, Rejected = %d", rejected, summary.Rejected)
	}
	if summary.Quarantined != summary.Rejected+summary.Superseded {
		t.Errorf("Quarantined = %d", summary.Quarantined)
	}

	dims, _ := store.LoadDimensions(context.Background())
	exists := map[models.Dimension]map[int64]bool{}
	for _, dim := range models.Dimensions {
		exists[dim] = map[int64]bool{}
	}
	for _, m := range dims.Time {
		exists[models.DimTime][m.Key] = true
	}
	for _, m := range dims.Providers {
		exists[models.DimProvider][m.Key] = true
	}
	for _, m := range dims.Zones {
		exists[models.DimZone][m.Key] = true
	}
	for _, m := range dims.Weather {
		exists[models.DimWeather][m.Key] = true
	}
	for _, f := range store.ShiftFacts() {
		if !exists[models.DimTime][f.TimeKey] || !exists[models.DimProvider][f.ProviderKey] ||
			!exists[models.DimZone][f.ZoneKey] || !exists[models.DimWeather][f.WeatherKey] {
			t.Errorf("fact %s has a dangling reference", f.NaturalKey)
		}
	}
}

func TestRun_StorageFailureLeavesStoreUntouched(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	if _, err := p.Run(ctx, "run-1", []models.RawRecord{shiftRow(0, "2024-01-01", "NorthCo", "Z-100", "100")}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	dimsBefore, _ := store.LoadDimensions(ctx)

	errDisk := errors.New("disk full")
	store.PublishHook = func(stage string) error {
		if stage == load.StageFacts {
			return errDisk
		}
		return nil
	}

	summary, err := p.Run(ctx, "run-2", northCoBatch())
	if !errors.Is(err, errDisk) {
		t.Fatalf("Run() error = %v, want the storage failure", err)
	}
	if summary.Status != models.RunStatusFailed || summary.ErrorMessage == "" {
		t.Errorf("summary = %+v", summary)
	}

	dimsAfter, _ := store.LoadDimensions(ctx)
	if fmt.Sprint(dimsAfter) != fmt.Sprint(dimsBefore) {
		t.Error("dimensions written by a failed run")
	}
	if len(store.ShiftFacts()) != 1 || store.ShiftFacts()[0].Income != 100 {
		t.Errorf("facts changed by a failed run: %+v", store.ShiftFacts())
	}
	if len(store.Quarantine()) != 0 {
		t.Error("quarantine written by a failed run")
	}
}

func TestRun_CancelledBeforePublication(t *testing.T) {
	store := load.NewMemoryLoader()
	p := newTestPipeline(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx, "run-1", northCoBatch())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary.Status != models.RunStatusFailed {
		t.Errorf("Status = %q", summary.Status)
	}
	if len(store.ShiftFacts()) != 0 {
		t.Error("cancelled run published facts")
	}
}
