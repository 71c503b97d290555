package stage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

func TestStager_PreservesOrderAndCounts(t *testing.T) {
	stager := NewStager(testNormalizer(t), testGate(t), 3, utils.NopLogger())

	var raws []models.RawRecord
	for i := 0; i < 20; i++ {
		fields := map[string]string{
			"Fecha":         fmt.Sprintf("2024-01-%02d", i%28+1),
			"Nombre_Local":  "NorthCo",
			"CP_Local":      "Z-100",
			"ingreso_total": fmt.Sprint(100 * i),
		}
		switch i % 5 {
		case 1:
			fields["CP_Local"] = ""
		case 2:
			delete(fields, "Nombre_Local")
		case 3:
			fields["ingreso_total"] = "-1"
		}
		row := spreadsheetRow(fields)
		row.Locator = fmt.Sprint(i)
		row.Seq = i
		raws = append(raws, row)
	}

	result, err := stager.Stage(context.Background(), raws)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	if len(result.Validated) != len(raws) {
		t.Fatalf("Validated = %d, want %d", len(result.Validated), len(raws))
	}
	if len(result.Accepted)+len(result.Rejected) != len(raws) {
		t.Errorf("accepted %d + rejected %d != %d", len(result.Accepted), len(result.Rejected), len(raws))
	}
	for i, v := range result.Validated {
		if v.Raw.Seq != i {
			t.Fatalf("Validated[%d] holds seq %d; order not preserved", i, v.Raw.Seq)
		}
	}

	reasons := map[models.RejectReason]int{}
	for _, v := range result.Rejected {
		reasons[v.Verdict.Reason]++
	}
	if reasons[models.ReasonMissingField] != 4 {
		t.Errorf("MissingField = %d, want 4", reasons[models.ReasonMissingField])
	}
	if reasons[models.ReasonNormalizationError] != 4 {
		t.Errorf("NormalizationError = %d, want 4", reasons[models.ReasonNormalizationError])
	}
	if reasons[models.ReasonOutOfRange] != 4 {
		t.Errorf("OutOfRange = %d, want 4", reasons[models.ReasonOutOfRange])
	}
	for _, v := range result.Rejected {
		if v.Verdict.Reason == models.ReasonNormalizationError && v.Record != nil {
			t.Error("normalization failure carries a record")
		}
	}
}

func TestStager_Cancelled(t *testing.T) {
	stager := NewStager(testNormalizer(t), testGate(t), 2, utils.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stager.Stage(ctx, []models.RawRecord{spreadsheetRow(map[string]string{"Fecha": "2024-01-01"})})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stage() error = %v, want context.Canceled", err)
	}
}
