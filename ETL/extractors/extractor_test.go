package extractors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

func writeFile(t *testing.T, dir, name, content string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestExtract_OrdersFilesAndAssignsSequence(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, dir, "b.csv", "\ufeffFecha;Nombre_Local;CP_Local\n01/03/2024;NorthCo;1425\n;;\n02/03/2024;Sur;1426\n", base)
	writeFile(t, dir, "a.json", `[{"document":"scan-7","captured_at":"2024-03-05T10:00:00Z",
		"fields":{"Nombre_Local":"NorthCo","ingreso":1500.5,"pedidos":12,"cadena":true}}]`, base.Add(time.Hour))
	writeFile(t, dir, "notes.pdf", "ignored", base)
	writeFile(t, dir, "~$lock.csv", "ignored", base)
	writeFile(t, dir, ".hidden.csv", "ignored", base)

	raws, err := NewExtractor(utils.NopLogger()).Extract(context.Background(), dir)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("got %d records, want 3", len(raws))
	}

	for i, r := range raws {
		if r.Seq != i {
			t.Errorf("raws[%d].Seq = %d", i, r.Seq)
		}
	}

	first := raws[0]
	if first.File != "b.csv" || first.Source != models.SourceSpreadsheet || first.Locator != "2" {
		t.Errorf("first record = %s/%s/%s", first.File, first.Source, first.Locator)
	}
	if first.Fields["Nombre_Local"] != "NorthCo" || first.Fields["CP_Local"] != "1425" {
		t.Errorf("first record fields = %v", first.Fields)
	}
	if !first.IngestedAt.Equal(base) {
		t.Errorf("first IngestedAt = %v, want file time %v", first.IngestedAt, base)
	}
	if raws[1].Locator != "4" {
		t.Errorf("blank row shifted locator: got %q, want 4", raws[1].Locator)
	}

	ocr := raws[2]
	if ocr.File != "a.json" || ocr.Source != models.SourceOCR || ocr.Container != "scan-7" {
		t.Errorf("ocr record = %s/%s/%s", ocr.File, ocr.Source, ocr.Container)
	}
	if want := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC); !ocr.IngestedAt.Equal(want) {
		t.Errorf("ocr IngestedAt = %v, want captured_at %v", ocr.IngestedAt, want)
	}
	if ocr.Fields["ingreso"] != "1500.5" || ocr.Fields["pedidos"] != "12" || ocr.Fields["cadena"] != "true" {
		t.Errorf("ocr fields = %v", ocr.Fields)
	}
}

func TestExtract_NameBreaksModTimeTies(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, dir, "z.csv", "Nombre_Local\nZeta\n", mod)
	writeFile(t, dir, "m.csv", "Nombre_Local\nEme\n", mod)

	raws, err := NewExtractor(utils.NopLogger()).Extract(context.Background(), dir)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(raws) != 2 || raws[0].File != "m.csv" || raws[1].File != "z.csv" {
		t.Errorf("files out of order: %+v", raws)
	}
}

func TestExtract_UnreadableFileFailsBatch(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "good.csv", "Nombre_Local\nNorthCo\n", now)
	writeFile(t, dir, "broken.json", `{"fields": {`, now)

	_, err := NewExtractor(utils.NopLogger()).Extract(context.Background(), dir)
	if !errors.Is(err, ErrUnreadableSource) {
		t.Errorf("Extract() error = %v, want ErrUnreadableSource", err)
	}
}

func TestExtract_MissingDirectory(t *testing.T) {
	_, err := NewExtractor(utils.NopLogger()).Extract(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrUnreadableSource) {
		t.Errorf("Extract() error = %v, want ErrUnreadableSource", err)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "Nombre_Local\nNorthCo\n", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor(utils.NopLogger()).Extract(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestReadXLSX_AllSheetsRawValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnos.xlsx")

	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"Fecha", "Nombre_Local", "ingreso_total"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{45352, "NorthCo", 1200}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Marzo"); err != nil {
		t.Fatal(err)
	}
	// header below a blank first row
	if err := f.SetSheetRow("Marzo", "A2", &[]any{"Fecha", "Nombre_Local"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Marzo", "A3", &[]any{"02/03/2024", "Sur"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	records, err := NewSpreadsheetExtractor(utils.NopLogger()).ReadXLSX(path)
	if err != nil {
		t.Fatalf("ReadXLSX() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if r := records[0]; r.container != "Sheet1" || r.locator != "2" || r.fields["Fecha"] != "45352" || r.fields["ingreso_total"] != "1200" {
		t.Errorf("Sheet1 record = %+v", r)
	}
	if r := records[1]; r.container != "Marzo" || r.locator != "3" || r.fields["Nombre_Local"] != "Sur" {
		t.Errorf("Marzo record = %+v", r)
	}
}

func TestRowsToRecords_ShortRowsAndDuplicateHeaders(t *testing.T) {
	rows := [][]string{
		{"", ""},
		{"Fecha", "Fecha", "Nombre_Local", ""},
		{"01/03/2024", "ignored", "NorthCo", "stray"},
		{"02/03/2024"},
	}
	got := rowsToRecords("S", rows)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].fields["Fecha"] != "01/03/2024" || len(got[0].fields) != 2 {
		t.Errorf("record 0 fields = %v", got[0].fields)
	}
	if v, ok := got[1].fields["Nombre_Local"]; !ok || v != "" {
		t.Errorf("short row should carry empty Nombre_Local, got %q, %v", v, ok)
	}
}

func TestDetectDelimiter(t *testing.T) {
	if detectDelimiter("a;b;c\n1,5;2;3") != ';' {
		t.Error("semicolon header not detected")
	}
	if detectDelimiter("a,b\n1;2") != ',' {
		t.Error("comma header not detected")
	}
}
