package extractors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// ErrUnreadableSource means a batch file could not be opened or parsed.
// It fails the whole run: a half-read batch would publish a partial picture.
var ErrUnreadableSource = errors.New("unreadable source")

// record is one extracted field set before batch-wide ordering is applied
type record struct {
	container  string
	locator    string
	ingestedAt time.Time // zero means the file's modification time
	fields     map[string]string
}

// reader turns one file into records
type reader func(path string) ([]record, error)

// Extractor reads a batch directory into raw records
type Extractor struct {
	logger  *utils.ETLLogger
	readers map[string]sourceReader
}

type sourceReader struct {
	source models.SourceKind
	read   reader
}

// NewExtractor creates a new Extractor with the spreadsheet and OCR readers
func NewExtractor(logger *utils.ETLLogger) *Extractor {
	spreadsheets := NewSpreadsheetExtractor(logger)
	ocr := NewOCRExtractor(logger)

	return &Extractor{
		logger: logger,
		readers: map[string]sourceReader{
			".xlsx": {models.SourceSpreadsheet, spreadsheets.ReadXLSX},
			".csv":  {models.SourceSpreadsheet, spreadsheets.ReadCSV},
			".json": {models.SourceOCR, ocr.ReadJSON},
			".txt":  {models.SourceOCR, ocr.ReadText},
		},
	}
}

type batchFile struct {
	path    string
	name    string
	modTime time.Time
}

// Extract reads every supported file in dir. Files are taken in modification
// time order, then by name; rows keep their order inside a file. The position
// in that order is the record's ingestion sequence.
func (e *Extractor) Extract(ctx context.Context, dir string) ([]models.RawRecord, error) {
	startTime := time.Now()
	e.logger.LogStageStart("extract")

	files, err := e.listBatch(dir)
	if err != nil {
		return nil, err
	}

	var raws []models.RawRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}

		src := e.readers[strings.ToLower(filepath.Ext(f.name))]
		records, err := src.read(f.path)
		if err != nil {
			e.logger.Error("source unreadable", "file", f.name, "error", err)
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableSource, f.name, err)
		}

		for _, r := range records {
			ingested := r.ingestedAt
			if ingested.IsZero() {
				ingested = f.modTime
			}
			raws = append(raws, models.RawRecord{
				Source:     src.source,
				File:       f.name,
				Container:  r.container,
				Locator:    r.locator,
				IngestedAt: ingested.UTC(),
				Seq:        len(raws),
				Fields:     r.fields,
			})
		}
		e.logger.Debug("file extracted", "file", f.name, "records", len(records))
	}

	e.logger.LogStageComplete("extract", startTime, len(raws))
	return raws, nil
}

func (e *Extractor) listBatch(dir string) ([]batchFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: batch directory: %w", ErrUnreadableSource, err)
	}

	var files []batchFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if _, ok := e.readers[strings.ToLower(filepath.Ext(name))]; !ok {
			e.logger.Debug("skipping unsupported file", "file", name)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableSource, name, err)
		}
		files = append(files, batchFile{
			path:    filepath.Join(dir, name),
			name:    name,
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].name < files[j].name
	})
	return files, nil
}
