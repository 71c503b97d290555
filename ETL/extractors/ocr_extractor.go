package extractors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// OCRExtractor reads character-recognition output: field extractions as
// JSON and raw page text
type OCRExtractor struct {
	logger *utils.ETLLogger
}

// NewOCRExtractor creates a new OCRExtractor
func NewOCRExtractor(logger *utils.ETLLogger) *OCRExtractor {
	return &OCRExtractor{logger: logger}
}

// ocrDocument is one field extraction. captured_at, when present, replaces
// the file time as the ingestion time.
type ocrDocument struct {
	Document   string         `json:"document"`
	CapturedAt string         `json:"captured_at"`
	IngestedAt string         `json:"ingested_at"`
	Fields     map[string]any `json:"fields"`
}

// ReadJSON reads a single extraction object or an array of them
func (e *OCRExtractor) ReadJSON(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var docs []ocrDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if bytes.HasPrefix(data, []byte("[")) {
		err = dec.Decode(&docs)
	} else {
		var doc ocrDocument
		err = dec.Decode(&doc)
		docs = []ocrDocument{doc}
	}
	if err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := make([]record, 0, len(docs))
	for i, doc := range docs {
		ingested, err := captureTime(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		container := doc.Document
		if container == "" {
			container = base
		}

		fields := make(map[string]string, len(doc.Fields))
		for name, v := range doc.Fields {
			fields[name] = stringify(v)
		}
		out = append(out, record{
			container:  container,
			locator:    fmt.Sprint(i),
			ingestedAt: ingested,
			fields:     fields,
		})
	}
	return out, nil
}

func captureTime(doc ocrDocument) (time.Time, error) {
	s := doc.CapturedAt
	if s == "" {
		s = doc.IngestedAt
	}
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("captured_at %q: %w", s, err)
	}
	return t, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// ReadText parses raw page text into order field sets. A page without a
// date header yields nothing.
func (e *OCRExtractor) ReadText(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	page := ParseOCRText(string(data), info.ModTime().Year())
	if page.Date.IsZero() {
		e.logger.Warn("ocr page has no date header", "file", filepath.Base(path))
		return nil, nil
	}

	container := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	date := page.Date.Format("02/01/2006")

	out := make([]record, 0, len(page.Orders))
	for _, o := range page.Orders {
		out = append(out, record{
			container: container,
			locator:   fmt.Sprintf("line %d", o.Line),
			fields: map[string]string{
				"tipo":            "pedido",
				"Fecha":           date,
				"Hora_Aceptacion": o.Accepted,
				"Hora_Entrega":    o.Delivered,
				"Nombre_Local":    o.Venue,
				"CP_Local":        page.Zone,
			},
		})
	}
	return out, nil
}
