package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// SourceKind tags where a raw record came from
type SourceKind string

const (
	SourceSpreadsheet SourceKind = "spreadsheet"
	SourceOCR         SourceKind = "ocr"
)

// RawRecord is one extracted row or OCR field set, before normalization
type RawRecord struct {
	Source    SourceKind
	File      string
	Container string // sheet name or OCR document name
	Locator   string // row number or document index inside the file

	// IngestedAt and Seq give a total order across the batch; Seq breaks ties
	IngestedAt time.Time
	Seq        int

	Fields map[string]string
}

// Ref returns a human readable back-reference to the record's origin
func (r RawRecord) Ref() string {
	if r.Container == "" {
		return fmt.Sprintf("%s#%s", r.File, r.Locator)
	}
	return fmt.Sprintf("%s[%s]#%s", r.File, r.Container, r.Locator)
}

// Hash returns a sha256 digest of the source tag and field pairs.
// Field pairs are sorted and length-prefixed so map order never matters.
func (r RawRecord) Hash() string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	writePart := func(s string) {
		fmt.Fprintf(h, "%d:", len(s))
		h.Write([]byte(s))
	}
	writePart(string(r.Source))
	for _, name := range names {
		writePart(name)
		writePart(r.Fields[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}
