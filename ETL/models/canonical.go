package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RecordKind decides which fact table a record feeds
type RecordKind string

const (
	KindShift RecordKind = "shift"
	KindOrder RecordKind = "order"
)

// Measures holds the numeric facts carried by a record
type Measures struct {
	Income          float64
	Tips            float64
	DistanceKm      float64
	OrderCount      int
	DurationMinutes float64
}

// SourceRef points back at the raw record a canonical record came from.
// It is a traceability handle only.
type SourceRef struct {
	Zone     string
	Date     string
	Provider string
	RawHash  string
}

// CanonicalRecord is the typed, source-independent form of a raw record
type CanonicalRecord struct {
	Kind     RecordKind
	SourceID string
	Source   SourceKind
	RawRef   string

	Provider     string
	BusinessType string
	IsChain      *bool

	Zone         string
	CustomerZone string

	Date  time.Time
	Start time.Time
	End   time.Time

	Measures     Measures
	Weather      string
	SpecialEvent string
	WeeklyGroup  int

	IngestedAt time.Time
	Seq        int
	Ref        SourceRef
}

// IngestedBefore orders records by ingestion time, then by position within the batch
func (r *CanonicalRecord) IngestedBefore(other *CanonicalRecord) bool {
	if !r.IngestedAt.Equal(other.IngestedAt) {
		return r.IngestedAt.Before(other.IngestedAt)
	}
	return r.Seq < other.Seq
}

// DateKey returns the calendar date as YYYY-MM-DD, or "" when unset
func (r *CanonicalRecord) DateKey() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("2006-01-02")
}

// Window returns "HH:MM-HH:MM" when both time bounds are known
func (r *CanonicalRecord) Window() string {
	if r.Start.IsZero() || r.End.IsZero() {
		return ""
	}
	return r.Start.Format("15:04") + "-" + r.End.Format("15:04")
}

// NaturalKey identifies the real-world event: kind, provider, zone, date and time window
func (r *CanonicalRecord) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", r.Kind, FoldName(r.Provider), r.Zone, r.DateKey(), r.Window())
}

// Fingerprint digests everything a fact row is built from, so an unchanged
// re-submission can be told apart from a correction.
func (r *CanonicalRecord) Fingerprint() string {
	chain := "-"
	if r.IsChain != nil {
		chain = fmt.Sprintf("%t", *r.IsChain)
	}
	s := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%.4f|%.4f|%.4f|%d|%.4f|%s|%s|%d|%s",
		r.NaturalKey(), r.SourceID, r.CustomerZone,
		formatTime(r.Start), formatTime(r.End), r.BusinessType,
		r.Measures.Income, r.Measures.Tips, r.Measures.DistanceKm,
		r.Measures.OrderCount, r.Measures.DurationMinutes,
		r.Weather, r.SpecialEvent, r.WeeklyGroup, chain)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// RejectReason names why a record was kept out of the model
type RejectReason string

const (
	ReasonMissingField        RejectReason = "MissingField"
	ReasonImplausibleDate     RejectReason = "ImplausibleDate"
	ReasonOutOfRange          RejectReason = "OutOfRange"
	ReasonUnknownZone         RejectReason = "UnknownZone"
	ReasonNormalizationError  RejectReason = "NormalizationError"
	ReasonDuplicateSuperseded RejectReason = "DuplicateSuperseded"
)

// Verdict is the outcome of the validation gate for one record
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Detail   string
}

// ValidatedRecord pairs a record with its verdict.
// Record is nil when normalization itself failed.
type ValidatedRecord struct {
	Raw     RawRecord
	Record  *CanonicalRecord
	Verdict Verdict
}

// SupersededRecord documents a duplicate that lost to a later submission
type SupersededRecord struct {
	NaturalKey string
	Winner     *CanonicalRecord
	Loser      *CanonicalRecord
}

// QuarantineEntry is one row of the audit log of records kept out of the model
type QuarantineEntry struct {
	RunID      string
	RawRef     string
	RawHash    string
	Source     SourceKind
	Reason     RejectReason
	Detail     string
	Payload    []byte // snappy-compressed JSON of the raw fields
	RecordedAt time.Time
}
