package stage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// ErrNormalization is wrapped by every NormalizationError
var ErrNormalization = errors.New("normalization error")

// NormalizationError reports a raw record that could not be turned into a
// canonical record
type NormalizationError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *NormalizationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return ErrNormalization
}

// Normalizer converts raw records to canonical records
type Normalizer struct {
	spreadsheet aliasIndex
	ocr         aliasIndex
	zones       *ZoneCatalog
}

// NewNormalizer builds a normalizer from the two per-source alias tables
func NewNormalizer(spreadsheet, ocr AliasTable, zones *ZoneCatalog) *Normalizer {
	return &Normalizer{
		spreadsheet: spreadsheet.index(),
		ocr:         ocr.index(),
		zones:       zones,
	}
}

// Normalize maps a raw record onto the canonical shape. Warnings describe
// spreadsheet values that were replaced by a default rather than rejected.
func (n *Normalizer) Normalize(raw models.RawRecord) (*models.CanonicalRecord, []string, error) {
	idx := n.spreadsheet
	lowConfidence := raw.Source == models.SourceOCR
	if lowConfidence {
		idx = n.ocr
	}

	fields := idx.resolve(raw.Fields)
	for _, f := range mandatoryFields {
		if !fields.has(f) {
			return nil, nil, &NormalizationError{Field: f, Reason: "no field matches any known name"}
		}
	}

	c := &coercer{fields: fields, lowConfidence: lowConfidence}
	rec := &models.CanonicalRecord{
		Kind:       detectKind(raw, fields),
		Source:     raw.Source,
		RawRef:     raw.Ref(),
		IngestedAt: raw.IngestedAt,
		Seq:        raw.Seq,
	}

	rec.Provider = strings.Join(strings.Fields(fields.get(FieldProvider)), " ")
	if z := fields.get(FieldZone); z != "" {
		rec.Zone = n.zones.Normalize(z)
	}
	if z := fields.get(FieldCustomerZone); z != "" {
		rec.CustomerZone = n.zones.Normalize(z)
	}

	if v := fields.get(FieldDate); v != "" {
		date, err := parseDate(v, !lowConfidence)
		if err != nil {
			return nil, nil, &NormalizationError{Field: FieldDate, Value: v, Reason: err.Error()}
		}
		rec.Date = date
	}

	if err := n.normalizeWindow(rec, fields, !lowConfidence); err != nil {
		return nil, nil, err
	}

	if rec.Kind == models.KindOrder {
		rec.SourceID = normalizeIdentifier(fields.get(FieldOrderID))
	}
	if rec.SourceID == "" {
		rec.SourceID = normalizeIdentifier(fields.get(FieldShiftID))
	}

	if err := c.measures(rec); err != nil {
		return nil, nil, err
	}

	temp, err := c.optionalAmount(FieldTemperature)
	if err != nil {
		return nil, nil, err
	}
	if desc, ok := models.ClassifyWeather(fields.get(FieldWeather), temp); ok {
		rec.Weather = desc.Key()
	}

	rec.BusinessType = titleWords(fields.get(FieldBusinessType))
	if v := fields.get(FieldChain); v != "" {
		chain, err := parseBool(v)
		if err != nil {
			c.warn(FieldChain, v, err)
		} else {
			rec.IsChain = &chain
		}
	}
	rec.SpecialEvent = fields.get(FieldSpecialEvent)
	if v := fields.get(FieldWeeklyGroup); v != "" {
		group, err := parseCount(v)
		if err != nil {
			if lowConfidence {
				return nil, nil, &NormalizationError{Field: FieldWeeklyGroup, Value: v, Reason: err.Error()}
			}
			c.warn(FieldWeeklyGroup, v, err)
		}
		rec.WeeklyGroup = group
	}

	rec.Ref = models.SourceRef{
		Zone:     rec.Zone,
		Date:     rec.DateKey(),
		Provider: rec.Provider,
		RawHash:  raw.Hash(),
	}
	return rec, c.warnings, nil
}

// normalizeWindow reads the start/end bounds. Bare clock times that end
// before they start roll over midnight; full date-times are kept as given.
func (n *Normalizer) normalizeWindow(rec *models.CanonicalRecord, fields resolvedFields, allowSerial bool) error {
	var startClock, endClock bool
	if v := fields.get(FieldStart); v != "" {
		t, clock, err := parseTimeOn(v, rec.Date, allowSerial)
		if err != nil {
			return &NormalizationError{Field: FieldStart, Value: v, Reason: err.Error()}
		}
		rec.Start, startClock = t, clock
	}
	if v := fields.get(FieldEnd); v != "" {
		t, clock, err := parseTimeOn(v, rec.Date, allowSerial)
		if err != nil {
			return &NormalizationError{Field: FieldEnd, Value: v, Reason: err.Error()}
		}
		rec.End, endClock = t, clock
	}
	if startClock && endClock && rec.End.Before(rec.Start) {
		rec.End = rec.End.Add(24 * time.Hour)
	}
	return nil
}

func detectKind(raw models.RawRecord, fields resolvedFields) models.RecordKind {
	switch models.FoldName(fields.get(FieldKind)) {
	case "pedido", "pedidos", "order", "orders":
		return models.KindOrder
	case "turno", "turnos", "shift", "shifts":
		return models.KindShift
	}
	switch models.FoldName(raw.Container) {
	case "pedidos", "orders":
		return models.KindOrder
	case "turnos", "shifts":
		return models.KindShift
	}
	if fields.get(FieldOrderID) != "" {
		return models.KindOrder
	}
	return models.KindShift
}

func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// coercer applies the per-source failure policy to numeric fields
type coercer struct {
	fields        resolvedFields
	lowConfidence bool
	warnings      []string
}

func (c *coercer) warn(f Field, value string, err error) {
	c.warnings = append(c.warnings, fmt.Sprintf("%s %q replaced by default: %v", f, value, err))
}

// amount returns 0 for an empty field. A value that does not parse is a
// NormalizationError for OCR and a warning plus 0 for spreadsheets.
func (c *coercer) amount(f Field) (float64, bool, error) {
	v := c.fields.get(f)
	if v == "" {
		return 0, false, nil
	}
	x, err := parseAmount(v)
	if err != nil {
		if c.lowConfidence {
			return 0, false, &NormalizationError{Field: f, Value: v, Reason: err.Error()}
		}
		c.warn(f, v, err)
		return 0, true, nil
	}
	return x, true, nil
}

func (c *coercer) optionalAmount(f Field) (*float64, error) {
	x, ok, err := c.amount(f)
	if err != nil || !ok || c.fields.get(f) == "" {
		return nil, err
	}
	return &x, nil
}

func (c *coercer) measures(rec *models.CanonicalRecord) error {
	m := &rec.Measures

	income, hasIncome, err := c.amount(FieldIncome)
	if err != nil {
		return err
	}
	if !hasIncome {
		for _, f := range incomeComponents {
			part, _, err := c.amount(f)
			if err != nil {
				return err
			}
			income += part
		}
	}
	m.Income = income

	tips, hasTips, err := c.amount(FieldTips)
	if err != nil {
		return err
	}
	if !hasTips {
		if tips, _, err = c.amount(FieldIncomeTips); err != nil {
			return err
		}
	}
	m.Tips = tips

	if m.DistanceKm, _, err = c.amount(FieldDistanceKm); err != nil {
		return err
	}

	count, hasCount, err := c.amount(FieldOrderCount)
	if err != nil {
		return err
	}
	switch {
	case hasCount:
		m.OrderCount = int(math.Round(count))
	case rec.Kind == models.KindOrder:
		m.OrderCount = 1
	}

	duration, hasDuration, err := c.amount(FieldDuration)
	if err != nil {
		return err
	}
	if !hasDuration && !rec.Start.IsZero() && !rec.End.IsZero() {
		duration = rec.End.Sub(rec.Start).Minutes()
	}
	m.DurationMinutes = duration
	return nil
}
