package stage

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

var (
	errEmpty       = errors.New("empty value")
	errNotNumeric  = errors.New("not a number")
	errNotDate     = errors.New("not a recognized date")
	errNotTime     = errors.New("not a recognized time")
	errNotBoolean  = errors.New("not a yes/no value")
	errNoYearInDay = errors.New("date has no year")
)

// Excel serial dates count days from 1899-12-30
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02-01-2006",
	"02.01.2006",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02-01-2006 15:04",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04PM",
	"3:04 PM",
	"3:04pm",
	"3:04 pm",
	"15.04",
}

var spanishMonths = map[string]time.Month{
	"ene": time.January, "jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April, "apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August, "aug": time.August,
	"sep": time.September, "set": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December, "dec": time.December,
}

// "3 de ene 2024", "lun, 3 de enero de 2024", "3 ene. 2024"
var textDatePattern = regexp.MustCompile(`(\d{1,2})\s*(?:de\s+)?([a-z]{3})[a-z]*\.?\s*(?:de\s+)?(\d{4})?`)

var (
	serialPattern   = regexp.MustCompile(`^\d+(\.\d+)?$`)
	unitPattern     = regexp.MustCompile(`(?i)US\$|\$|€|\bARS|\bUSD|\bEUR|\bPESOS?\b|°\s*C?|\bKMS?\b|\bMIN\b`)
	amountPattern   = regexp.MustCompile(`^-?\d[\d.,]*$|^-?[.,]\d+$`)
	cpaPattern      = regexp.MustCompile(`^[A-Z](\d{4})[A-Z]{3}$`)
	zoneTokenLoose  = regexp.MustCompile(`^Z\s*-?\s*(\d{1,5})$`)
	embeddedPostal  = regexp.MustCompile(`\b([1-9]\d{3})\b`)
	excelIntPattern = regexp.MustCompile(`^(\d+)\.0+$`)
)

// cleanValue trims whitespace and treats spreadsheet null markers as empty
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "NA", "N/A", "NAN", "NULL", "NONE", "-":
		return ""
	}
	return s
}

// parseAmount reads money, distances and counts written the way operators do:
// "$ 1.234,50", "1,234.50", "ARS 500", "12,5", "8°C".
// With one separator followed by exactly three digits it is a thousands separator.
func parseAmount(s string) (float64, error) {
	s = cleanValue(s)
	if s == "" {
		return 0, errEmpty
	}

	digits := unitPattern.ReplaceAllString(s, "")
	digits = strings.Join(strings.Fields(digits), "")
	if !amountPattern.MatchString(digits) {
		return 0, fmt.Errorf("%w: %q", errNotNumeric, s)
	}
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	lastDot := strings.LastIndex(digits, ".")
	lastComma := strings.LastIndex(digits, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			digits = strings.ReplaceAll(digits, ".", "")
			digits = strings.Replace(digits, ",", ".", 1)
		} else {
			digits = strings.ReplaceAll(digits, ",", "")
		}
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		if strings.Count(digits, sep) > 1 || isThousandsGroup(digits, sep) {
			digits = strings.ReplaceAll(digits, sep, "")
		} else {
			digits = strings.Replace(digits, sep, ".", 1)
		}
	}

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errNotNumeric, s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func isThousandsGroup(digits, sep string) bool {
	head, tail, _ := strings.Cut(digits, sep)
	return len(tail) == 3 && len(head) >= 1 && len(head) <= 3 && strings.TrimLeft(head, "0") != ""
}

// parseCount reads a whole number, rounding spreadsheet floats
func parseCount(s string) (int, error) {
	v, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// parseDate reads a calendar date in any accepted layout, a date-time, an
// Excel serial number (spreadsheets only) or Spanish month text
func parseDate(s string, allowSerial bool) (time.Time, error) {
	s = cleanValue(s)
	if s == "" {
		return time.Time{}, errEmpty
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}
	if allowSerial && serialPattern.MatchString(s) {
		if t, ok := fromExcelSerial(s); ok {
			return truncateDay(t), nil
		}
	}
	if m := textDatePattern.FindStringSubmatch(models.FoldName(s)); m != nil {
		month, ok := spanishMonths[m[2]]
		if ok {
			if m[3] == "" {
				return time.Time{}, fmt.Errorf("%w: %q", errNoYearInDay, s)
			}
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if t.Day() == day {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errNotDate, s)
}

// parseTimeOn reads a time bound. Full date-times stand on their own; bare
// clock times and Excel day fractions are placed on day. clockOnly reports
// the latter.
func parseTimeOn(s string, day time.Time, allowSerial bool) (t time.Time, clockOnly bool, err error) {
	s = cleanValue(s)
	if s == "" {
		return time.Time{}, false, errEmpty
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, nil
		}
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return atClock(day, c.Hour(), c.Minute(), c.Second()), true, nil
		}
	}
	if allowSerial && serialPattern.MatchString(s) {
		v, _ := strconv.ParseFloat(s, 64)
		if v < 1 {
			secs := int(math.Round(v * 86400))
			return day.Add(time.Duration(secs) * time.Second), true, nil
		}
		if t, ok := fromExcelSerial(s); ok {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", errNotTime, s)
}

func atClock(day time.Time, hour, minute, second int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, time.UTC)
}

func fromExcelSerial(s string) (time.Time, bool) {
	v, err := strconv.ParseFloat(s, 64)
	// 20000 is 1954; anything smaller is a plain number, not a date
	if err != nil || v < 20000 || v > 2958465 {
		return time.Time{}, false
	}
	days := math.Floor(v)
	secs := math.Round((v - days) * 86400)
	return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseBool reads si/no, yes/no, true/false, 1/0
func parseBool(s string) (bool, error) {
	switch models.FoldName(s) {
	case "si", "s", "yes", "y", "true", "1", "verdadero", "x":
		return true, nil
	case "no", "n", "false", "0", "falso":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", errNotBoolean, s)
}

// normalizeIdentifier turns spreadsheet floats like "12.0" into "12"
func normalizeIdentifier(s string) string {
	s = cleanValue(s)
	if m := excelIntPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// normalizeZoneText uppercases a zone description and extracts a code from
// the usual spellings: CPA "C1425ABC" -> "1425", "z100" -> "Z-100",
// "Palermo (1425)" -> "1425", "1425.0" -> "1425"
func normalizeZoneText(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(cleanValue(s)), " "))
	if s == "" {
		return ""
	}
	if m := excelIntPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	compact := strings.ReplaceAll(s, " ", "")
	if m := cpaPattern.FindStringSubmatch(compact); m != nil {
		return m[1]
	}
	if m := zoneTokenLoose.FindStringSubmatch(s); m != nil {
		return "Z-" + m[1]
	}
	if m := embeddedPostal.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
