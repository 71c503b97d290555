package extractors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// OCRTextOrder is one order recovered from the text of a delivery-app order list
type OCRTextOrder struct {
	Line      int // 1-based line of the time window
	Accepted  string
	Delivered string
	Venue     string
}

// OCRTextPage is what a screenshot's text yields
type OCRTextPage struct {
	Date   time.Time // zero when the page has no date header
	Zone   string
	Orders []OCRTextOrder
}

var (
	ocrDateHeader = regexp.MustCompile(`(?i)(\p{L}{3}),\s*(\d{1,2})\s*de\s*(\p{L}{3})`)
	ocrYear       = regexp.MustCompile(`\b20\d{2}\b`)
	ocrWindow     = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})`)
	ocrZoneHeader = regexp.MustCompile(`(?i)^(?:cp|c\.p\.|zona|zone|c[oó]digo postal)(?:\s*[:\-]\s*|\s+)(\S.*)$`)

	ocrLongID       = regexp.MustCompile(`^\d{7,}$`)
	ocrWeekDigits   = regexp.MustCompile(`\d{2}`)
	ocrDayLabel     = regexp.MustCompile(`^\p{L}{3}, \d+`)
	ocrLeadingJunk  = regexp.MustCompile(`^[^\p{L}\p{N}]+`)
	ocrTrailingJunk = regexp.MustCompile(`[^\p{L}\p{N}\s()]+$`)
)

var ocrMonths = map[string]time.Month{
	"ene": time.January, "feb": time.February, "mar": time.March, "abr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "ago": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dic": time.December,
}

// app chrome that is never part of a venue name
var ocrChromeWords = []string{
	"pedido agrupado", "completado", "cancelado", "ver detalles",
	"horas conectado", "promedio", "ars",
}

// ParseOCRText reads the text of an order-list screenshot: a "vie, 5 de dic"
// header dates the page, every "HH:MM - HH:MM" line is an order and the
// venue name sits on the line above, sometimes wrapped over two lines.
// fallbackYear is used when the page shows no year.
func ParseOCRText(text string, fallbackYear int) OCRTextPage {
	var (
		page  OCRTextPage
		lines []string
		lineN []int
	)
	for i, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
			lineN = append(lineN, i+1)
		}
	}

	var (
		day   int
		month time.Month
		year  int
	)
	for _, l := range lines {
		if day == 0 {
			if m := ocrDateHeader.FindStringSubmatch(l); m != nil {
				if mon, ok := ocrMonths[monthPrefix(m[3])]; ok {
					day, _ = strconv.Atoi(m[2])
					month = mon
					// the year, when shown, sits on the header line only
					if y := ocrYear.FindString(l); y != "" {
						year, _ = strconv.Atoi(y)
					}
				}
			}
		}
		if page.Zone == "" {
			if m := ocrZoneHeader.FindStringSubmatch(l); m != nil {
				page.Zone = strings.TrimSpace(m[1])
			}
		}
	}
	if day == 0 {
		return page
	}
	if year == 0 {
		year = fallbackYear
	}
	page.Date = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if page.Date.Day() != day {
		// "31 de feb" rolled into the next month
		page.Date = time.Time{}
		return page
	}

	for i, l := range lines {
		m := ocrWindow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		accepted, ok1 := clock(m[1], m[2])
		delivered, ok2 := clock(m[3], m[4])
		if !ok1 || !ok2 {
			continue
		}

		venue := "Desconocido"
		if i > 0 {
			venue = lines[i-1]
			if i > 1 && !isChromeLine(lines[i-2]) {
				venue = lines[i-2] + " " + venue
			}
		}
		venue = ocrLeadingJunk.ReplaceAllString(venue, "")
		venue = strings.TrimSpace(ocrTrailingJunk.ReplaceAllString(venue, ""))

		page.Orders = append(page.Orders, OCRTextOrder{
			Line:      lineN[i],
			Accepted:  accepted,
			Delivered: delivered,
			Venue:     venue,
		})
	}
	return page
}

func monthPrefix(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func clock(hour, minute string) (string, bool) {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	if h > 23 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

// isChromeLine reports whether a line is app metadata rather than part of a venue name
func isChromeLine(line string) bool {
	t := strings.ToLower(strings.TrimSpace(line))
	if ocrLongID.MatchString(t) || ocrDayLabel.MatchString(t) || ocrZoneHeader.MatchString(t) {
		return true
	}
	if strings.Contains(t, "semana") && ocrWeekDigits.MatchString(t) {
		return true
	}
	if ocrWindow.MatchString(t) {
		return true
	}
	for _, w := range ocrChromeWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
