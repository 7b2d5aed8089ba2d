package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// excelEpochOffset is the number of days between the spreadsheet epoch (1899-12-30) and the Unix epoch.
const excelEpochOffset = 25569

// maxSerial keeps serials within the years representable by a spreadsheet (9999-12-31).
const maxSerial = 2958465

type (
	// DateParser returns the parsed date and true, or false when it does not recognize the text.
	DateParser func(s string) (time.Time, bool)

	namedParser struct {
		name  string
		parse DateParser
	}

	// DateChain is an ordered list of date parsers: the first success wins.
	DateChain struct {
		parsers []namedParser
	}
)

var (
	looseDateRegex = regexp.MustCompile(`(\d{2,4})\s*[.\-/]\s*(\d{1,2})\s*[.\-/]\s*(\d{1,2})`)

	nativeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		dateLayout,
		"2006/01/02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		time.RFC1123,
		time.RFC1123Z,
	}
)

// DefaultDateChain returns the serial -> native -> loose chain.
func DefaultDateChain() *DateChain {
	return &DateChain{parsers: []namedParser{
		{name: "serial", parse: ParseSerialDate},
		{name: "native", parse: ParseNativeDate},
		{name: "loose", parse: ParseLooseDate},
	}}
}

// Parse runs the chain over s. When no parser succeeds, the result is an explicit unparsed DateInfo holding the
// raw text and now as a placeholder time.
func (c *DateChain) Parse(s string, now time.Time) DateInfo {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, p := range c.parsers {
			if t, ok := p.parse(s); ok {
				return DateInfo{Time: t, Str: t.Format(dateLayout), Valid: true, Parser: p.name}
			}
		}
	}
	return DateInfo{Time: now, Str: s, Valid: false}
}

// ParseSerialDate reads a spreadsheet serial day number (digits only).
func ParseSerialDate(s string) (time.Time, bool) {
	if s == "" || strings.ContainsAny(s, "-./") {
		return time.Time{}, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > maxSerial {
		return time.Time{}, false
	}
	secs := (n - excelEpochOffset) * 86400
	return time.Unix(int64(secs), 0).UTC(), true
}

// ParseNativeDate reads the usual machine date formats; dates up to year 2000 are rejected.
func ParseNativeDate(s string) (time.Time, bool) {
	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > 2000 {
				return t.UTC(), true
			}
			return time.Time{}, false
		}
	}
	return time.Time{}, false
}

// ParseLooseDate finds a year/month/day triple separated by '.', '-' or '/' anywhere in s. Two digit years are
// in the 2000s.
func ParseLooseDate(s string) (time.Time, bool) {
	m := looseDateRegex.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day { // e.g. 02-30
		return time.Time{}, false
	}
	return t, true
}
