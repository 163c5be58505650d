package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day layout used for display and export.
const DateLayout = "2006-01-02"

var (
	numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	numericNoise   = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")
)

// TwoDigitYearPivot is how many years past the current one a two-digit year
// may land before it is read as last century.
var TwoDigitYearPivot = 20

// Layouts with a four-digit year are unambiguous and tried first.
var (
	fullYearLayouts = []string{
		time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		DateLayout, "2006/01/02", "2006.01.02", "20060102",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
	shortYearLayouts = []string{"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06"}
)

// ParseDate reads a cell as a date. Month-first layouts win over day-first
// ones for ambiguous input.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fullYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	latest := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range shortYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > latest {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumeric reads a cell as a number, tolerating currency symbols,
// thousands separators and accounting negatives such as "(1,200.50)".
func ParseNumeric(s string) (float64, bool) {
	s = CleanCell(s)
	negative := len(s) > 1 && s[0] == '(' && s[len(s)-1] == ')'
	if negative {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(numericNoise.Replace(s))
	if !numericPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0 and the on/off of
// HTML checkboxes.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(CleanCell(s)) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// CoerceCell converts raw text to the cell value for a column kind.
// Empty input yields nil. Date and numeric text that fails to parse is kept
// as a string so no data is lost; the predicate composer rejects it for
// date-range filters.
func CoerceCell(kind FieldType, raw string) any {
	s := CleanCell(raw)
	if s == "" {
		return nil
	}
	switch kind {
	case FieldDate:
		if t, ok := ParseDate(s); ok {
			return t
		}
	case FieldNumeric:
		if f, ok := ParseNumeric(s); ok {
			return f
		}
	}
	return s
}

// CleanCell trims whitespace, spreadsheet formula prefixes like ="007" and
// surrounding quotes from a raw cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")
	return strings.Trim(s, `"'`)
}

// Stringify renders a cell value as text for matching, display and export.
// Dates at midnight UTC render as a calendar day; nil renders as "".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if isCalendarDay(val) {
			return val.Format(DateLayout)
		}
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return Stringify(*val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func isCalendarDay(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// AsDate extracts a calendar date from a cell value. Strings are parsed with
// the supported layouts; anything else reports false.
func AsDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case string:
		return ParseDate(val)
	default:
		return time.Time{}, false
	}
}

// truncateDay drops the time of day, keeping the date as observed in t's location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
