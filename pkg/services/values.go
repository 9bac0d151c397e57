package services

import (
	"strconv"
	"strings"
	"time"
)

// numericCleaner strips the decorations Korean spreadsheets put on numbers:
// thousands separators, currency marks, surrounding whitespace.
var numericCleaner = strings.NewReplacer(",", "", "₩", "", "원", "", "$", "", " ", "")

// parseNumeric parses a spreadsheet cell as a float after stripping
// separators and currency symbols. Failure means "not a number", not an
// error; callers null the field instead.
func parseNumeric(s string) (float64, bool) {
	cleaned := numericCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseInt64 is parseNumeric truncated to an integer.
func parseInt64(s string) (int64, bool) {
	v, ok := parseNumeric(s)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"20060102",
	"2006년 1월 2일",
}

// parseDate tries the date formats seen in uploaded sheets.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// optionalString returns nil for blank cells so they land as SQL NULL.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalInt64 parses a numeric cell into a nullable column value.
func optionalInt64(s string) *int64 {
	v, ok := parseInt64(s)
	if !ok {
		return nil
	}
	return &v
}
