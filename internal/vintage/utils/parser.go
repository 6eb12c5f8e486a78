package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Date layouts seen in vintage exports, tried in order.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate returns false for blank or unparseable values instead of failing the row.
func ParseDate(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" || isNaN(dateStr) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses a non-negative monetary value. Accepted forms are "1234.56",
// "1.234,56" (comma decimal, dot thousands) and "1.234.567" (dot thousands, no decimals).
// A single dot without a comma is always a decimal point, so "1.234" is 1.234.
func ParseAmount(valStr string) (float64, bool) {
	valStr = strings.TrimSpace(valStr)
	if valStr == "" || isNaN(valStr) {
		return 0, false
	}
	cleanStr := valStr
	switch {
	case strings.Contains(cleanStr, ","):
		// Remove thousands separator (.) and replace decimal separator (,) with (.)
		cleanStr = strings.ReplaceAll(cleanStr, ".", "")
		cleanStr = strings.ReplaceAll(cleanStr, ",", ".")
	case strings.Count(cleanStr, ".") > 1:
		cleanStr = strings.ReplaceAll(cleanStr, ".", "")
	}
	val, err := strconv.ParseFloat(cleanStr, 64)
	if err != nil || val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	return val, true
}

// ParseDays parses a non-negative day count. Spreadsheet exports often write integers
// as "45.0", so whole floats are accepted.
func ParseDays(valStr string) (int, bool) {
	valStr = strings.TrimSpace(valStr)
	if valStr == "" || isNaN(valStr) {
		return 0, false
	}
	if val, err := strconv.Atoi(valStr); err == nil {
		return val, val >= 0
	}
	f, err := strconv.ParseFloat(valStr, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func isNaN(s string) bool {
	return strings.EqualFold(s, "nan") || s == "NA" || s == "<nil>"
}
