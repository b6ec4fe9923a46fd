package common

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DateLayouts are tried first, in order. Statement dates are day-first.
var DateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan '06",
	"2/1/06",
	"2-Jan-2006",
	"2-Jan-06",
	"1/2/06",
}

// DateTimeLayouts cover spreadsheet cells that carry a time part.
var DateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

const isoDate = "2006-01-02"

var currencyMarkers = strings.NewReplacer(
	",", "",
	"₹", "",
	"$", "",
	"INR", "",
	"CR", "",
	"DR", "",
	"+", "",
)

// CleanAmount strips thousands separators and whitespace and parses the rest.
// ok is false for blank or non-numeric input.
func CleanAmount(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		log.Debug().Str("value", text).Msg("unparseable amount")
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseMoney is the lenient variant used on raw statement cells: currency
// symbols and CR/DR markers are dropped before parsing. The sign is kept.
func ParseMoney(text string) (float64, bool) {
	return CleanAmount(currencyMarkers.Replace(strings.TrimSpace(text)))
}

// ParseDate tries every known layout and returns the first match as a UTC date.
func ParseDate(text string) (time.Time, bool) {
	value := strings.TrimSpace(strings.ReplaceAll(text, "’", "'"))
	if value == "" {
		return time.Time{}, false
	}
	for _, layouts := range [][]string{DateLayouts, DateTimeLayouts} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, value); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	log.Debug().Str("value", text).Msg("unparseable date")
	return time.Time{}, false
}

// NormalizeDate returns the date as YYYY-MM-DD, or "" when nothing matches.
func NormalizeDate(text string) string {
	t, ok := ParseDate(text)
	if !ok {
		return ""
	}
	return t.Format(isoDate)
}

// EpochMillis returns UTC midnight of the date in milliseconds.
func EpochMillis(text string) NullInt {
	t, ok := ParseDate(text)
	if !ok {
		return NullInt{}
	}
	return IntOf(t.UnixMilli())
}
