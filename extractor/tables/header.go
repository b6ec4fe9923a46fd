package tables

import (
	"regexp"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// cleanLabel lower-cases a header cell and strips punctuation.
func cleanLabel(s string) string {
	return strings.TrimSpace(punctuation.ReplaceAllString(strings.ToLower(s), ""))
}

// Mapping binds canonical fields to column positions of the original row.
type Mapping map[Field]int

// Has reports whether f is bound.
func (m Mapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Qualifies reports whether the mapping describes a transaction table header:
// a date, a description, and either an amount or both debit and credit.
func (m Mapping) Qualifies() bool {
	if !m.Has(TxnDate) || !m.Has(Description) {
		return false
	}
	return m.Has(Amount) || (m.Has(Debit) && m.Has(Credit))
}

// cells returns the trimmed text of every cell, "" for absent ones.
func cells(row []*string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if c != nil {
			out[i] = strings.TrimSpace(*c)
		}
	}
	return out
}

func countNonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if c != "" {
			n++
		}
	}
	return n
}

// MapHeader binds each non-empty cell to the first field whose label occurs in it.
// A field keeps the first cell it was bound to.
func (c Config) MapHeader(row []string) Mapping {
	mapping := Mapping{}
	for i, raw := range row {
		if raw == "" {
			continue
		}
		text := cleanLabel(raw)
		for _, alias := range c.Aliases {
			if !c.matches(text, alias.Labels) {
				continue
			}
			if !mapping.Has(alias.Field) {
				mapping[alias.Field] = i
			}
			break
		}
	}
	return mapping
}

func (c Config) matches(text string, labels []string) bool {
	for _, label := range labels {
		if l := cleanLabel(label); l != "" && strings.Contains(text, l) {
			return true
		}
	}
	return false
}

// DetectHeader maps row and reports whether it qualifies as a header.
// Rows with fewer than MinCells non-empty cells never qualify.
func (c Config) DetectHeader(row []string) (Mapping, bool) {
	if countNonEmpty(row) < c.MinCells {
		return nil, false
	}
	mapping := c.MapHeader(row)
	return mapping, mapping.Qualifies()
}

// isRepeatedHeader reports rows that carry several header keywords, like a
// header reprinted at the top of a continuation page. Rows whose date column
// holds a real date are data no matter what their narration says.
func (c Config) isRepeatedHeader(row []string, mapping Mapping) bool {
	if idx, ok := mapping[TxnDate]; ok && idx < len(row) {
		if _, isDate := common.ParseDate(row[idx]); isDate {
			return false
		}
	}
	text := cleanLabel(strings.Join(row, " "))
	found := 0
	for _, kw := range c.HeaderKeywords {
		if strings.Contains(text, kw) {
			found++
		}
	}
	return found >= c.DuplicateHeaderMinKeywords
}

// isMetadata reports opening/closing balance and account banner rows.
func (c Config) isMetadata(row []string) bool {
	text := strings.ToLower(strings.Join(row, " "))
	for _, phrase := range c.MetadataPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
