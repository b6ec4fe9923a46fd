package tables

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
)

// Layout is how a table carries its amounts.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutSplit          // separate debit and credit columns
	LayoutSingle         // one amount column, see ColumnStructure.Single
)

// ColumnStructure is derived once from a header mapping and never changes.
type ColumnStructure struct {
	Layout  Layout
	Single  Field // Amount, Debit or Credit when Layout is LayoutSingle
	Balance bool
}

// NewColumnStructure classifies a mapping. With both debit and credit the
// layout is split. Otherwise an amount column wins over a lone debit or credit.
func NewColumnStructure(m Mapping) ColumnStructure {
	cs := ColumnStructure{Balance: m.Has(Balance)}
	switch {
	case m.Has(Debit) && m.Has(Credit):
		cs.Layout = LayoutSplit
	case m.Has(Amount):
		cs.Layout, cs.Single = LayoutSingle, Amount
	case m.Has(Debit):
		cs.Layout, cs.Single = LayoutSingle, Debit
	case m.Has(Credit):
		cs.Layout, cs.Single = LayoutSingle, Credit
	}
	return cs
}

// header is the active mapping of a table together with its structure.
type header struct {
	mapping   Mapping
	structure ColumnStructure
}

func newHeader(m Mapping) *header {
	if m == nil {
		return nil
	}
	return &header{mapping: m, structure: NewColumnStructure(m)}
}

func (h *header) read(row []string, f Field) string {
	idx, ok := h.mapping[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// extract builds a raw row, reading amounts according to the column structure.
func (h *header) extract(row []string) common.RawRow {
	raw := common.RawRow{
		TxnDate:     h.read(row, TxnDate),
		ValueDate:   h.read(row, ValueDate),
		Description: h.read(row, Description),
		TxnID:       h.read(row, TxnID),
		Type:        h.read(row, Type),
	}

	switch h.structure.Layout {
	case LayoutSplit:
		raw.Debit = h.read(row, Debit)
		raw.Credit = h.read(row, Credit)
	case LayoutSingle:
		value := h.read(row, h.structure.Single)
		switch h.structure.Single {
		case Debit:
			raw.Debit = value
		case Credit:
			raw.Credit = value
		default:
			raw.Amount = value
		}
	}
	if h.structure.Balance {
		raw.Balance = h.read(row, Balance)
	}
	return raw
}

// TableResult is what one table contributed.
type TableResult struct {
	Rows []common.RawRow
	// Discovered is the header this table found for itself, nil if it had none.
	Discovered Mapping
}

// ParseTable walks one table. inherited is the header carried over from earlier
// tables and is used until the table presents a qualifying header of its own.
func (c Config) ParseTable(t common.Table, inherited Mapping) TableResult {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = cells(r)
	}

	if c.countAccountRows(rows) > 1 {
		return TableResult{Rows: c.parseSections(rows)}
	}

	var result TableResult
	active := newHeader(inherited)
	headerFound := false

	for i, row := range rows {
		if countNonEmpty(row) < c.MinCells {
			continue
		}
		if !headerFound {
			if mapping, ok := c.DetectHeader(row); ok {
				active = newHeader(mapping)
				headerFound = true
				result.Discovered = mapping
				log.Debug().Int("page", t.Page).Int("table", t.Index).Int("row", i).Msg("header found")
				continue
			}
		}
		if active == nil {
			continue
		}
		if c.isRepeatedHeader(row, active.mapping) || c.isMetadata(row) {
			continue
		}
		raw := active.extract(row)
		if raw.TxnDate == "" || raw.Description == "" {
			continue
		}
		result.Rows = append(result.Rows, raw)
	}

	return result
}

// accountLabel reports whether the first non-empty cell of row is the account banner label.
func (c Config) accountLabel(row []string) bool {
	for _, cell := range row {
		if cell == "" {
			continue
		}
		return cleanLabel(cell) == cleanLabel(c.AccountRowLabel)
	}
	return false
}

func (c Config) countAccountRows(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if c.accountLabel(row) {
			n++
		}
	}
	return n
}

func (c Config) accountNumberPattern() *regexp.Regexp {
	return regexp.MustCompile(`\d{` + strconv.Itoa(c.AccountNumberMinDigits) + `,}`)
}

// sectionAccount reads the account number from the cell after the label,
// falling back to the rest of the row.
func (c Config) sectionAccount(row []string, pattern *regexp.Regexp) string {
	var rest []string
	for _, cell := range row {
		if cell != "" {
			rest = append(rest, cell)
		}
	}
	if len(rest) < 2 {
		return ""
	}
	if m := pattern.FindString(strings.ReplaceAll(rest[1], " ", "")); m != "" {
		return m
	}
	return pattern.FindString(strings.Join(rest[1:], " "))
}

// parseSections handles a table that is a concatenation of per-account blocks,
// each opened by an "Account Number" row and carrying its own header.
func (c Config) parseSections(rows [][]string) []common.RawRow {
	pattern := c.accountNumberPattern()
	var out []common.RawRow
	var active *header
	account := ""
	inSection := false

	for _, row := range rows {
		if c.accountLabel(row) {
			account = c.sectionAccount(row, pattern)
			active = nil
			inSection = true
			continue
		}
		if !inSection || countNonEmpty(row) < c.MinCells {
			continue
		}
		if active == nil {
			if mapping, ok := c.DetectHeader(row); ok {
				active = newHeader(mapping)
			}
			continue
		}
		if c.isRepeatedHeader(row, active.mapping) || c.isMetadata(row) {
			continue
		}
		raw := active.extract(row)
		if raw.TxnDate == "" || raw.Description == "" || !raw.HasAmount() {
			continue
		}
		raw.AccountNumber = account
		out = append(out, raw)
	}
	return out
}
