package tables

import (
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
)

// Accumulator is the state folded over the tables of one document.
type Accumulator struct {
	Header   Mapping
	Rows     []common.RawRow
	prevText string
	position int
}

// Step parses one table and returns the next accumulator. A header discovered
// by the table replaces the carried one for every later table.
func (c Config) Step(acc Accumulator, t common.Table, accounts []common.AccountHint) Accumulator {
	result := c.ParseTable(t, acc.Header)
	text := t.Text()

	account := AssociateAccount(acc.position, text, acc.prevText, accounts)
	rows := make([]common.RawRow, len(acc.Rows), len(acc.Rows)+len(result.Rows))
	copy(rows, acc.Rows)
	for _, r := range result.Rows {
		r.TableAccount = account
		rows = append(rows, r)
	}

	next := Accumulator{
		Header:   acc.Header,
		Rows:     rows,
		prevText: text,
		position: acc.position + 1,
	}
	if result.Discovered != nil {
		next.Header = result.Discovered
	}
	return next
}

// Parse folds every table of a document in order and returns the raw rows.
func (c Config) Parse(tbls []common.Table, accounts []common.AccountHint) []common.RawRow {
	acc := Accumulator{}
	for _, t := range tbls {
		acc = c.Step(acc, t, accounts)
	}
	return acc.Rows
}

// AssociateAccount guesses which known account a table belongs to. The chain is
// a single known account, then an account number printed in this or the
// previous table, then table position, then the highest confidence. The result
// is a hint and never overrides an account read from the rows themselves.
func AssociateAccount(position int, text, prevText string, accounts []common.AccountHint) string {
	switch len(accounts) {
	case 0:
		return ""
	case 1:
		return accounts[0].Number
	}

	haystack := prevText + "\n" + text
	compact := strings.ReplaceAll(haystack, " ", "")
	for _, a := range accounts {
		if strings.Contains(haystack, a.Number) || strings.Contains(compact, a.Number) {
			return a.Number
		}
	}

	if position < len(accounts) {
		return accounts[position].Number
	}

	best := accounts[0]
	for _, a := range accounts[1:] {
		if a.Confidence > best.Confidence {
			best = a
		}
	}
	return best.Number
}
