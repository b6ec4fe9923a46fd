// Package normalize converts raw transaction rows into typed values.
package normalize

import (
	"github.com/aqlanhadi/stmtfold/extractor/common"
)

const (
	Debit  = "debit"
	Credit = "credit"
)

// Normalizer resolves rows against the accounts known for one document.
type Normalizer struct {
	Accounts []string
}

// New builds a Normalizer from the document hints.
func New(hints common.Hints) Normalizer {
	var accounts []string
	for _, a := range hints.KnownAccounts() {
		accounts = append(accounts, a.Number)
	}
	return Normalizer{Accounts: accounts}
}

// Normalize converts every row. It never fails; unparseable values come out empty.
func (n Normalizer) Normalize(rows []common.RawRow) []common.NormalizedRow {
	out := make([]common.NormalizedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, n.Row(r))
	}
	return out
}

// Row converts one raw row.
func (n Normalizer) Row(r common.RawRow) common.NormalizedRow {
	amount, kind := Polarity(r.Debit, r.Credit)
	balance, _ := cleaned(r.Balance)

	return common.NormalizedRow{
		Amount:          amount,
		Type:            kind,
		ValueDate:       common.NormalizeDate(r.TxnDate),
		CurrentBalance:  balance,
		Narration:       r.Description,
		MaskedAccNumber: n.Account(r),
		Raw:             r,
	}
}

// Polarity picks a positive debit first, then a positive credit. Anything else
// stays empty; it is never inferred from context.
func Polarity(debit, credit string) (common.NullFloat, string) {
	if d, ok := cleaned(debit); ok && d.Float64 > 0 {
		return d, Debit
	}
	if c, ok := cleaned(credit); ok && c.Float64 > 0 {
		return c, Credit
	}
	return common.NullFloat{}, ""
}

// Account resolves the account of a row: the row's own section account, else the
// only known account. With several candidates it stays empty.
func (n Normalizer) Account(r common.RawRow) string {
	if r.AccountNumber != "" {
		return r.AccountNumber
	}
	if len(n.Accounts) == 1 {
		return n.Accounts[0]
	}
	return ""
}

func cleaned(s string) (common.NullFloat, bool) {
	v, ok := common.CleanAmount(s)
	if !ok {
		return common.NullFloat{}, false
	}
	return common.FloatOf(v), true
}
