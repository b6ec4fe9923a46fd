// Package mapper turns normalized rows into canonical transactions, inferring
// the payment channel and identifiers from the narration.
package mapper

import (
	"math"
	"regexp"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
)

const (
	ModeOther = "OTHER"

	TypeCredit = "CREDIT"
	TypeDebit  = "DEBIT"
)

// Rule maps a narration pattern to a payment mode.
type Rule struct {
	Pattern *regexp.Regexp
	Mode    string
}

// Rules are checked in order and the first match wins. Categories overlap, so
// UPI must stay ahead of CARD ("UPI/POS/...").
var Rules = []Rule{
	{regexp.MustCompile(`(?i)\bUPI\b|\bVPA\b|/UPI/`), "UPI"},
	{regexp.MustCompile(`(?i)\bIMPS\b`), "IMPS"},
	{regexp.MustCompile(`(?i)\bNEFT\b`), "NEFT"},
	{regexp.MustCompile(`(?i)\bRTGS\b`), "RTGS"},
	{regexp.MustCompile(`(?i)\bACH\b|\bNACH\b`), "ACH"},
	{regexp.MustCompile(`(?i)\bATM\b|ATM\s*WDL|CASH\s*WDL`), "ATM"},
	{regexp.MustCompile(`(?i)\bPOS\b|CARD|DEBIT\s*CARD|CREDIT\s*CARD|ECOM|EPOS|SWIPE`), "CARD"},
	{regexp.MustCompile(`(?i)\bCHQ\b|CHEQUE|CHEQ`), "CHEQUE"},
	{regexp.MustCompile(`(?i)NET\s*BANKING|INTERNET\s*BANKING|IB\s*TRF`), "NETBANKING"},
	{regexp.MustCompile(`(?i)\bINTEREST\b|INT\.?\s*CR`), "INTEREST"},
	{regexp.MustCompile(`(?i)\bCHARGES\b|FEE|GST|REV\.? CHG`), "CHARGES"},
}

var (
	txnIDPattern = regexp.MustCompile(`\b([A-Z]{2,}\d{6,}|[A-Z0-9]{8,}|\d{9,})\b`)
	refHints     = regexp.MustCompile(`(?i)\b(Ref(?:erence)?|RRN|UTR|Txn\s*Id|Order\s*Id|Cheque\s*No\.?)\b`)
)

// Context is stamped on every transaction of a document.
type Context struct {
	FipID           string
	LinkedAccRef    string
	FnrkAccountID   string
	AccountType     string
	MaskedAccNumber string
}

// Mapper holds the account type used when the document context has none.
type Mapper struct {
	DefaultAccountType string
}

func New(defaultAccountType string) Mapper {
	return Mapper{DefaultAccountType: defaultAccountType}
}

// InferMode returns the mode of the first matching rule, or OTHER.
func InferMode(narration string) string {
	if narration == "" {
		return ModeOther
	}
	for _, r := range Rules {
		if r.Pattern.MatchString(narration) {
			return r.Mode
		}
	}
	return ModeOther
}

// ResolveAmount decides the type and amount of a row: a debit or credit column
// holding the only value, then an amount with a type label, then a signed
// amount. Otherwise the type is unknown and the amount is passed through.
func ResolveAmount(r common.RawRow) (*string, common.NullFloat) {
	debit := money(r.Debit)
	credit := money(r.Credit)
	amount := money(r.Amount)

	switch {
	case nonZero(debit) && !nonZero(credit):
		return typ(TypeDebit), abs(debit)
	case nonZero(credit) && !nonZero(debit):
		return typ(TypeCredit), abs(credit)
	}

	if amount.Valid {
		kind := strings.ToLower(strings.TrimSpace(r.Type))
		switch {
		case strings.HasPrefix(kind, "cr"):
			return typ(TypeCredit), abs(amount)
		case strings.HasPrefix(kind, "dr"), strings.HasPrefix(kind, "debit"):
			return typ(TypeDebit), abs(amount)
		}

		signed := strings.TrimSpace(r.Amount)
		switch {
		case strings.HasPrefix(signed, "-"):
			return typ(TypeDebit), abs(amount)
		case strings.HasPrefix(signed, "+"):
			return typ(TypeCredit), abs(amount)
		}
	}

	return nil, amount
}

// PickReference extracts a transaction id from the narration and, separately,
// keeps the raw reference cell when it looks like one.
func PickReference(narration, ref string) (txnID, reference *string) {
	ref = strings.TrimSpace(ref)
	if ref != "" && (refHints.MatchString(ref) || txnIDPattern.MatchString(ref)) {
		reference = &ref
	}
	if m := txnIDPattern.FindStringSubmatch(narration); m != nil {
		txnID = &m[1]
	}
	return txnID, reference
}

// Map converts rows, dropping those without amount, narration and id.
func (m Mapper) Map(rows []common.NormalizedRow, ctx Context) []common.Transaction {
	out := make([]common.Transaction, 0, len(rows))
	for _, row := range rows {
		if txn, ok := m.Row(row, ctx); ok {
			out = append(out, txn)
		}
	}
	return out
}

// Row converts one row. ok is false when the row carries nothing usable.
func (m Mapper) Row(row common.NormalizedRow, ctx Context) (common.Transaction, bool) {
	raw := row.Raw
	narration := strings.TrimSpace(raw.Description)
	kind, amount := ResolveAmount(raw)
	txnID, reference := PickReference(narration, raw.TxnID)

	if !nonZero(amount) && narration == "" && txnID == nil {
		return common.Transaction{}, false
	}

	balance := row.CurrentBalance
	if !balance.Valid {
		balance = money(raw.Balance)
	}

	accountType := ctx.AccountType
	if accountType == "" {
		accountType = m.DefaultAccountType
	}

	return common.Transaction{
		Mode:                 InferMode(narration),
		Type:                 kind,
		FipID:                common.Str(ctx.FipID),
		TxnID:                txnID,
		Amount:               amount,
		Narration:            common.Str(narration),
		Reference:            reference,
		ValueDate:            firstDate(raw.ValueDate, row.ValueDate),
		AccountType:          common.Str(accountType),
		LinkedAccRef:         common.Str(ctx.LinkedAccRef),
		FnrkAccountID:        common.Str(ctx.FnrkAccountID),
		CurrentBalance:       balance,
		MaskedAccNumber:      common.Str(firstNonEmpty(row.MaskedAccNumber, raw.TableAccount, ctx.MaskedAccNumber)),
		TransactionTimestamp: firstDate(row.ValueDate, raw.ValueDate),
	}, true
}

func firstDate(candidates ...string) common.NullInt {
	for _, c := range candidates {
		if ms := common.EpochMillis(c); ms.Valid {
			return ms
		}
	}
	return common.NullInt{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func money(s string) common.NullFloat {
	v, ok := common.ParseMoney(s)
	if !ok {
		return common.NullFloat{}
	}
	return common.FloatOf(v)
}

func nonZero(n common.NullFloat) bool {
	return n.Valid && n.Float64 != 0
}

func abs(n common.NullFloat) common.NullFloat {
	if !n.Valid {
		return n
	}
	return common.FloatOf(math.Abs(n.Float64))
}

func typ(s string) *string {
	return &s
}
