package common

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Table is one table as handed over by a reader: rows of optional cells.
type Table struct {
	Page  int         `json:"page"`
	Index int         `json:"index"`
	Rows  [][]*string `json:"rows"`
}

// Text joins every non-empty cell of the table, one row per line.
func (t Table) Text() string {
	var b strings.Builder
	for _, row := range t.Rows {
		for i, cell := range row {
			if cell == nil {
				continue
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(*cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// NewTable builds a table from plain strings, treating "" as an absent cell.
func NewTable(page, index int, rows [][]string) Table {
	t := Table{Page: page, Index: index, Rows: make([][]*string, 0, len(rows))}
	for _, row := range rows {
		cells := make([]*string, len(row))
		for i, v := range row {
			if strings.TrimSpace(v) != "" {
				v := v
				cells[i] = &v
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Page is the plain text of one source page.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Source is everything a reader produced for one file.
type Source struct {
	Name   string  `json:"source"`
	Pages  []Page  `json:"pages"`
	Tables []Table `json:"tables"`
}

// RawRow is one transaction row keyed by canonical field, before any type conversion.
type RawRow struct {
	TxnDate       string `json:"txn_date,omitempty"`
	ValueDate     string `json:"value_date,omitempty"`
	Description   string `json:"description,omitempty"`
	TxnID         string `json:"txnId,omitempty"`
	Debit         string `json:"debit,omitempty"`
	Credit        string `json:"credit,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Type          string `json:"type,omitempty"`
	Balance       string `json:"balance,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`

	// TableAccount is the orchestrator's best guess for the table this row came from.
	TableAccount string `json:"-"`
}

// HasAmount reports whether any of the amount slots carries a value.
func (r RawRow) HasAmount() bool {
	return r.Amount != "" || r.Debit != "" || r.Credit != ""
}

// NormalizedRow is a RawRow with typed amounts, an ISO date and a resolved account.
type NormalizedRow struct {
	Amount          NullFloat `json:"amount"`
	Type            string    `json:"type"`
	ValueDate       string    `json:"valueDate"`
	CurrentBalance  NullFloat `json:"currentBalance"`
	Narration       string    `json:"narration"`
	MaskedAccNumber string    `json:"maskedAccNumber"`

	Raw RawRow `json:"-"`
}

type Transaction struct {
	Mode                 string    `json:"mode"`
	Type                 *string   `json:"type"`
	FipID                *string   `json:"fipId"`
	TxnID                *string   `json:"txnId"`
	Amount               NullFloat `json:"amount"`
	Narration            *string   `json:"narration"`
	Reference            *string   `json:"reference"`
	ValueDate            NullInt   `json:"valueDate"`
	AccountType          *string   `json:"account_type"`
	LinkedAccRef         *string   `json:"linkedAccRef"`
	FnrkAccountID        *string   `json:"fnrkAccountId"`
	CurrentBalance       NullFloat `json:"currentBalance"`
	MaskedAccNumber      *string   `json:"maskedAccNumber"`
	TransactionTimestamp NullInt   `json:"transactionTimestamp"`
}

type Profile struct {
	Dob             *string `json:"dob"`
	Pan             *string `json:"pan"`
	Name            *string `json:"name"`
	Type            *string `json:"type"`
	Email           *string `json:"email"`
	FipID           *string `json:"fipId"`
	Mobile          *string `json:"mobile"`
	Address         *string `json:"address"`
	Nominee         *string `json:"nominee"`
	LandLine        *string `json:"landLine"`
	AccountType     *string `json:"account_type"`
	LinkedAccRef    *string `json:"linkedAccRef"`
	FnrkAccountID   *string `json:"fnrkAccountId"`
	CkycCompliance  *bool   `json:"ckycCompliance"`
	MaskedAccNumber *string `json:"maskedAccNumber"`
}

type Summary struct {
	Type                   *string   `json:"type"`
	FipID                  *string   `json:"fipId"`
	Branch                 *string   `json:"branch"`
	Status                 *string   `json:"status"`
	FipName                *string   `json:"fipName"`
	Currency               *string   `json:"currency"`
	Facility               *string   `json:"facility"`
	IfscCode               *string   `json:"ifscCode"`
	MicrCode               *string   `json:"micrCode"`
	ExchgeRate             NullFloat `json:"exchgeRate"`
	OpeningDate            *string   `json:"openingDate"`
	AccountType            *string   `json:"account_type"`
	DrawingLimit           NullFloat `json:"drawingLimit"`
	LinkedAccRef           *string   `json:"linkedAccRef"`
	FnrkAccountID          *string   `json:"fnrkAccountId"`
	CurrentBalance         NullFloat `json:"currentBalance"`
	CurrentODLimit         NullFloat `json:"currentODLimit"`
	PendingAmount          NullFloat `json:"pending_amount"`
	BalanceDateTime        NullInt   `json:"balanceDateTime"`
	MaskedAccNumber        *string   `json:"maskedAccNumber"`
	AccountAgeInDays       NullInt   `json:"accountAgeInDays"`
	PendingTransactionType *string   `json:"pending_transactionType"`
}

type TransactionsMeta struct {
	FipID            *string `json:"fipId"`
	ToTimestamp      NullInt `json:"toTimestamp"`
	LinkedAccRef     *string `json:"linkedAccRef"`
	FnrkAccountID    *string `json:"fnrkAccountId"`
	FromTimestamp    NullInt `json:"fromTimestamp"`
	MaskedAccNumber  *string `json:"maskedAccNumber"`
	NoOfTransactions int     `json:"noOfTransactions"`
}

// Statement is both the per-file partial and the merged per-account bundle.
// Partials carry an empty TransactionsMeta.
type Statement struct {
	Profile          []Profile        `json:"profile"`
	Summary          Summary          `json:"summary"`
	Transactions     []Transaction    `json:"transactions"`
	TransactionsMeta TransactionsMeta `json:"transactionsMeta"`
}

// AccountHint is an account number found by an upstream profile extractor.
type AccountHint struct {
	Number     string  `json:"number"`
	Confidence float64 `json:"confidence"`
}

// Hints is document-level context produced outside the table engine.
// Values are fallbacks only and never override row-derived data.
type Hints struct {
	MaskedAccNumber StringList    `json:"maskedAccNumber,omitempty"`
	Accounts        []AccountHint `json:"accounts,omitempty"`
	FipID           string        `json:"fipId,omitempty"`
	FipName         string        `json:"fipName,omitempty"`
	LinkedAccRef    string        `json:"linkedAccRef,omitempty"`
	FnrkAccountID   string        `json:"fnrkAccountId,omitempty"`
	AccountType     string        `json:"account_type,omitempty"`
	Profile         []Profile     `json:"profile,omitempty"`
	Summary         *Summary      `json:"summary,omitempty"`
}

// KnownAccounts returns the distinct account numbers of the hints in order of appearance,
// confidence-ranked accounts first.
func (h Hints) KnownAccounts() []AccountHint {
	seen := map[string]bool{}
	var out []AccountHint
	add := func(a AccountHint) {
		a.Number = strings.TrimSpace(a.Number)
		if a.Number == "" || seen[a.Number] {
			return
		}
		seen[a.Number] = true
		out = append(out, a)
	}
	for _, a := range h.Accounts {
		add(a)
	}
	for _, n := range h.MaskedAccNumber {
		add(AccountHint{Number: n})
	}
	return out
}

// StringList accepts either a JSON string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// NullFloat is a number that may be absent. It decodes numbers and numeric strings;
// empty or unparseable strings decode as absent.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

func FloatOf(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	*n = NullFloat{}
	s, ok := scalarText(data)
	if !ok {
		return nil
	}
	if v, ok := CleanAmount(s); ok {
		*n = FloatOf(v)
	}
	return nil
}

// String renders the value the way the dedupe key expects it, "" when absent.
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// NullInt is an integer (usually epoch milliseconds) that may be absent.
type NullInt struct {
	Int64 int64
	Valid bool
}

func IntOf(v int64) NullInt { return NullInt{Int64: v, Valid: true} }

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(n.Int64, 10)), nil
}

func (n *NullInt) UnmarshalJSON(data []byte) error {
	*n = NullInt{}
	s, ok := scalarText(data)
	if !ok {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = IntOf(v)
		return nil
	}
	if v, ok := CleanAmount(s); ok {
		*n = IntOf(int64(v))
	}
	return nil
}

func (n NullInt) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatInt(n.Int64, 10)
}

// OrElse returns the value or fallback when absent.
func (n NullInt) OrElse(fallback int64) int64 {
	if !n.Valid {
		return fallback
	}
	return n.Int64
}

// scalarText unwraps a JSON number or string into trimmed text.
func scalarText(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Str returns a pointer to s, or nil when s is blank.
func Str(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Blank reports whether a string pointer is nil or whitespace only.
func Blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Upper is the normalized form used in identity keys.
func Upper(s *string) string {
	return strings.ToUpper(strings.TrimSpace(Deref(s)))
}
