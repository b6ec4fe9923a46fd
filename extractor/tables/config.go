// Package tables finds transaction tables inside noisy statement tables and
// turns their rows into raw transaction records.
package tables

import (
	"github.com/spf13/viper"
)

// Field is a canonical transaction column.
type Field string

const (
	TxnDate     Field = "txn_date"
	ValueDate   Field = "value_date"
	Description Field = "description"
	TxnID       Field = "txnId"
	Type        Field = "type"
	Debit       Field = "debit"
	Credit      Field = "credit"
	Balance     Field = "balance"
	Amount      Field = "amount"
)

// Alias lists the header labels recognized for one field.
type Alias struct {
	Field  Field    `mapstructure:"field"`
	Labels []string `mapstructure:"labels"`
}

// Config holds the alias table and the row classification thresholds.
// Alias order is the detection priority: a header cell binds to the first
// field with a matching label, so "value date" must be tried before "date"
// and "description" before "cr".
type Config struct {
	Aliases                    []Alias  `mapstructure:"aliases"`
	HeaderKeywords             []string `mapstructure:"header_keywords"`
	DuplicateHeaderMinKeywords int      `mapstructure:"duplicate_header_min_keywords"`
	MetadataPhrases            []string `mapstructure:"metadata_phrases"`
	MinCells                   int      `mapstructure:"min_cells"`
	AccountRowLabel            string   `mapstructure:"account_row_label"`
	AccountNumberMinDigits     int      `mapstructure:"account_number_min_digits"`
}

// DefaultConfig is used when no configuration overrides the tables section.
func DefaultConfig() Config {
	return Config{
		Aliases: []Alias{
			{ValueDate, []string{"value_date", "value date", "val date", "val dt"}},
			{TxnDate, []string{"txn_date", "date", "txn date", "transaction date", "trxn dt", "txn dt"}},
			{Description, []string{"description", "narration", "transaction details", "details", "particulars", "transaction remarks"}},
			{TxnID, []string{"ref_no", "ref", "ref no", "cheque", "instrument no"}},
			{Type, []string{"type", "debit/credit", "dr/cr"}},
			{Debit, []string{"debit", "dr", "debit amt", "withdrawal", "withdrawal amount inr"}},
			{Credit, []string{"credit", "cr", "credit amt", "deposit", "deposit amount inr"}},
			{Balance, []string{"balance", "bal", "closing balance", "cl bal", "available balance", "balance inr"}},
			{Amount, []string{"amount", "amount (inr)", "amt", "transaction amount"}},
		},
		HeaderKeywords: []string{
			"date", "transaction", "description", "withdrawal", "deposit",
			"balance", "credit", "debit", "amount", "details", "chq",
		},
		DuplicateHeaderMinKeywords: 2,
		MetadataPhrases: []string{
			"opening balance",
			"closing balance",
			"account number",
			"balance brought forward",
			"balance carried forward",
			"account statement for account number",
		},
		MinCells:               3,
		AccountRowLabel:        "account number",
		AccountNumberMinDigits: 10,
	}
}

// LoadConfig reads the "tables" section from viper on top of DefaultConfig.
func LoadConfig() Config {
	if !viper.IsSet("tables") {
		return DefaultConfig()
	}
	var cfg Config
	if err := viper.UnmarshalKey("tables", &cfg); err != nil {
		return DefaultConfig()
	}
	return cfg.withDefaults()
}

// withDefaults fills zero values left by a partial configuration.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Aliases) == 0 {
		c.Aliases = def.Aliases
	}
	if len(c.HeaderKeywords) == 0 {
		c.HeaderKeywords = def.HeaderKeywords
	}
	if c.DuplicateHeaderMinKeywords <= 0 {
		c.DuplicateHeaderMinKeywords = def.DuplicateHeaderMinKeywords
	}
	if len(c.MetadataPhrases) == 0 {
		c.MetadataPhrases = def.MetadataPhrases
	}
	if c.MinCells <= 0 {
		c.MinCells = def.MinCells
	}
	if c.AccountRowLabel == "" {
		c.AccountRowLabel = def.AccountRowLabel
	}
	if c.AccountNumberMinDigits <= 0 {
		c.AccountNumberMinDigits = def.AccountNumberMinDigits
	}
	return c
}
