package tables

import (
	"testing"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHeader(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		row       []string
		qualifies bool
	}{
		{"split debit credit", []string{"Date", "Narration", "Withdrawal", "Deposit"}, true},
		{"single amount", []string{"Date", "Narration", "Amount"}, true},
		{"date and narration only", []string{"Date", "Narration", "Remarks"}, false},
		{"too few cells", []string{"Date", "Amount"}, false},
		{"indian bank layout", []string{"Txn Date", "Value Date", "Particulars", "Chq./Ref.No.", "Withdrawal Amount (INR)", "Deposit Amount (INR)", "Balance (INR)"}, true},
		{"debit only", []string{"Date", "Description", "Debit"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := cfg.DetectHeader(tt.row)
			assert.Equal(t, tt.qualifies, ok)
		})
	}
}

func TestMapHeader_FieldPriority(t *testing.T) {
	cfg := DefaultConfig()
	m := cfg.MapHeader([]string{"Txn Date", "Value Date", "Particulars", "Chq./Ref.No.", "Withdrawal Amount (INR)", "Deposit Amount (INR)", "Balance (INR)"})

	assert.Equal(t, Mapping{
		TxnDate:     0,
		ValueDate:   1,
		Description: 2,
		TxnID:       3,
		Debit:       4,
		Credit:      5,
		Balance:     6,
	}, m)
}

func TestMapHeader_FirstCellWins(t *testing.T) {
	cfg := DefaultConfig()
	m := cfg.MapHeader([]string{"Date", "Narration", "Amount", "Posting Date"})
	assert.Equal(t, 0, m[TxnDate])
}

func TestNewColumnStructure(t *testing.T) {
	assert.Equal(t, ColumnStructure{Layout: LayoutSplit, Balance: true},
		NewColumnStructure(Mapping{TxnDate: 0, Description: 1, Debit: 2, Credit: 3, Balance: 4}))
	assert.Equal(t, ColumnStructure{Layout: LayoutSingle, Single: Amount},
		NewColumnStructure(Mapping{TxnDate: 0, Description: 1, Amount: 2, Debit: 3}))
	assert.Equal(t, ColumnStructure{Layout: LayoutSingle, Single: Credit},
		NewColumnStructure(Mapping{TxnDate: 0, Description: 1, Credit: 2}))
	assert.Equal(t, ColumnStructure{Layout: LayoutUnknown},
		NewColumnStructure(Mapping{TxnDate: 0, Description: 1}))
}

func TestParseTable_KeepsOriginalColumnPositions(t *testing.T) {
	cfg := DefaultConfig()
	tbl := common.NewTable(1, 0, [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/06/2018", "UPI/AMAZON/REF123", "", "250.00", "1,200.50"},
	})

	result := cfg.ParseTable(tbl, nil)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, common.RawRow{
		TxnDate:     "01/06/2018",
		Description: "UPI/AMAZON/REF123",
		Credit:      "250.00",
		Balance:     "1,200.50",
	}, result.Rows[0])
	assert.True(t, result.Discovered.Qualifies())
}

func TestParseTable_SkipsNoise(t *testing.T) {
	cfg := DefaultConfig()
	tbl := common.NewTable(1, 0, [][]string{
		{"ACME BANK", "", ""},
		{"Date", "Description", "Debit", "Credit", "Balance"},
		{"", "Opening Balance", "", "", "1,000.00"},
		{"01/06/2018", "NEFT ACME PAYROLL", "", "5,000.00", "6,000.00"},
		{"Date", "Description", "Debit", "Credit", "Balance"},
		{"02/06/2018", "ATM WDL MG ROAD", "2,000.00", "", "4,000.00"},
		{"", "Page 1 of 2", ""},
		{"03/06/2018", "", "10.00", "", "3,990.00"},
		{"", "Closing Balance", "", "", "3,990.00"},
	})

	result := cfg.ParseTable(tbl, nil)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "NEFT ACME PAYROLL", result.Rows[0].Description)
	assert.Equal(t, "2,000.00", result.Rows[1].Debit)
}

func TestParseTable_NarrationWithKeywordsIsData(t *testing.T) {
	cfg := DefaultConfig()
	tbl := common.NewTable(1, 0, [][]string{
		{"Date", "Description", "Amount", "Type"},
		{"04/06/2018", "DEBIT CARD TRANSACTION AMAZON", "99.00", "DR"},
	})

	result := cfg.ParseTable(tbl, nil)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "99.00", result.Rows[0].Amount)
	assert.Equal(t, "DR", result.Rows[0].Type)
}

func TestParse_HeaderInheritance(t *testing.T) {
	cfg := DefaultConfig()
	tableA := common.NewTable(1, 0, [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/06/2018", "SALARY JUNE", "", "50,000.00", "50,000.00"},
	})
	tableB := common.NewTable(2, 1, [][]string{
		{"02/06/2018", "RENT", "20,000.00", "", "30,000.00"},
		{"03/06/2018", "GROCERIES", "1,500.00", "", "28,500.00"},
	})

	rows := cfg.Parse([]common.Table{tableA, tableB}, nil)

	require.Len(t, rows, 3)
	assert.Equal(t, "RENT", rows[1].Description)
	assert.Equal(t, "20,000.00", rows[1].Debit)
	assert.Equal(t, "28,500.00", rows[2].Balance)
}

func TestParse_NewHeaderReplacesCarriedOne(t *testing.T) {
	cfg := DefaultConfig()
	tableA := common.NewTable(1, 0, [][]string{
		{"Date", "Narration", "Withdrawal", "Deposit", "Balance"},
		{"01/06/2018", "SALARY", "", "100.00", "100.00"},
	})
	tableB := common.NewTable(2, 1, [][]string{
		{"Balance", "Amount", "Narration", "Date"},
		{"90.00", "10.00", "TEA", "02/06/2018"},
	})
	tableC := common.NewTable(3, 2, [][]string{
		{"80.00", "10.00", "COFFEE", "03/06/2018"},
	})

	acc := Accumulator{}
	for _, tbl := range []common.Table{tableA, tableB, tableC} {
		acc = cfg.Step(acc, tbl, nil)
	}

	require.Len(t, acc.Rows, 3)
	assert.Equal(t, Mapping{Balance: 0, Amount: 1, Description: 2, TxnDate: 3}, acc.Header)
	assert.Equal(t, "COFFEE", acc.Rows[2].Description)
	assert.Equal(t, "10.00", acc.Rows[2].Amount)
}

func TestParseTable_NestedAccounts(t *testing.T) {
	cfg := DefaultConfig()
	tbl := common.NewTable(1, 0, [][]string{
		{"Account Number", "123456789012", ""},
		{"Date", "Narration", "Debit", "Credit", "Balance"},
		{"", "Opening Balance", "", "", "500.00"},
		{"01/06/2018", "IMPS IN", "", "100.00", "600.00"},
		{"02/06/2018", "ATM WDL", "50.00", "", "550.00"},
		{"Account Number", "987654321098", ""},
		{"Txn Date", "Description", "Amount", "Type"},
		{"05/06/2018", "INTEREST CREDIT", "12.00", "CR"},
		{"06/06/2018", "SMS CHARGES", "3.00", "DR"},
		{"07/06/2018", "NO AMOUNT ROW", "", ""},
	})

	result := cfg.ParseTable(tbl, nil)

	require.Len(t, result.Rows, 4)
	assert.Equal(t, "123456789012", result.Rows[0].AccountNumber)
	assert.Equal(t, "123456789012", result.Rows[1].AccountNumber)
	assert.Equal(t, "987654321098", result.Rows[2].AccountNumber)
	assert.Equal(t, "987654321098", result.Rows[3].AccountNumber)
	assert.Equal(t, "12.00", result.Rows[2].Amount)
	assert.Nil(t, result.Discovered)
}

func TestAssociateAccount(t *testing.T) {
	accounts := []common.AccountHint{
		{Number: "111111111111", Confidence: 0.4},
		{Number: "222222222222", Confidence: 0.9},
	}

	assert.Equal(t, "", AssociateAccount(0, "", "", nil))
	assert.Equal(t, "111111111111", AssociateAccount(5, "", "", accounts[:1]))
	assert.Equal(t, "222222222222", AssociateAccount(0, "rows", "Statement for 2222 2222 2222", accounts))
	assert.Equal(t, "222222222222", AssociateAccount(1, "no number here", "", accounts))

	// heuristic: beyond the known accounts the highest confidence wins
	assert.Equal(t, "222222222222", AssociateAccount(7, "no number here", "", accounts))
}

func TestParse_StampsTableAccount(t *testing.T) {
	cfg := DefaultConfig()
	accounts := []common.AccountHint{{Number: "111111111111"}, {Number: "222222222222"}}
	tbl := common.NewTable(1, 0, [][]string{
		{"Statement of account 222222222222", "", ""},
		{"Date", "Narration", "Amount"},
		{"01/06/2018", "UPI/ZOMATO", "-350.00"},
	})

	rows := cfg.Parse([]common.Table{tbl}, accounts)

	require.Len(t, rows, 1)
	assert.Equal(t, "222222222222", rows[0].TableAccount)
	assert.Empty(t, rows[0].AccountNumber)
}

func TestLoadConfig(t *testing.T) {
	defer viper.Reset()

	assert.Equal(t, DefaultConfig(), LoadConfig())

	viper.Set("tables", map[string]interface{}{
		"min_cells":       4,
		"header_keywords": []string{"date", "amount"},
	})
	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.MinCells)
	assert.Equal(t, []string{"date", "amount"}, cfg.HeaderKeywords)
	assert.Equal(t, DefaultConfig().Aliases, cfg.Aliases)
	assert.Equal(t, 10, cfg.AccountNumberMinDigits)
}
