package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/aqlanhadi/stmtfold/extractor/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = `Date,Narration,Withdrawal,Deposit,Balance
01/06/2018,UPI/AMAZON/REF123,250.00,,"9,750.00"
02/06/2018,NEFT SALARY,,50000.00,"59,750.00"
`

func testOptions() Options {
	return Options{Tables: tables.DefaultConfig(), DefaultAccountType: "deposit", Workers: 2}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessFile_WithHints(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stmt.csv", statementCSV)
	writeFile(t, dir, "stmt.hints.json", `{"maskedAccNumber":"XXXX1234","fipId":"ACME-FIP"}`)

	statements, err := ProcessFile(path, testOptions())

	require.NoError(t, err)
	require.Len(t, statements, 1)
	s := statements[0]
	require.Len(t, s.Transactions, 2)

	assert.Equal(t, "XXXX1234", common.Deref(s.Summary.MaskedAccNumber))
	assert.Equal(t, "ACME-FIP", common.Deref(s.Summary.FipID))
	assert.Equal(t, common.FloatOf(59750), s.Summary.CurrentBalance)
	assert.Equal(t, common.IntOf(1527897600000), s.Summary.BalanceDateTime)

	first := s.Transactions[0]
	assert.Equal(t, "UPI", first.Mode)
	assert.Equal(t, "DEBIT", common.Deref(first.Type))
	assert.Equal(t, common.FloatOf(250), first.Amount)
	assert.Equal(t, "XXXX1234", common.Deref(first.MaskedAccNumber))
	assert.Equal(t, "ACME-FIP", common.Deref(first.FipID))
	assert.Equal(t, "deposit", common.Deref(first.AccountType))

	second := s.Transactions[1]
	assert.Equal(t, "NEFT", second.Mode)
	assert.Equal(t, "CREDIT", common.Deref(second.Type))
}

func TestProcessFile_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	_, err := ProcessFile(path, testOptions())
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestProcessReader(t *testing.T) {
	hints := common.Hints{MaskedAccNumber: common.StringList{"XXXX9999"}}

	statements, err := ProcessReader(strings.NewReader(statementCSV), "upload.csv", hints, testOptions())

	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Len(t, statements[0].Transactions, 2)
	assert.Equal(t, "XXXX9999", common.Deref(statements[0].Summary.MaskedAccNumber))
}

func TestSplitByAccount(t *testing.T) {
	fip := "ACME"
	sum := common.Summary{FipID: &fip}
	profiles := []common.Profile{
		{Name: common.Str("A"), MaskedAccNumber: common.Str("XX11")},
		{Name: common.Str("B"), MaskedAccNumber: common.Str("XX22")},
		{Name: common.Str("ANY")},
	}
	txns := []common.Transaction{
		{MaskedAccNumber: common.Str("XX11"), Amount: common.FloatOf(1)},
		{MaskedAccNumber: common.Str("XX22"), Amount: common.FloatOf(2)},
		{MaskedAccNumber: common.Str("XX11"), Amount: common.FloatOf(3)},
	}

	out := splitByAccount(sum, profiles, txns)

	require.Len(t, out, 2)
	assert.Equal(t, "XX11", common.Deref(out[0].Summary.MaskedAccNumber))
	assert.Len(t, out[0].Transactions, 2)
	assert.Len(t, out[0].Profile, 2)
	assert.Equal(t, "XX22", common.Deref(out[1].Summary.MaskedAccNumber))
	assert.Len(t, out[1].Transactions, 1)
	assert.Equal(t, "ACME", common.Deref(out[1].Summary.FipID))
	assert.Nil(t, sum.MaskedAccNumber, "input summary is not modified")
}

func TestSplitByAccount_SingleAccount(t *testing.T) {
	txns := []common.Transaction{
		{MaskedAccNumber: common.Str("XX11")},
		{},
	}

	out := splitByAccount(common.Summary{}, nil, txns)

	require.Len(t, out, 1)
	assert.Equal(t, "XX11", common.Deref(out[0].Summary.MaskedAccNumber))
	assert.Len(t, out[0].Transactions, 2)
	assert.NotNil(t, out[0].Profile)
}

func TestApplyBalance_KeepsStatedBalance(t *testing.T) {
	sum := common.Summary{CurrentBalance: common.FloatOf(10)}
	applyBalance(&sum, []common.Transaction{
		{TransactionTimestamp: common.IntOf(5), CurrentBalance: common.FloatOf(99)},
	})

	assert.Equal(t, common.FloatOf(10), sum.CurrentBalance)
	assert.Equal(t, common.IntOf(5), sum.BalanceDateTime)
}

func TestExecuteAgainstPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stmt.csv", statementCSV)
	writeFile(t, dir, "stmt.hints.json", `{"maskedAccNumber":"XXXX1234"}`)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "readme.txt", "ignored")

	report, err := ExecuteAgainstPath(dir, testOptions())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Files, 2)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.TotalTransactions)

	assert.Equal(t, "broken.json", report.Files[0].File)
	assert.Equal(t, StatusError, report.Files[0].Status)
	assert.Equal(t, "stmt.csv", report.Files[1].File)
	assert.Equal(t, StatusSuccess, report.Files[1].Status)
	assert.Equal(t, []string{"XXXX1234"}, report.Files[1].Accounts)
	assert.Len(t, report.Partials(), 1)
}

func TestExecuteAgainstPath_MissingPath(t *testing.T) {
	_, err := ExecuteAgainstPath(filepath.Join(t.TempDir(), "nope"), testOptions())
	assert.Error(t, err)
}
