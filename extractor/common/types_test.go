package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary_AcceptsNumericStrings(t *testing.T) {
	var s Summary
	err := json.Unmarshal([]byte(`{"currentBalance":"1,200.50","drawingLimit":"","balanceDateTime":"1700000000000","exchgeRate":null,"branch":"MAIN"}`), &s)
	require.NoError(t, err)

	assert.Equal(t, FloatOf(1200.5), s.CurrentBalance)
	assert.False(t, s.DrawingLimit.Valid)
	assert.False(t, s.ExchgeRate.Valid)
	assert.Equal(t, IntOf(1700000000000), s.BalanceDateTime)
	assert.Equal(t, "MAIN", Deref(s.Branch))
}

func TestTransaction_NullsMarshal(t *testing.T) {
	out, err := json.Marshal(Transaction{Mode: "OTHER", Amount: FloatOf(250)})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, 250.0, m["amount"])
	assert.Nil(t, m["type"])
	assert.Nil(t, m["valueDate"])
	assert.Contains(t, m, "transactionTimestamp")
	assert.Contains(t, m, "account_type")
}

func TestStringList(t *testing.T) {
	var h Hints
	require.NoError(t, json.Unmarshal([]byte(`{"maskedAccNumber":["A1","B2"]}`), &h))
	assert.Equal(t, StringList{"A1", "B2"}, h.MaskedAccNumber)

	h = Hints{}
	require.NoError(t, json.Unmarshal([]byte(`{"maskedAccNumber":""}`), &h))
	assert.Empty(t, h.MaskedAccNumber)
}

func TestTableText(t *testing.T) {
	tbl := NewTable(2, 1, [][]string{{"Account Number", "", "123456789012"}, {"Date", "Narration"}})
	assert.Equal(t, "Account Number 123456789012\nDate Narration\n", tbl.Text())
}

func TestNullFloatString(t *testing.T) {
	assert.Equal(t, "250", FloatOf(250).String())
	assert.Equal(t, "1200.5", FloatOf(1200.5).String())
	assert.Equal(t, "", NullFloat{}.String())
}
