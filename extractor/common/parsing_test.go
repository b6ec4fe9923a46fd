package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,200.50", 1200.5, true},
		{"  250.00 ", 250, true},
		{"-75.25", -75.25, true},
		{"+10", 10, true},
		{"1,00,000.00", 100000, true},
		{"", 0, false},
		{"   ", 0, false},
		{"abc", 0, false},
		{"12.3.4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CleanAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoney(t *testing.T) {
	got, ok := ParseMoney("₹ 1,250.00 CR")
	assert.True(t, ok)
	assert.Equal(t, 1250.0, got)

	got, ok = ParseMoney("INR 99.90DR")
	assert.True(t, ok)
	assert.Equal(t, 99.9, got)

	got, ok = ParseMoney("-500.00")
	assert.True(t, ok)
	assert.Equal(t, -500.0, got)

	_, ok = ParseMoney("n/a")
	assert.False(t, ok)
}

func TestNormalizeDate_SameCalendarDay(t *testing.T) {
	inputs := []string{
		"05/03/2024",
		"5/3/2024",
		"05-03-2024",
		"2024-03-05",
		"5 Mar 2024",
		"05 MAR 2024",
		"5 March 2024",
		"5 Mar '24",
		"5 Mar ’24",
		"05/03/24",
		"05-Mar-2024",
		"05-Mar-24",
		"2024-03-05 00:00:00",
		"2024/03/05 13:45:10",
		"2024/03/05",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, "2024-03-05", NormalizeDate(in))
		})
	}
}

func TestNormalizeDate_Idempotent(t *testing.T) {
	once := NormalizeDate("2024-03-05")
	assert.Equal(t, "2024-03-05", once)
	assert.Equal(t, once, NormalizeDate(once))
}

func TestNormalizeDate_Unparseable(t *testing.T) {
	assert.Equal(t, "", NormalizeDate(""))
	assert.Equal(t, "", NormalizeDate("yesterday"))
	assert.Equal(t, "", NormalizeDate("31/02/2024"))
}

func TestEpochMillis(t *testing.T) {
	assert.Equal(t, IntOf(1527811200000), EpochMillis("01/06/2018"))
	assert.Equal(t, IntOf(1527811200000), EpochMillis("2018-06-01"))
	assert.False(t, EpochMillis("not a date").Valid)
}
