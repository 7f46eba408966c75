package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountCents(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "comma decimal with dot thousands", input: "1.234,56", expected: 123456},
		{name: "plain dot decimal", input: "1234.56", expected: 123456},
		{name: "integer", input: "10", expected: 1000},
		{name: "currency prefix", input: "$ 1.050,00", expected: 105000},
		{name: "negative comma decimal", input: "-700,50", expected: -70050},
		{name: "dot thousands without decimals", input: "1.234.567", expected: 123456700},
		{name: "comma only", input: "700,00", expected: 70000},
		{name: "garbage", input: "sin importe", expected: 0},
		{name: "empty", input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AmountCents(tt.input))
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "slash format", input: "02/01/2026", expected: "2026-01-02"},
		{name: "slash format single digits", input: "2/1/2026", expected: "2026-01-02"},
		{name: "spanish month", input: "02-ene-2026", expected: "2026-01-02"},
		{name: "spanish month long", input: "15-septiembre-2025", expected: "2025-09-15"},
		{name: "embedded in text", input: "Fecha de Pago 03/02/2026 ", expected: "2026-02-03"},
		{name: "unknown month", input: "02-xyz-2026", expected: ""},
		{name: "garbage", input: "no date here", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Date(tt.input))
		})
	}
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "5982", Last4("XXXX XXXX XXXX 5982"))
	assert.Equal(t, "4321", Last4("987654321"))
	assert.Equal(t, "123", Last4(" 123 "))
	assert.Equal(t, "", Last4(""))
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "ARS", Currency("ars"))
	assert.Equal(t, "ARS", Currency("$"))
	assert.Equal(t, "ARS", Currency("AR$"))
	assert.Equal(t, "USD", Currency("usd"))
	assert.Equal(t, "", Currency("  "))
}

func TestWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Whitespace("  a \t b \n c "))
}

func TestDateTime(t *testing.T) {
	parsed, ok := DateTime("02/01/2026 14:30:15")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.January, 2, 14, 30, 15, 0, time.UTC), parsed)

	parsed, ok = DateTime("02-ene-2026 09:05")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.January, 2, 9, 5, 0, 0, time.UTC), parsed)

	parsed, ok = DateTime("02/01/2026")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC), parsed)

	_, ok = DateTime("not a date")
	assert.False(t, ok)
}

func TestHasDate(t *testing.T) {
	assert.True(t, HasDate("02/01/2026 77428"))
	assert.True(t, HasDate("02-ene-2026"))
	assert.False(t, HasDate("77428 2 14"))
}
