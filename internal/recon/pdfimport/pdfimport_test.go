package pdfimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settlement-reconciliation/internal/domain/shared"
)

func TestParse_CashSaleLines(t *testing.T) {
	text := "LIQUIDACION\n" +
		"Venta Ctdo 02/01/2026 77428 2 14 5982 10,00\n" +
		"Venta Ctdo 03/01/2026 77428 2 15 8844 1.000,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 2)
	assert.Empty(t, result.Dropped)

	first := result.Lines[0]
	assert.Equal(t, "2026-01-02", first.OpDate)
	assert.Equal(t, "77428", first.Terminal)
	assert.Equal(t, "2", first.Lote)
	assert.Equal(t, "14", first.Cupon)
	assert.Equal(t, "5982", first.Last4)
	assert.Equal(t, int64(1000), first.AmountCents)
	assert.Equal(t, shared.LineTypeCashSale, first.Type)

	second := result.Lines[1]
	assert.Equal(t, "2026-01-03", second.OpDate)
	assert.Equal(t, "15", second.Cupon)
	assert.Equal(t, "8844", second.Last4)
	assert.Equal(t, int64(100000), second.AmountCents)
}

func TestParse_DateGluedToTerminal(t *testing.T) {
	text := "Venta Ctdo 02/01/202677428 2 14 5982 10,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, "2026-01-02", line.OpDate)
	assert.Equal(t, "77428", line.Terminal)
	assert.Equal(t, "2", line.Lote)
	assert.Equal(t, "14", line.Cupon)
	assert.Equal(t, "5982", line.Last4)
	assert.Equal(t, int64(1000), line.AmountCents)
}

func TestParse_InstallmentLine(t *testing.T) {
	text := "Plan Cuota 02/01/2026 77428 2 21 9600 01/03 350,00 1.050,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, shared.LineTypeInstallment, line.Type)
	assert.Equal(t, "77428", line.Terminal)
	assert.Equal(t, "2", line.Lote)
	assert.Equal(t, "21", line.Cupon)
	assert.Equal(t, "9600", line.Last4)
	assert.Equal(t, "01/03", line.PlanCuota)
	assert.Equal(t, 1, line.CuotaNumero)
	assert.Equal(t, 3, line.CuotaTotal)
	// Installment lines list the installment and the plan total; the
	// larger one is settled.
	assert.Equal(t, int64(105000), line.AmountCents)
}

func TestParse_SeveralOperationsCollapsedOntoOneLine(t *testing.T) {
	text := "Venta Ctdo 02/01/2026 77428 2 14 5982 10,00 Venta Ctdo 03/01/2026 77428 2 15 8844 1.000,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "14", result.Lines[0].Cupon)
	assert.Equal(t, "15", result.Lines[1].Cupon)
	assert.Equal(t, int64(100000), result.Lines[1].AmountCents)
}

func TestParse_WrappedLineRecoveredFromNextLine(t *testing.T) {
	text := "Plan Cuota 77428 2 21 9600 01/03\n" +
		"02/01/2026 350,00 1.050,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, "2026-01-02", line.OpDate)
	assert.Equal(t, "21", line.Cupon)
	assert.Equal(t, "9600", line.Last4)
	assert.Equal(t, "01/03", line.PlanCuota)
	assert.Equal(t, int64(105000), line.AmountCents)
}

func TestParse_PackedTerminalLoteCupon(t *testing.T) {
	text := "Venta Ctdo 02/01/2026 77428214 5982 10,00\n"

	result := Parse(text)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, "77428", line.Terminal)
	assert.Equal(t, "2", line.Lote)
	assert.Equal(t, "14", line.Cupon)
	assert.Equal(t, "5982", line.Last4)
	assert.Equal(t, int64(1000), line.AmountCents)
}

func TestParse_UnparseableMarkerLineIsReported(t *testing.T) {
	text := "Venta Ctdo sin datos\n"

	result := Parse(text)
	assert.Empty(t, result.Lines)
	require.Len(t, result.Dropped, 1)
	assert.Equal(t, "missing date or amount", result.Dropped[0].Reason)
	assert.Contains(t, result.Dropped[0].RawLine, "Venta Ctdo")
}

func TestParse_NonTransactionTextIgnored(t *testing.T) {
	text := "LIQUIDACION NRO 123\nComercio 1234567\nFecha de Pago 02/01/2026\n"

	result := Parse(text)
	assert.Empty(t, result.Lines)
	assert.Empty(t, result.Dropped)
}

func TestParse_DeclaredTotal(t *testing.T) {
	text := "Venta Ctdo 02/01/2026 77428 2 14 1234 1.234,56\n" +
		"Total Ventas: 1.234,56\n" +
		"Total Liquidacion: 3.234,56\n"

	result := Parse(text)
	require.NotNil(t, result.DeclaredTotalCents)
	// The last declared figure is the grand total.
	assert.Equal(t, int64(323456), *result.DeclaredTotalCents)
}

func TestParse_NoDeclaredTotal(t *testing.T) {
	result := Parse("Venta Ctdo 02/01/2026 77428 2 14 5982 10,00\n")
	assert.Nil(t, result.DeclaredTotalCents)
}
