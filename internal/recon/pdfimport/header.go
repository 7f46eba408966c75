package pdfimport

import (
	"regexp"
	"sort"

	"github.com/settlement-reconciliation/internal/recon/normalize"
)

var (
	paymentDateRe = regexp.MustCompile(`(?i)fecha\s+de\s+pago[:\s]*([0-9]{2}/[0-9]{2}/[0-9]{4})`)
	liqNumberRe   = regexp.MustCompile(`(?i)nro\.?\s+liquidaci[oóÃ]n[:\s]*([0-9]+)`)
	liqNumberAltRe = regexp.MustCompile(`(?i)nro\.?\s+liq[:\s]*([0-9]+)`)
)

// LiquidationDate reads the payment date from the report header. When the
// header has none, the earliest operation date among the extracted lines is
// used instead. Returns "" when neither is available.
func LiquidationDate(text string, lineDates []string) string {
	if m := paymentDateRe.FindStringSubmatch(text); m != nil {
		if normalized := normalize.Date(m[1]); normalized != "" {
			return normalized
		}
	}

	distinct := make([]string, 0, len(lineDates))
	seen := make(map[string]struct{}, len(lineDates))
	for _, d := range lineDates {
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		distinct = append(distinct, d)
	}
	if len(distinct) == 0 {
		return ""
	}
	sort.Strings(distinct)
	return distinct[0]
}

// LiquidationNumber reads the settlement number from the report header.
// Returns "" when the header carries none.
func LiquidationNumber(text string) string {
	if m := liqNumberRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := liqNumberAltRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
