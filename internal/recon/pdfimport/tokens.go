package pdfimport

import (
	"regexp"
	"sort"
	"strings"

	"github.com/settlement-reconciliation/internal/recon/normalize"
)

var (
	digitsOnlyRe    = regexp.MustCompile(`^\d+$`)
	validTerminalRe = regexp.MustCompile(`^\d{4,6}$`)
	validLoteRe     = regexp.MustCompile(`^\d{1,3}$`)
	validCuponRe    = regexp.MustCompile(`^\d{1,6}$`)
	validLast4Re    = regexp.MustCompile(`^\d{4}$`)
	nonDigitRe      = regexp.MustCompile(`\D`)
	decimalTailRe   = regexp.MustCompile(`[.,]\d{2}$`)
	thousandsFormRe = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})*$`)
	thousandsSepRe  = regexp.MustCompile(`[.,]\d{3}`)
)

func isDigitsOnly(s string) bool  { return digitsOnlyRe.MatchString(s) }
func isValidTerminal(s string) bool { return validTerminalRe.MatchString(s) }
func isValidLote(s string) bool  { return validLoteRe.MatchString(s) }
func isValidCupon(s string) bool { return validCuponRe.MatchString(s) }
func isValidLast4(s string) bool { return validLast4Re.MatchString(s) }

// packedSplit is one way of reading a run of digits as terminal/lote/cupon.
type packedSplit struct {
	Terminal string
	Lote     string
	Cupon    string
	Last4    string
	Score    int
}

// cuponLenScore prefers the coupon widths actually seen on reports: two
// digits is the common case, three next, a single digit after that.
func cuponLenScore(cupon string) int {
	switch len(cupon) {
	case 2:
		return 0
	case 3:
		return 1
	case 1:
		return 2
	default:
		return 3
	}
}

func loteLenScore(lote string) int {
	switch len(lote) {
	case 1:
		return 0
	case 2:
		return 1
	default:
		return 2
	}
}

// rankPackedSplits enumerates every terminal/lote/cupon reading of a digit
// run of at least 7 digits, cheapest score first. The terminal is fixed at
// five digits; only the lote/cupon boundary moves.
func rankPackedSplits(digits string) []packedSplit {
	if !isDigitsOnly(digits) || len(digits) < 7 {
		return nil
	}
	terminal := digits[:5]
	tail := digits[5:]

	var splits []packedSplit
	for loteLen := 1; loteLen <= 3 && loteLen <= len(tail)-1; loteLen++ {
		lote := tail[:loteLen]
		cupon := tail[loteLen:]
		if cupon == "" {
			continue
		}
		splits = append(splits, packedSplit{
			Terminal: terminal,
			Lote:     lote,
			Cupon:    cupon,
			Score:    cuponLenScore(cupon)*2 + loteLenScore(lote),
		})
	}

	sort.SliceStable(splits, func(i, j int) bool { return splits[i].Score < splits[j].Score })
	return splits
}

// bestPackedSplit returns the cheapest terminal/lote/cupon reading, if any.
func bestPackedSplit(digits string) (packedSplit, bool) {
	splits := rankPackedSplits(digits)
	if len(splits) == 0 {
		return packedSplit{}, false
	}
	return splits[0], true
}

// bestPackedSplitWithLast4 reads a run of at least 11 digits as
// terminal/lote/cupon followed by the card's last four digits.
func bestPackedSplitWithLast4(digits string) (packedSplit, bool) {
	if !isDigitsOnly(digits) || len(digits) < 11 {
		return packedSplit{}, false
	}
	split, ok := bestPackedSplit(digits[:len(digits)-4])
	if !ok {
		return packedSplit{}, false
	}
	split.Last4 = digits[len(digits)-4:]
	return split, true
}

// amountSplit is one way of reading a token that glues cupon, last4 and the
// amount together without separators.
type amountSplit struct {
	Cupon       string
	Last4       string
	AmountText  string
	AmountCents int64
	Score       int
}

// rankAmountSplits enumerates the readings of a glued token ending in a
// decimal pair, cheapest first. Readings whose amount keeps its explicit
// thousands separators outrank ones obtained by guessing the amount width,
// and within a source the usual coupon widths win; an amount with a leading
// zero is penalized because it almost always stole a digit from the last4.
func rankAmountSplits(token string) []amountSplit {
	decimals := decimalTailRe.FindString(token)
	if decimals == "" {
		return nil
	}
	integerPart := token[:len(token)-len(decimals)]
	integerDigits := nonDigitRe.ReplaceAllString(integerPart, "")
	if len(integerDigits) < 6 {
		return nil
	}

	var splits []amountSplit
	tryCandidate := func(amountDigits string, sourceScore int, amountToken string) {
		prefixLen := len(integerDigits) - len(amountDigits)
		if prefixLen <= 4 {
			return
		}
		last4 := integerDigits[prefixLen-4 : prefixLen]
		cupon := integerDigits[:prefixLen-4]
		if cupon == "" {
			return
		}
		if amountToken == "" {
			amountToken = amountDigits
		}
		amountText := amountToken + decimals
		cents := normalize.AmountCents(amountText)
		if cents == 0 {
			return
		}

		zeroPenalty := 0
		if len(amountDigits) > 1 && strings.HasPrefix(amountDigits, "0") {
			zeroPenalty = 1
		}
		splits = append(splits, amountSplit{
			Cupon:       cupon,
			Last4:       last4,
			AmountText:  amountText,
			AmountCents: cents,
			Score:       sourceScore*10 + cuponLenScore(cupon)*2 + zeroPenalty,
		})
	}

	// Prefer the shortest suffix of the integer part that is a well-formed
	// thousands-separated amount.
	if strings.ContainsAny(integerPart, ".,") {
		for i := len(integerPart) - 1; i >= 0; i-- {
			candidate := integerPart[i:]
			if !thousandsFormRe.MatchString(candidate) {
				continue
			}
			if !thousandsSepRe.MatchString(candidate) {
				continue
			}
			amountDigits := nonDigitRe.ReplaceAllString(candidate, "")
			if amountDigits == "" {
				continue
			}
			tryCandidate(amountDigits, 0, candidate)
			break
		}
	}

	if len(splits) == 0 {
		for amountLen := 1; amountLen <= 5; amountLen++ {
			if len(integerDigits) <= amountLen+4 {
				continue
			}
			tryCandidate(integerDigits[len(integerDigits)-amountLen:], 1, "")
		}
	}

	sort.SliceStable(splits, func(i, j int) bool { return splits[i].Score < splits[j].Score })
	return splits
}

func bestAmountSplit(token string) (amountSplit, bool) {
	splits := rankAmountSplits(token)
	if len(splits) == 0 {
		return amountSplit{}, false
	}
	return splits[0], true
}
