// Package pdfimport extracts settlement lines from the text of a card
// processor settlement report. The reports are column-formatted PDFs whose
// text extraction glues columns together unpredictably, so most of the work
// here is recovering terminal, lote, cupon, card last4 and amount from
// partially fused tokens.
package pdfimport

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/settlement-reconciliation/internal/domain/shared"
	"github.com/settlement-reconciliation/internal/recon/normalize"
)

// Line is one operation recovered from the report text.
type Line struct {
	OpDate      string
	Terminal    string
	Lote        string
	Cupon       string
	Last4       string
	AmountCents int64
	Type        shared.LineType
	PlanCuota   string
	CuotaNumero int
	CuotaTotal  int
	RawLine     string
	LineIndex   int
}

// Dropped records a line that carried a transaction marker but could not be
// parsed. Surfaced to the operator instead of being silently discarded.
type Dropped struct {
	LineIndex int
	RawLine   string
	Reason    string
}

// Result is the full outcome of one report extraction.
type Result struct {
	Lines              []*Line
	Dropped            []Dropped
	DeclaredTotalCents *int64
}

var (
	amountRe     = regexp.MustCompile(`-?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})`)
	dateTokenRe  = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	gluedDateRe  = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})(\d+)`)
	ventaRe      = regexp.MustCompile(`(?i)venta\s+ctdo`)
	planRe       = regexp.MustCompile(`(?i)plan\s*cuota`)
	markerRe     = regexp.MustCompile(`(?i)venta\s+ctdo|plan\s*cuota`)
	planTokenRe  = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)
	packedSlashRe = regexp.MustCompile(`^\d+[/-]\d+[/-]\d+$`)
	digitRunRe   = regexp.MustCompile(`\d+`)
	declaredRe   = regexp.MustCompile(`(?i)total\s+(?:ventas?|de\s+ventas?|liquidaci[oó]n)\s*[:-]?\s*([\d.,-]+)`)
)

// Parse walks the extracted report text and returns every recognizable
// settlement line plus the report's own declared total, when present.
func Parse(text string) *Result {
	result := &Result{DeclaredTotalCents: declaredTotal(text)}

	expanded := expandLines(text)
	for index, current := range expanded {
		hasVenta := ventaRe.MatchString(current)
		hasPlan := planRe.MatchString(current)
		_, hasCuotaToken := findCuotaToken(current)
		hasAmount := amountRe.MatchString(current)
		looksLikeCuota := hasCuotaToken && hasAmount && normalize.HasDate(current)

		if !hasVenta && !hasPlan && !looksLikeCuota {
			continue
		}

		// Column wrap: date or amount may have landed on the next
		// physical line. One line of slack is enough in practice.
		candidate := current
		if !normalize.HasDate(candidate) || !amountRe.MatchString(candidate) {
			if index+1 < len(expanded) {
				candidate = candidate + " " + expanded[index+1]
			}
		}

		line, reason := parseLine(candidate, index)
		if line == nil {
			result.Dropped = append(result.Dropped, Dropped{
				LineIndex: index,
				RawLine:   current,
				Reason:    reason,
			})
			continue
		}
		result.Lines = append(result.Lines, line)
	}

	return result
}

// expandLines normalizes the physical lines and re-splits lines onto which
// the text extraction collapsed several operations, using the repeated
// transaction markers as split points.
func expandLines(text string) []string {
	var raw []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if cleaned := normalize.Whitespace(line); cleaned != "" {
			raw = append(raw, cleaned)
		}
	}

	var expanded []string
	for _, line := range raw {
		for _, planPart := range splitOnMarker(line, planRe) {
			expanded = append(expanded, splitOnMarker(planPart, ventaRe)...)
		}
	}
	return expanded
}

func splitOnMarker(line string, marker *regexp.Regexp) []string {
	locs := marker.FindAllStringIndex(line, -1)
	if len(locs) <= 1 {
		return []string{line}
	}

	var parts []string
	prev := 0
	for _, loc := range locs {
		if part := strings.TrimSpace(line[prev:loc[0]]); part != "" {
			parts = append(parts, part)
		}
		prev = loc[0]
	}
	if part := strings.TrimSpace(line[prev:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func parseLine(rawLine string, lineIndex int) (*Line, string) {
	line := insertSpaceAfterGluedDate(normalize.Whitespace(rawLine))

	isVenta := ventaRe.MatchString(line)
	cuotaToken, hasCuotaToken := findCuotaToken(line)
	isPlan := planRe.MatchString(line) || hasCuotaToken
	if !isVenta && !isPlan {
		return nil, "no transaction marker"
	}

	dateToken := dateTokenRe.FindString(line)
	amounts := amountRe.FindAllString(line, -1)
	if dateToken == "" || len(amounts) == 0 {
		return nil, "missing date or amount"
	}
	amountText := amounts[len(amounts)-1]

	date := normalize.Date(dateToken)
	var amount int64

	var last4, terminal, lote, cupon string

	rest := strings.TrimSpace(replaceFirst(markerRe, line, ""))
	restAfterDate := strings.TrimSpace(dateTokenRe.ReplaceAllString(rest, ""))
	tokens := strings.Fields(restAfterDate)
	if len(tokens) >= 2 {
		terminal = tokens[0]
		lote = tokens[1]
	}

	var remaining []string
	if len(tokens) > 2 {
		remaining = tokens[2:]
	}

	var planCuota string
	var cuotaNumero, cuotaTotal int
	if isPlan && len(remaining) >= 4 {
		if isDigitsOnly(remaining[0]) {
			cupon = remaining[0]
		}
		if isValidLast4(remaining[1]) {
			last4 = remaining[1]
		}
		if planTokenRe.MatchString(remaining[2]) {
			planCuota = remaining[2]
			cuotaNumero, cuotaTotal = parsePlanCuota(planCuota)
		}
	}
	if isPlan && planCuota == "" {
		found := ""
		for _, token := range append(append([]string{}, remaining...), tokens...) {
			if _, ok := findCuotaToken(token); ok {
				found = token
				break
			}
		}
		if found != "" {
			planCuota = found
			cuotaNumero, cuotaTotal = parsePlanCuota(planCuota)
		} else if hasCuotaToken {
			planCuota = cuotaToken
			cuotaNumero, cuotaTotal = parsePlanCuota(planCuota)
		}
	}
	if !isPlan && len(tokens) >= 4 {
		if isDigitsOnly(tokens[2]) {
			cupon = tokens[2]
		}
		if isValidLast4(tokens[3]) {
			last4 = tokens[3]
		}
	}

	switch {
	case len(remaining) >= 3:
		amountToken := remaining[len(remaining)-1]
		if decimalTailRe.MatchString(amountToken) {
			amountText = amountToken
			amount = normalize.AmountCents(amountToken)
		}
		if candidate := remaining[len(remaining)-2]; isValidLast4(candidate) {
			last4 = candidate
		}
		if candidate := remaining[len(remaining)-3]; isDigitsOnly(candidate) {
			cupon = candidate
		}
	case len(remaining) == 2:
		if decimalTailRe.MatchString(remaining[1]) {
			amountText = remaining[1]
			amount = normalize.AmountCents(remaining[1])
		}
		combined := remaining[0]
		if isValidLast4(combined) {
			last4 = combined
		} else if isDigitsOnly(combined) && len(combined) > 4 {
			last4 = combined[len(combined)-4:]
			cupon = combined[:len(combined)-4]
		}
	case len(remaining) == 1:
		combined := remaining[0]
		if decimalTailRe.MatchString(combined) {
			if split, ok := bestAmountSplit(combined); ok {
				last4 = split.Last4
				cupon = split.Cupon
				amount = split.AmountCents
				amountText = split.AmountText
			} else {
				amountText = combined
				amount = normalize.AmountCents(combined)
			}
		}
	}

	lineBeforeAmount := line
	if idx := strings.LastIndex(line, amountText); idx >= 0 {
		lineBeforeAmount = line[:idx]
	}
	afterDate := lineBeforeAmount
	if idx := strings.Index(lineBeforeAmount, dateToken); idx >= 0 {
		afterDate = lineBeforeAmount[idx+len(dateToken):]
	}
	remainingNums := digitRunRe.FindAllString(afterDate, -1)

	remainingNums = removeFirst(remainingNums, last4)
	remainingNums = removeFirst(remainingNums, cupon)
	if last4 == "" {
		for i := len(remainingNums) - 1; i >= 0; i-- {
			if len(remainingNums[i]) == 4 {
				last4 = remainingNums[i]
				remainingNums = append(remainingNums[:i], remainingNums[i+1:]...)
				break
			}
		}
	}
	if last4 == "" {
		for i, token := range remainingNums {
			if len(token) > 4 {
				last4 = token[len(token)-4:]
				if cupon == "" {
					cupon = token[:len(token)-4]
				}
				remainingNums = append(remainingNums[:i], remainingNums[i+1:]...)
				break
			}
		}
	}

	if isPlan && len(amounts) > 0 {
		// Installment lines repeat the installment and the plan total;
		// the larger figure is the one being settled.
		var maxCents int64
		maxText := amountText
		for _, candidate := range amounts {
			if parsed := normalize.AmountCents(candidate); parsed > maxCents {
				maxCents = parsed
				maxText = candidate
			}
		}
		amount = maxCents
		amountText = maxText
	} else if amount == 0 && amountText != "" {
		amount = normalize.AmountCents(amountText)
	}

	if last4 == "" && amountText != "" {
		last4, cupon, amount = recoverFromGiantAmount(amountText, cupon, amount)
	}

	if last4 == "" {
		digitsBefore := nonDigitRe.ReplaceAllString(lineBeforeAmount, "")
		if len(digitsBefore) >= 4 {
			last4 = digitsBefore[len(digitsBefore)-4:]
		}
	}
	if last4 == "" {
		last4 = normalize.Last4(line)
	}

	switch {
	case len(remainingNums) >= 3:
		n := len(remainingNums)
		if terminal == "" && isValidTerminal(remainingNums[n-3]) {
			terminal = remainingNums[n-3]
		}
		if lote == "" && isValidLote(remainingNums[n-2]) {
			lote = remainingNums[n-2]
		}
		if cupon == "" && !isPlan && isValidCupon(remainingNums[n-1]) {
			cupon = remainingNums[n-1]
		}
	case len(remainingNums) == 2:
		if terminal == "" && isValidTerminal(remainingNums[0]) {
			terminal = remainingNums[0]
		}
		if lote == "" && isValidLote(remainingNums[1]) {
			lote = remainingNums[1]
		}
	case len(remainingNums) == 1:
		if terminal == "" && isValidTerminal(remainingNums[0]) {
			terminal = remainingNums[0]
		}
	}

	if !isValidTerminal(terminal) {
		terminal = ""
	}
	if !isValidLote(lote) {
		lote = ""
	}
	if !isValidCupon(cupon) {
		cupon = ""
	}
	if !isValidLast4(last4) {
		last4 = ""
	}

	var fallbackNums []string
	for _, token := range tokens {
		switch {
		case isDigitsOnly(token):
			fallbackNums = append(fallbackNums, token)
		case packedSlashRe.MatchString(token):
			fallbackNums = append(fallbackNums, digitRunRe.FindAllString(token, -1)...)
		}
	}

	if last4 == "" {
		for i := len(fallbackNums) - 1; i >= 0; i-- {
			if len(fallbackNums[i]) == 4 {
				last4 = fallbackNums[i]
				break
			}
		}
	}

	if terminal == "" || lote == "" || cupon == "" {
		for i := 0; i+3 <= len(fallbackNums); i++ {
			t, l, c := fallbackNums[i], fallbackNums[i+1], fallbackNums[i+2]
			if isValidTerminal(t) && isValidLote(l) && isValidCupon(c) {
				if terminal == "" {
					terminal = t
				}
				if lote == "" {
					lote = l
				}
				if cupon == "" {
					cupon = c
				}
				break
			}
		}
	}

	if terminal == "" || lote == "" || cupon == "" || last4 == "" {
		for _, token := range tokens {
			if !isDigitsOnly(token) || len(token) < 7 {
				continue
			}
			if last4 == "" {
				if split, ok := bestPackedSplitWithLast4(token); ok {
					if terminal == "" {
						terminal = split.Terminal
					}
					if lote == "" {
						lote = split.Lote
					}
					if cupon == "" {
						cupon = split.Cupon
					}
					last4 = split.Last4
					if terminal != "" && lote != "" && cupon != "" {
						break
					}
				}
			}
			if terminal == "" || lote == "" || cupon == "" {
				if split, ok := bestPackedSplit(token); ok {
					if terminal == "" {
						terminal = split.Terminal
					}
					if lote == "" {
						lote = split.Lote
					}
					if cupon == "" {
						cupon = split.Cupon
					}
				}
			}
			if terminal != "" && lote != "" && cupon != "" && last4 != "" {
				break
			}
		}
	}

	lineType := shared.LineTypeCashSale
	if isPlan {
		lineType = shared.LineTypeInstallment
	}

	return &Line{
		OpDate:      date,
		Terminal:    terminal,
		Lote:        lote,
		Cupon:       cupon,
		Last4:       last4,
		AmountCents: amount,
		Type:        lineType,
		PlanCuota:   planCuota,
		CuotaNumero: cuotaNumero,
		CuotaTotal:  cuotaTotal,
		RawLine:     line,
		LineIndex:   lineIndex,
	}, ""
}

// recoverFromGiantAmount handles the worst fusion case: cupon, last4 and the
// amount extracted as one huge "amount" token. The leading two digits are
// read as the cupon, the next four as the last4 and the rest as the amount.
func recoverFromGiantAmount(amountText, cupon string, amount int64) (string, string, int64) {
	digits := nonDigitRe.ReplaceAllString(amountText, "")
	if len(digits) <= 8 {
		return "", cupon, amount
	}
	integerPart := digits[:len(digits)-2]
	decimals := digits[len(digits)-2:]
	if len(integerPart) <= 6 {
		return "", cupon, amount
	}

	last4 := integerPart[2:6]
	if cupon == "" {
		cupon = integerPart[:2]
	}
	amountInteger := integerPart[6:]
	if amountInteger == "" {
		amountInteger = "0"
	}
	if embedded := normalize.AmountCents(amountInteger + "." + decimals); embedded > 0 {
		amount = embedded
	}
	return last4, cupon, amount
}

func parsePlanCuota(token string) (int, int) {
	parts := strings.Split(token, "/")
	var numero, total int
	if len(parts) > 0 {
		numero, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		total, _ = strconv.Atoi(parts[1])
	}
	return numero, total
}

// findCuotaToken locates an N/M installment token, rejecting date fragments:
// both numbers must be standalone one-or-two digit runs and the token must
// not be followed by a four-digit year.
func findCuotaToken(s string) (string, bool) {
	runs := digitRunRe.FindAllStringIndex(s, -1)
	for i := 0; i+1 < len(runs); i++ {
		a, b := runs[i], runs[i+1]
		if a[1]-a[0] > 2 || b[1]-b[0] > 2 {
			continue
		}
		if b[0]-a[1] != 1 || s[a[1]] != '/' {
			continue
		}
		if a[0] > 0 && isWordByte(s[a[0]-1]) {
			continue
		}
		if b[1] < len(s) && isWordByte(s[b[1]]) {
			continue
		}
		if b[1] < len(s) && s[b[1]] == '/' {
			year := 0
			for j := b[1] + 1; j < len(s) && s[j] >= '0' && s[j] <= '9'; j++ {
				year++
			}
			if year >= 4 {
				continue
			}
		}
		return s[a[0]:b[1]], true
	}
	return "", false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		b >= '0' && b <= '9' ||
		b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z'
}

func insertSpaceAfterGluedDate(line string) string {
	loc := gluedDateRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	// Only the first occurrence; one glued date per line in practice.
	return line[:loc[3]] + " " + line[loc[3]:]
}

func replaceFirst(re *regexp.Regexp, s, replacement string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + replacement + s[loc[1]:]
}

func removeFirst(tokens []string, value string) []string {
	if value == "" {
		return tokens
	}
	for i, token := range tokens {
		if token == value {
			return append(tokens[:i], tokens[i+1:]...)
		}
	}
	return tokens
}

// declaredTotal finds the report's own "Total Ventas"/"Total Liquidación"
// figure. Reports repeat subtotals; the last occurrence is the grand total.
func declaredTotal(text string) *int64 {
	var last string
	for _, match := range declaredRe.FindAllStringSubmatch(text, -1) {
		last = match[1]
	}
	if last == "" {
		return nil
	}
	cents := normalize.AmountCents(last)
	return &cents
}
