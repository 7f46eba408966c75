// Package csvimport reads merchant transaction exports. The files arrive in
// whatever shape the ticketing backoffice produced them: UTF-8 or Latin-1,
// comma or semicolon separated, with Spanish headers that vary between
// exports. The importer detects all of that instead of asking the operator.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/settlement-reconciliation/internal/recon/normalize"
)

// Row is one parsed transaction from the export.
type Row struct {
	OrderID       string
	TransactionID string
	Approval      string
	AmountCents   int64
	Currency      string
	OpDate        string
	OpDateTime    *time.Time
	Last4         string
	Terminal      string
	Lote          string
	Cupon         string
}

// Result carries the parsed rows together with the import diagnostics the
// operator sees in the review screen.
type Result struct {
	Rows           []*Row
	CurrencyIssues []string
	Skipped        int
}

// logical fields extracted from the export
const (
	fieldOrderID       = "order_id"
	fieldTransactionID = "transaction_id"
	fieldApproval      = "approval"
	fieldAmount        = "amount"
	fieldCurrency      = "currency"
	fieldDate          = "date"
	fieldCard          = "card"
	fieldTerminal      = "terminal"
	fieldLote          = "lote"
	fieldCupon         = "cupon"
	fieldCombined      = "combined" // Terminal/Lote/Cupon in one cell
)

// headerAliases lists the header spellings seen across processor export
// versions, in priority order, already normalized (lowercase, no
// diacritics, punctuation collapsed to spaces).
var headerAliases = map[string][]string{
	fieldOrderID: {"pedido", "order", "orderid", "order id"},
	fieldDate:    {"fecha", "fecha operacion", "fecha de operacion", "fecha de venta"},
	fieldTransactionID: {
		"identificacion de transaccion", "identificacion",
		"transaction id", "id transaccion",
	},
	fieldCard: {
		"numero de tarjeta cuenta", "numero de tarjeta linea",
		"numero de tarjeta", "numero de cuenta",
		"identificacion numero de", "tarjeta",
	},
	fieldApproval: {
		"aprobacion", "autorizacion", "autorizacion del pagador",
		"authorization", "auth",
	},
	fieldTerminal: {"terminal", "terminal id", "id terminal"},
	fieldLote:     {"lote", "batch"},
	fieldCupon:    {"cupon", "coupon"},
	fieldCombined: {"terminal lote cupon", "term lote cupon"},
	fieldAmount:   {"importe", "monto", "amount", "total"},
	fieldCurrency: {"moneda", "currency", "divisa"},
}

var (
	mojibakeRe = regexp.MustCompile("Ã.|�")
	digitRunRe = regexp.MustCompile(`\d+`)
)

// spanishVocab are words expected in a correctly decoded export; used to
// score candidate decodings when the mojibake check is inconclusive.
var spanishVocab = []string{"pedido", "fecha", "importe", "moneda", "aprob", "autoriz", "tarjeta"}

// mojibake sequences produced by reading Latin-1 text as UTF-8
var mojibakeFixes = strings.NewReplacer(
	"Ã¡", "á",
	"Ã©", "é",
	"Ã­", "í",
	"Ã³", "ó",
	"Ãº", "ú",
	"Ã±", "ñ",
	"Ã", "Á",
	"Ã", "É",
	"Ã", "Í",
	"Ã", "Ó",
	"Ã", "Ú",
	"Ã", "Ñ",
)

// Parse reads the full export and returns the usable rows. Rows without an
// order ID cannot be attributed to anyone and are counted, not kept. An
// empty document, or one whose header lacks the required columns, yields an
// empty result rather than an error: callers judge the import by its counts.
func Parse(data []byte) *Result {
	result := &Result{}

	text := decodeExport(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return result
	}

	columns := mapHeader(header)
	if missing := missingRequired(columns); len(missing) > 0 {
		return result
	}

	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}
		rowNum++

		row, issue := parseRecord(record, columns, rowNum)
		if row == nil {
			result.Skipped++
			continue
		}
		if issue != "" {
			result.CurrencyIssues = append(result.CurrencyIssues, issue)
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}

func parseRecord(record []string, columns map[string]int, rowNum int) (*Row, string) {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	orderID := cell(fieldOrderID)
	if orderID == "" {
		return nil, ""
	}

	row := &Row{
		OrderID:       orderID,
		TransactionID: cell(fieldTransactionID),
		Approval:      cell(fieldApproval),
		AmountCents:   normalize.AmountCents(cell(fieldAmount)),
		Currency:      normalize.Currency(cell(fieldCurrency)),
		OpDate:        normalize.Date(cell(fieldDate)),
		Last4:         normalize.Last4(cell(fieldCard)),
		Terminal:      cell(fieldTerminal),
		Lote:          cell(fieldLote),
		Cupon:         cell(fieldCupon),
	}

	if parsed, ok := normalize.DateTime(cell(fieldDate)); ok {
		row.OpDateTime = &parsed
	}

	if combined := cell(fieldCombined); combined != "" {
		applyCombined(row, combined)
	}

	var issue string
	if row.Currency != "" && row.Currency != "ARS" {
		issue = fmt.Sprintf("row %d: currency %s (order %s)", rowNum, row.Currency, orderID)
	}
	return row, issue
}

// applyCombined splits a "Terminal/Lote/Cupon" cell into its digit runs.
// Explicit per-field columns win over the combined cell.
func applyCombined(row *Row, combined string) {
	parts := digitRunRe.FindAllString(combined, -1)
	if len(parts) > 0 && row.Terminal == "" {
		row.Terminal = parts[0]
	}
	if len(parts) > 1 && row.Lote == "" {
		row.Lote = parts[1]
	}
	if len(parts) > 2 && row.Cupon == "" {
		row.Cupon = parts[2]
	}
}

// decodeExport picks between a UTF-8 and a Latin-1 reading of the payload.
// Mojibake in the UTF-8 reading decides immediately; otherwise the decoding
// with the higher Spanish vocabulary score wins, UTF-8 on ties.
func decodeExport(data []byte) string {
	utf8Text := strings.ToValidUTF8(string(data), "�")
	latin1Text := decodeLatin1(data)

	if mojibakeRe.MatchString(utf8Text) && !mojibakeRe.MatchString(latin1Text) {
		return latin1Text
	}
	if vocabScore(latin1Text) > vocabScore(utf8Text) {
		return latin1Text
	}
	return utf8Text
}

func decodeLatin1(data []byte) string {
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func vocabScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, word := range spanishVocab {
		if strings.Contains(lower, word) {
			score++
		}
	}
	return score
}

// detectDelimiter counts candidate separators on the header line.
func detectDelimiter(text string) rune {
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		line = text[:idx]
	}
	best := ';'
	bestCount := strings.Count(line, ";")
	if c := strings.Count(line, ","); c > bestCount {
		best, bestCount = ',', c
	}
	if c := strings.Count(line, "\t"); c > bestCount {
		best = '\t'
	}
	return best
}

// mapHeader resolves each logical field to a column index. Exact alias
// matches are tried first across all headers, then containment in either
// direction; the first header wins.
func mapHeader(header []string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	columns := make(map[string]int)
	for field, aliases := range headerAliases {
		if idx, ok := findExact(normalized, aliases); ok {
			columns[field] = idx
			continue
		}
		if idx, ok := findContained(normalized, aliases); ok {
			columns[field] = idx
		}
	}

	// A combined Terminal/Lote/Cupon header would also match the plain
	// "terminal" alias by containment; keep it only as the combined field.
	if combinedIdx, ok := columns[fieldCombined]; ok {
		for _, field := range []string{fieldTerminal, fieldLote, fieldCupon} {
			if columns[field] == combinedIdx {
				delete(columns, field)
			}
		}
	}

	return columns
}

func findExact(normalized []string, aliases []string) (int, bool) {
	for _, alias := range aliases {
		for i, h := range normalized {
			if h == alias {
				return i, true
			}
		}
	}
	return 0, false
}

func findContained(normalized []string, aliases []string) (int, bool) {
	for _, alias := range aliases {
		for i, h := range normalized {
			if h == "" {
				continue
			}
			if strings.Contains(h, alias) || strings.Contains(alias, h) {
				return i, true
			}
		}
	}
	return 0, false
}

var (
	diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	nonAlnumRe        = regexp.MustCompile(`[^a-z0-9]+`)
)

func normalizeHeader(header string) string {
	fixed := mojibakeFixes.Replace(header)
	stripped, _, err := transform.String(diacriticStripper, fixed)
	if err != nil {
		stripped = fixed
	}
	lowered := strings.ToLower(stripped)
	return normalize.Whitespace(nonAlnumRe.ReplaceAllString(lowered, " "))
}

func missingRequired(columns map[string]int) []string {
	var missing []string
	if _, ok := columns[fieldOrderID]; !ok {
		missing = append(missing, "pedido")
	}
	if _, ok := columns[fieldAmount]; !ok {
		missing = append(missing, "importe")
	}
	return missing
}
