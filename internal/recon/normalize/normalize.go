// Package normalize provides the locale-aware parsing primitives shared by
// the CSV and PDF importers: amounts in the Latin-American convention
// (comma decimal separator, dot thousands separator), Spanish month names,
// masked card numbers and ARS currency spellings.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slashDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	textDateRe  = regexp.MustCompile(`(\d{1,2})[-\s]([A-Za-z]{3,})[-\s](\d{4})`)
	anyDateRe   = regexp.MustCompile(`\d{1,2}[/\-][A-Za-z]{3,}[/\-]\d{4}|\d{1,2}[/\-]\d{1,2}[/\-]\d{4}`)
	timeRe      = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?`)
	wsRe        = regexp.MustCompile(`\s+`)
	nonDigitRe  = regexp.MustCompile(`\D`)
)

var spanishMonths = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

// Whitespace collapses runs of whitespace into single spaces and trims.
func Whitespace(value string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(value, " "))
}

// AmountCents parses a human-formatted amount into integer cents. When a
// comma is present it is taken as the decimal separator and dots as thousands
// separators; otherwise the text is read as a plain decimal. Unparseable
// input yields 0 — callers must not trust a zero without checking that a
// decimal token was actually present in the source.
func AmountCents(value string) int64 {
	var cleaned strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
			cleaned.WriteRune(r)
		}
	}
	text := stripThousandsDots(cleaned.String())
	if text == "" {
		return 0
	}

	if strings.Contains(text, ",") {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	}

	parsed, ok := parseLeadingFloat(text)
	if !ok {
		return 0
	}
	return int64(math.Round(parsed * 100))
}

// stripThousandsDots removes every dot that is immediately followed by
// exactly three digits, i.e. a dot acting as a thousands separator.
func stripThousandsDots(value string) string {
	var out strings.Builder
	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' {
			out.WriteRune(runes[i])
			continue
		}
		digits := 0
		for j := i + 1; j < len(runes) && runes[j] >= '0' && runes[j] <= '9'; j++ {
			digits++
		}
		if digits == 3 {
			continue // thousands separator
		}
		out.WriteRune(runes[i])
	}
	return out.String()
}

// parseLeadingFloat parses the longest numeric prefix of value, mirroring
// how lenient float parsers treat trailing garbage.
func parseLeadingFloat(value string) (float64, bool) {
	end := 0
	seenDigit := false
	seenDot := false
	for i, r := range value {
		switch {
		case r == '-' && i == 0:
		case r == '.' && !seenDot:
			seenDot = true
		case r >= '0' && r <= '9':
			seenDigit = true
		default:
			goto done
		}
		end = i + 1
	}
done:
	if !seenDigit {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(strings.TrimSuffix(value[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// Date normalizes dd/mm/yyyy or dd-<Spanish month>-yyyy into ISO yyyy-mm-dd.
// Returns the empty string when no recognizable date is present.
func Date(value string) string {
	if m := slashDateRe.FindStringSubmatch(value); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
	}
	if m := textDateRe.FindStringSubmatch(value); m != nil {
		key := strings.ToLower(m[2])
		if len(key) > 3 {
			key = key[:3]
		}
		if month, ok := spanishMonths[key]; ok {
			return fmt.Sprintf("%s-%02d-%s", m[3], int(month), pad2(m[1]))
		}
	}
	return ""
}

func pad2(value string) string {
	if len(value) == 1 {
		return "0" + value
	}
	return value
}

// HasDate reports whether the text contains either supported date shape.
func HasDate(value string) bool {
	return slashDateRe.MatchString(value) || textDateRe.MatchString(value)
}

// Last4 returns the trailing four digits of all digit runs in the text. With
// fewer than four digits available the trimmed raw text is returned as-is.
func Last4(value string) string {
	digits := nonDigitRe.ReplaceAllString(value, "")
	if len(digits) >= 4 {
		return digits[len(digits)-4:]
	}
	return strings.TrimSpace(value)
}

// Currency maps the known ARS spellings onto "ARS" and passes anything else
// through upper-cased for the caller to flag.
func Currency(value string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	switch trimmed {
	case "":
		return ""
	case "ARS", "$", "AR$", "AR$S":
		return "ARS"
	}
	return trimmed
}

// DateTime parses a CSV date cell that may carry an hh:mm[:ss] suffix.
// The result is anchored in UTC.
func DateTime(value string) (time.Time, bool) {
	dateMatch := anyDateRe.FindString(value)
	if dateMatch == "" {
		return time.Time{}, false
	}
	date := Date(dateMatch)
	if date == "" {
		return time.Time{}, false
	}

	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, false
	}

	var hours, minutes, seconds int
	if m := timeRe.FindStringSubmatch(value); m != nil {
		hours, _ = strconv.Atoi(m[1])
		minutes, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			seconds, _ = strconv.Atoi(m[3])
		}
	}

	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hours, minutes, seconds, 0, time.UTC), true
}
