package invoice

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[*\-.=_~#|]+$`),
	regexp.MustCompile(`(?i)^page\s*\d+`),
	regexp.MustCompile(`(?i)^thank\s*you`),
	regexp.MustCompile(`(?i)^visit\s+us`),
	regexp.MustCompile(`(?i)^(www\.|https?://)`),
	regexp.MustCompile(`^\+\d`),
	regexp.MustCompile(`(?i)^(tel|ph|phone|mob|mobile)\b\s*[.:]`),
	regexp.MustCompile(`(?i)^(gstin|pan)\b`),
}

var (
	phoneNumber = regexp.MustCompile(`^\(?\d{2,5}\)?[\s\-]?\d{3,5}[\s\-]?\d{3,5}$`)
	taxID       = regexp.MustCompile(`^[A-Z0-9]{15}$`)
)

// IsNoise reports whether line carries no invoice content: symbol rules, page
// markers, boilerplate, URLs, phone numbers, tax IDs and very short lines.
// It is advisory; totals and tax are still scanned on noise lines.
func IsNoise(line string) bool {
	if utf8.RuneCountInString(line) < 3 {
		return true
	}
	for _, pattern := range noisePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	if phoneNumber.MatchString(line) && countDigits(line) >= 10 {
		return true
	}
	if taxID.MatchString(line) && countDigits(line) > 0 {
		return true
	}
	return false
}

// CleanLines drops noise lines, keeping order.
func CleanLines(lines []string) []string {
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		if !IsNoise(line) {
			clean = append(clean, line)
		}
	}
	return clean
}

var itemNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(tax invoice|invoice|bill|receipt)\b`),
	regexp.MustCompile(`(?i)^(date|time|tel|ph|mob|email|address)\b`),
	regexp.MustCompile(`(?i)^(gstin|pan|cin|fssai)\b`),
	regexp.MustCompile(`(?i)^(thank you|visit|call|order)\b`),
	regexp.MustCompile(`^[A-Z0-9]{15,}$`),
}

var headerOrTotalKeywords = []string{
	"item", "description", "qty", "quantity", "rate", "price", "amount",
	"total", "subtotal", "grand total", "net total", "tax", "gst", "cgst", "sgst", "igst",
	"discount", "balance", "paid", "invoice", "bill", "receipt",
}

// IsHeaderOrTotalRow reports whether line is a column header or a
// total/tax row. A keyword marks the row when it is the whole line, or when
// it appears in a line shorter than 20 characters.
func IsHeaderOrTotalRow(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	short := utf8.RuneCountInString(line) < 20
	for _, keyword := range headerOrTotalKeywords {
		if lower == keyword {
			return true
		}
		if short && strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func isItemCandidate(line string) bool {
	if IsNoise(line) {
		return false
	}
	for _, pattern := range itemNoisePatterns {
		if pattern.MatchString(line) {
			return false
		}
	}
	if IsHeaderOrTotalRow(line) {
		return false
	}
	return countDigits(line) > 0
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
