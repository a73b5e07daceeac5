package invoice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/zombor/ledger-scan/internal/money"
)

const (
	partyScanLines    = 5
	partyFallbackScan = 3
	totalTailLines    = 5
	tailMinimum       = 10
)

var companyKeywords = map[string]bool{
	"limited": true, "ltd": true, "pvt": true, "inc": true, "corp": true, "co": true,
	"store": true, "stores": true, "shop": true, "mart": true, "traders": true,
	"enterprise": true, "enterprises": true, "agency": true, "industries": true,
}

var (
	leadingDigit = regexp.MustCompile(`^\d`)
	dateLikeRun  = regexp.MustCompile(`[\d/\-.]{8,}`)
	titleWord    = regexp.MustCompile(`^[A-Z][a-z]+`)
)

// extractPartyName picks the counterparty from the top of the invoice.
func extractPartyName(clean []string) string {
	for i := 0; i < len(clean) && i < partyScanLines; i++ {
		line := clean[i]
		if leadingDigit.MatchString(line) || dateLikeRun.MatchString(line) {
			continue
		}
		if hasCompanyKeyword(line) || isTitleCase(line) || isAllCaps(line) {
			return line
		}
	}

	for i := 0; i < len(clean) && i < partyFallbackScan; i++ {
		if utf8.RuneCountInString(clean[i]) > 5 {
			return clean[i]
		}
	}
	return ""
}

func hasCompanyKeyword(line string) bool {
	words := strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if companyKeywords[w] {
			return true
		}
	}
	return false
}

func isTitleCase(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 || !titleWord.MatchString(words[0]) {
		return false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func isAllCaps(line string) bool {
	if utf8.RuneCountInString(line) <= 4 || line != strings.ToUpper(line) {
		return false
	}
	return strings.IndexFunc(line, unicode.IsLetter) >= 0
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:date|dated)[:\s]*(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`),
	regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`),
	regexp.MustCompile(`(?i)(\d{1,2})[\-/\s](jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\-/\s](\d{2,4})`),
}

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// extractDate returns the first date found, scanning patterns in order per
// line. Unparseable or missing dates fall back to today.
func extractDate(lines []string, now time.Time) string {
	for _, line := range lines {
		for _, pattern := range datePatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if date, ok := normalizeDate(m[1], m[2], m[3]); ok {
				return date
			}
			return today(now)
		}
	}
	return today(now)
}

// normalizeDate converts day, month and year captures to YYYY-MM-DD. A
// four-digit year is used as is, anything else is a two-digit year in the
// 2000s.
func normalizeDate(day, month, year string) (string, bool) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}

	m, ok := months[strings.ToLower(month)]
	if !ok {
		if m, err = strconv.Atoi(month); err != nil {
			return "", false
		}
	}

	if len(year) != 4 {
		year = "20" + year
	}
	y, err := strconv.Atoi(year)
	if err != nil || y > 9999 {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

func today(now time.Time) string {
	return now.Format(time.DateOnly)
}

const amountToken = `(\d+(?:,\d+)*(?:\.\d+)?)`

var (
	taxPercentPattern = regexp.MustCompile(`(?i)\b(?:GST|Tax|VAT)\b\s*:?\s*(?:@\s*)?(\d+(?:\.\d+)?)\s*%`)
	taxAmountPattern  = regexp.MustCompile(`(?i)\b(?:CGST|SGST|IGST|Tax)\b\s*:?\s*(?:@?\s*\d+(?:\.\d+)?\s*%\s*)?(?:Rs\.?|₹)?\s*` + amountToken)
	subtotalPattern   = regexp.MustCompile(`(?i)(?:Subtotal|Sub Total|Sub-Total|Total Before Tax)\s*:?\s*(?:Rs\.?|₹)?\s*` + amountToken)
	percentFollows    = regexp.MustCompile(`^\s*%`)
)

type taxInfo struct {
	tax        float64
	taxPercent float64
	subtotal   float64
}

// extractTaxInfo sums tax amounts within and across lines (CGST + SGST),
// skipping rates, and keeps the last tax percentage and the last subtotal.
func extractTaxInfo(lines []string) taxInfo {
	var info taxInfo
	for _, line := range lines {
		if m := taxPercentPattern.FindStringSubmatch(line); m != nil {
			info.taxPercent = money.Number(m[1])
		}

		if m := subtotalPattern.FindStringSubmatch(line); m != nil {
			info.subtotal = money.Number(m[1])
			continue
		}

		for _, loc := range taxAmountPattern.FindAllStringSubmatchIndex(line, -1) {
			if percentFollows.MatchString(line[loc[1]:]) {
				continue
			}
			if amount := money.Number(line[loc[2]:loc[3]]); amount > 0 {
				info.tax += amount
			}
		}
	}
	info.tax = money.Round2(info.tax)
	return info
}

var totalKeywords = []string{"total", "grand total", "net total", "amount payable", "balance due", "total amount"}

// extractTotal scans bottom-up for a total line and takes its largest number.
// Without one, the largest number above 10 in the last lines wins.
func extractTotal(lines []string) float64 {
	for i := len(lines) - 1; i >= 0; i-- {
		lower := strings.ToLower(lines[i])
		if !containsAny(lower, totalKeywords) || isSubtotalLine(lower) {
			continue
		}
		if largest := maxOf(money.Numbers(lines[i]), 0); largest > 0 {
			return largest
		}
	}

	start := len(lines) - totalTailLines
	if start < 0 {
		start = 0
	}
	var largest float64
	for _, line := range lines[start:] {
		largest = max(largest, maxOf(money.Numbers(line), tailMinimum))
	}
	return largest
}

func isSubtotalLine(lower string) bool {
	return containsAny(lower, []string{"subtotal", "sub total", "sub-total", "total before tax"})
}

// maxOf returns the largest value strictly above floor, or 0.
func maxOf(nums []float64, floor float64) float64 {
	var largest float64
	for _, n := range nums {
		if n > floor && n > largest {
			largest = n
		}
	}
	return largest
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
