package money

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest absolute difference between a claimed and a
// calculated amount that is still treated as equal (one cent).
const Tolerance = 0.01

// epsilon absorbs float64 representation error when comparing against Tolerance,
// e.g. 1.00-0.99 == 0.010000000000000009.
const epsilon = 1e-9

var (
	currencyTokens = regexp.MustCompile(`(?i)(₹|\$|€|£|¥|\binr\b|\brs\.?)`)
	numberRun      = regexp.MustCompile(`\d+(?:,\d+)*(?:\.\d+)?`)
)

// Round2 rounds to cents, half away from zero, on value*100.
func Round2(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*100) / 100
}

// Within reports whether a and b differ by at most Tolerance.
func Within(a, b float64) bool {
	return math.Abs(a-b)-Tolerance <= epsilon
}

// ParseAmount parses a user or OCR supplied amount such as "₹ 1,234.50".
// Unparseable input yields 0.
func ParseAmount(s string) float64 {
	cleaned := currencyTokens.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if cleaned == "" {
		return 0
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return Round2(f)
}

// Parse accepts a number or a string and returns its amount. Numbers pass
// through unchanged; anything else yields 0.
func Parse(value any) float64 {
	switch v := value.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		return ParseAmount(v.String())
	case decimal.Decimal:
		f, _ := v.Float64()
		return finite(f)
	case string:
		return ParseAmount(v)
	case nil:
		return 0
	}
	return 0
}

// DifferencePercentage returns how far corrected moved from original, in percent.
func DifferencePercentage(original, corrected float64) float64 {
	if original == 0 {
		return 0
	}
	return Round2((corrected - original) / original * 100)
}

// Numbers returns every number found in line, thousands separators removed.
func Numbers(line string) []float64 {
	runs := numberRun.FindAllString(line, -1)
	nums := make([]float64, 0, len(runs))
	for _, run := range runs {
		n, err := strconv.ParseFloat(strings.ReplaceAll(run, ",", ""), 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

// Number parses a single captured number token, separators removed. Invalid
// tokens yield 0.
func Number(token string) float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(token), ",", ""), 64)
	if err != nil {
		return 0
	}
	return n
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
