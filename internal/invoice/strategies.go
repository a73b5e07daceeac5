package invoice

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zombor/ledger-scan/internal/money"
)

const (
	maxRate        = 1000000
	maxSinglePrice = 100000
	maxNameLength  = 100
)

// Strategy recognizes one line-item layout.
type Strategy struct {
	Name  string
	Match func(line string) (LineItem, bool)
}

// Strategies lists the line-item layouts from most to least structured.
var Strategies = []Strategy{
	{Name: "table", Match: matchTable},
	{Name: "qty-rate", Match: matchQtyRate},
	{Name: "single-price", Match: matchSinglePrice},
}

var (
	tablePattern   = regexp.MustCompile(`^(.+?)\s+(\d+(?:\.\d+)?)\s+` + amountToken + `\s+` + amountToken + `$`)
	qtyRatePattern = regexp.MustCompile(`^(.+?)\s+(\d+(?:\.\d+)?)\s*[xX×]\s*` + amountToken + `(?:\s*=?\s*` + amountToken + `)?`)
	singlePattern  = regexp.MustCompile(`^(.+?)\s+(?:Rs\.?|₹)?\s*` + amountToken + `$`)
	summaryWords   = regexp.MustCompile(`(?i)total|tax|discount|subtotal|paid|balance`)
)

// matchTable reads "name qty rate amount".
func matchTable(line string) (LineItem, bool) {
	m := tablePattern.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}

	name := strings.TrimSpace(m[1])
	qty := money.Number(m[2])
	rate := money.Number(m[3])
	amount := money.Number(m[4])
	if name == "" || qty <= 0 || rate <= 0 || rate >= maxRate {
		return LineItem{}, false
	}
	if amount == 0 {
		amount = money.Round2(qty * rate)
	}
	return LineItem{Name: name, Quantity: qty, Rate: rate, LineAmount: amount}, true
}

// matchQtyRate reads "name qty x rate [=] [amount]".
func matchQtyRate(line string) (LineItem, bool) {
	m := qtyRatePattern.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}

	name := strings.TrimSpace(m[1])
	qty := money.Number(m[2])
	rate := money.Number(m[3])
	if name == "" || qty <= 0 || rate <= 0 {
		return LineItem{}, false
	}

	amount := money.Round2(qty * rate)
	if m[4] != "" {
		amount = money.Number(m[4])
	}
	return LineItem{Name: name, Quantity: qty, Rate: rate, LineAmount: amount}, true
}

// matchSinglePrice reads "name amount" as one unit at that price.
func matchSinglePrice(line string) (LineItem, bool) {
	if summaryWords.MatchString(line) {
		return LineItem{}, false
	}
	m := singlePattern.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}

	name := strings.TrimSpace(m[1])
	amount := money.Number(m[2])
	n := utf8.RuneCountInString(name)
	if n <= 2 || n >= maxNameLength || amount <= 0 || amount >= maxSinglePrice {
		return LineItem{}, false
	}
	return LineItem{Name: name, Quantity: 1, Rate: amount, LineAmount: amount}, true
}

// selectStrategy runs each strategy over all candidate lines and commits to the
// first one that matches anything. Strategies are never mixed within an invoice.
func selectStrategy(candidates []string) (string, []LineItem) {
	for _, strategy := range Strategies {
		var items []LineItem
		for _, line := range candidates {
			if item, ok := strategy.Match(line); ok {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return strategy.Name, items
		}
	}
	return "", nil
}

func itemCandidates(lines []string) []string {
	candidates := make([]string, 0, len(lines))
	for _, line := range lines {
		if isItemCandidate(line) {
			candidates = append(candidates, line)
		}
	}
	return candidates
}
