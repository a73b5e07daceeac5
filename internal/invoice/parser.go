package invoice

import (
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/ledger-scan/internal/money"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Parser extracts invoice structure from recognized text. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	timeSource TimeSource
}

// NewParser creates a Parser using the wall clock for missing dates
func NewParser() *Parser {
	return &Parser{timeSource: defaultTimeSource{}}
}

// NewParserWithTimeSource creates a Parser with a custom clock for testing
func NewParserWithTimeSource(ts TimeSource) *Parser {
	return &Parser{timeSource: ts}
}

// ParseText splits raw text into lines and parses it.
func (p *Parser) ParseText(text string) ParsedInvoice {
	return p.ParseInvoice(NewRecognizedText(nil, text, 0))
}

// ParseInvoice extracts party, date, items, tax and total. It never fails;
// anything it cannot find keeps its zero value, except the date which falls
// back to today.
func (p *Parser) ParseInvoice(rt RecognizedText) ParsedInvoice {
	lines := make([]string, 0, len(rt.Lines))
	for _, line := range rt.Lines {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	clean := CleanLines(lines)

	parsed := ParsedInvoice{
		PartyName:  extractPartyName(clean),
		Date:       extractDate(lines, p.timeSource.Now()),
		Items:      []LineItem{},
		RawText:    rt.Text,
		Confidence: rt.Confidence,
	}

	strategy, items := selectStrategy(itemCandidates(lines))
	if len(items) > 0 {
		parsed.Items = items
	}

	tax := extractTaxInfo(lines)
	parsed.Tax = tax.tax
	parsed.TaxPercent = tax.taxPercent
	parsed.Subtotal = tax.subtotal

	parsed.Total = extractTotal(lines)

	if len(parsed.Items) == 0 && parsed.Total > 0 {
		parsed.Items = []LineItem{{
			Name:       PlaceholderName,
			Quantity:   1,
			Rate:       parsed.Total,
			LineAmount: parsed.Total,
		}}
	}

	if parsed.Total == 0 && len(parsed.Items) > 0 {
		var sum float64
		for _, item := range parsed.Items {
			sum += item.LineAmount
		}
		parsed.Total = money.Round2(sum)
	}

	slog.Debug("Parsed invoice",
		"party", parsed.PartyName,
		"date", parsed.Date,
		"strategy", strategy,
		"items", len(parsed.Items),
		"total", parsed.Total,
	)

	return parsed
}
