package invoice

import (
	"strings"
)

// PlaceholderName names the item synthesized when only a total was found.
const PlaceholderName = "Invoice Item"

// RecognizedText is the output of the OCR capability: trimmed non-empty lines,
// the undivided text and an overall confidence in [0,100].
type RecognizedText struct {
	Lines      []string `json:"lines"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
}

// NewRecognizedText normalizes raw OCR output. When lines is empty the text is
// split on newlines instead.
func NewRecognizedText(lines []string, text string, confidence float64) RecognizedText {
	if len(lines) == 0 && text != "" {
		lines = strings.Split(text, "\n")
	}

	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			clean = append(clean, line)
		}
	}

	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 100:
		confidence = 100
	}

	if text == "" {
		text = strings.Join(clean, "\n")
	}

	return RecognizedText{
		Lines:      clean,
		Text:       text,
		Confidence: confidence,
	}
}

// LineItem is one invoice row.
type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Rate       float64 `json:"rate"`
	LineAmount float64 `json:"lineAmount"`
}

// ParsedInvoice is the best-effort structure extracted from recognized text.
// Fields that could not be found hold their zero value.
type ParsedInvoice struct {
	PartyName  string     `json:"partyName"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Items      []LineItem `json:"items"`
	Subtotal   float64    `json:"subtotal"`
	Tax        float64    `json:"tax"`
	TaxPercent float64    `json:"taxPercent"`
	Total      float64    `json:"total"`
	RawText    string     `json:"rawText"`
	Confidence float64    `json:"confidence"`
}

// Failed reports whether extraction found neither items nor a total.
func (p ParsedInvoice) Failed() bool {
	return p.Total == 0 && len(p.Items) == 0
}

// EnsureEditable gives a failed extraction one blank item so the reviewer
// always has a row to edit.
func EnsureEditable(p ParsedInvoice) ParsedInvoice {
	if !p.Failed() {
		return p
	}
	p.Items = []LineItem{{Name: "Item 1", Quantity: 1}}
	return p
}
