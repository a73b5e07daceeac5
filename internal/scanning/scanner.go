package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/zombor/ledger-scan/internal/invoice"
)

//go:generate mockgen -destination=mocks/mock_recognizer.go -source=scanner.go Recognizer

// Word is a single recognized word with its confidence in [0,100].
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognition is the outcome of running OCR over one image. A failed
// recognition carries only Error.
type Recognition struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text,omitempty"`
	Confidence float64  `json:"confidence"`
	Lines      []string `json:"lines,omitempty"`
	Words      []Word   `json:"words,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Failed builds the failure shape for err.
func Failed(err error) *Recognition {
	return &Recognition{Success: false, Error: err.Error()}
}

// RecognizedText converts the recognition into parser input.
func (r *Recognition) RecognizedText() invoice.RecognizedText {
	return invoice.NewRecognizedText(r.Lines, r.Text, r.Confidence)
}

// Recognizer defines the interface for OCR providers
type Recognizer interface {
	// Recognize reads the text of an invoice image or PDF. It makes a single
	// attempt; ctx bounds the call.
	Recognize(ctx context.Context, imageData []byte, contentType string) (*Recognition, error)
	// Name identifies the provider in logs
	Name() string
	// Close releases provider resources
	Close() error
}

// Provider names accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderTesseract = "tesseract"
	ProviderAzure     = "azure"
)

// Config selects and configures a Recognizer.
type Config struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OllamaURL   string
	OllamaModel string

	TesseractPath     string
	TesseractLanguage string

	AzureEndpoint string
	AzureKey      string
}

// New creates the Recognizer named by cfg.Provider.
func New(cfg Config) (Recognizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	case ProviderTesseract:
		return NewTesseract(cfg.TesseractPath, cfg.TesseractLanguage), nil
	case ProviderAzure:
		return NewAzureVision(cfg.AzureEndpoint, cfg.AzureKey)
	default:
		return nil, fmt.Errorf("unknown recognizer %q (must be %s, %s, %s or %s)",
			cfg.Provider, ProviderGemini, ProviderOllama, ProviderTesseract, ProviderAzure)
	}
}

// wordsFromLines splits lines into words that share one confidence, for
// providers that only report a page-level figure.
func wordsFromLines(lines []string, confidence float64) []Word {
	var words []Word
	for _, line := range lines {
		for _, w := range strings.Fields(line) {
			words = append(words, Word{Text: w, Confidence: confidence})
		}
	}
	return words
}
