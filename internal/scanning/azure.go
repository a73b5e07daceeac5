package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// azureConfidence is reported for Azure results; the printed-text OCR API
// returns no confidence of its own.
const azureConfidence = 90

// AzureVision implements the Recognizer interface using Azure Computer Vision
type AzureVision struct {
	client *computervision.BaseClient
}

// NewAzureVision creates an Azure Computer Vision recognizer
func NewAzureVision(endpoint, apiKey string) (*AzureVision, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and key are required")
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureVision{client: &client}, nil
}

// Name identifies the provider
func (a *AzureVision) Name() string {
	return "azure-vision"
}

// Recognize sends the enhanced image to the printed text OCR endpoint
func (a *AzureVision) Recognize(ctx context.Context, imageData []byte, contentType string) (*Recognition, error) {
	pngData, err := prepareForOCR(imageData, contentType)
	if err != nil {
		return nil, err
	}

	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(pngData)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("recognizing printed text: %w", err)
	}

	recognition := recognitionFromOCRResult(result)
	slog.Debug("Azure recognition", "lines", len(recognition.Lines))
	return recognition, nil
}

// Close is a no-op for the REST client
func (a *AzureVision) Close() error {
	return nil
}

// recognitionFromOCRResult flattens regions, lines and words into text lines.
func recognitionFromOCRResult(result computervision.OcrResult) *Recognition {
	var (
		lines []string
		words []Word
	)

	if result.Regions != nil {
		for _, region := range *result.Regions {
			if region.Lines == nil {
				continue
			}
			for _, line := range *region.Lines {
				if line.Words == nil {
					continue
				}
				var parts []string
				for _, word := range *line.Words {
					if word.Text == nil || strings.TrimSpace(*word.Text) == "" {
						continue
					}
					text := strings.TrimSpace(*word.Text)
					parts = append(parts, text)
					words = append(words, Word{Text: text, Confidence: azureConfidence})
				}
				if len(parts) > 0 {
					lines = append(lines, strings.Join(parts, " "))
				}
			}
		}
	}

	var confidence float64
	if len(lines) > 0 {
		confidence = azureConfidence
	}

	return &Recognition{
		Success:    true,
		Text:       strings.Join(lines, "\n"),
		Confidence: confidence,
		Lines:      lines,
		Words:      words,
	}
}
