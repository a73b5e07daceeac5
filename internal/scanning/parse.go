package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

type transcription struct {
	Lines      []string `json:"lines"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// defaultLLMConfidence is used when a model omits its confidence estimate.
const defaultLLMConfidence = 80

// parseTranscriptionJSON parses the JSON transcription returned by an LLM
// provider, tolerating markdown fences and chatter around the object.
func parseTranscriptionJSON(text string) (*Recognition, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var t transcription
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	raw := t.Lines
	if len(raw) == 0 && t.Text != "" {
		raw = strings.Split(t.Text, "\n")
	}
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	confidence := float64(defaultLLMConfidence)
	if t.Confidence != nil {
		confidence = *t.Confidence
		// Some models answer on a 0..1 scale.
		if confidence > 0 && confidence <= 1 {
			confidence *= 100
		}
		confidence = min(max(confidence, 0), 100)
	}

	return &Recognition{
		Success:    true,
		Text:       strings.Join(lines, "\n"),
		Confidence: confidence,
		Lines:      lines,
		Words:      wordsFromLines(lines, confidence),
	}, nil
}
