package scanning

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract implements the Recognizer interface by running the tesseract CLI
type Tesseract struct {
	path     string
	language string
}

// NewTesseract creates a Tesseract recognizer. language takes tesseract's
// syntax, e.g. "eng" or "eng+hin".
func NewTesseract(path, language string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{path: path, language: language}
}

// Name identifies the provider
func (t *Tesseract) Name() string {
	return "tesseract/" + t.language
}

// Recognize runs tesseract over the enhanced image and reads its TSV output
func (t *Tesseract) Recognize(ctx context.Context, imageData []byte, contentType string) (*Recognition, error) {
	pngData, err := prepareForOCR(imageData, contentType)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "ledger-scan-*.png")
	if err != nil {
		return nil, fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(pngData); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing temp image: %w", err)
	}

	// tesseract input.png stdout -l eng --psm 4 tsv
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, f.Name(), "stdout", "-l", t.language, "--psm", "4", "tsv")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract command failed: %w, output: %s", err, stderr.String())
	}

	recognition := parseTesseractTSV(stdout.Bytes())
	slog.Debug("Tesseract recognition", "lines", len(recognition.Lines), "confidence", recognition.Confidence)
	return recognition, nil
}

// Close is a no-op; every call runs its own process
func (t *Tesseract) Close() error {
	return nil
}

// tsv columns: level page_num block_num par_num line_num word_num left top
// width height conf text
const (
	tsvLevel = 0
	tsvBlock = 2
	tsvPar   = 3
	tsvLine  = 4
	tsvConf  = 10
	tsvText  = 11

	wordLevel = "5"
)

// parseTesseractTSV groups word rows into lines by block, paragraph and
// line number and averages word confidences into the page confidence.
func parseTesseractTSV(data []byte) *Recognition {
	var (
		lines    []string
		words    []Word
		current  []string
		lastKey  string
		confSum  float64
		confSeen int
	)

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) <= tsvText || cols[tsvLevel] != wordLevel {
			continue
		}

		text := strings.TrimSpace(cols[tsvText])
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}

		key := cols[tsvBlock] + "." + cols[tsvPar] + "." + cols[tsvLine]
		if key != lastKey {
			flush()
			lastKey = key
		}

		current = append(current, text)
		words = append(words, Word{Text: text, Confidence: conf})
		confSum += conf
		confSeen++
	}
	flush()

	var confidence float64
	if confSeen > 0 {
		confidence = confSum / float64(confSeen)
	}

	return &Recognition{
		Success:    true,
		Text:       strings.Join(lines, "\n"),
		Confidence: confidence,
		Lines:      lines,
		Words:      words,
	}
}
