package scanning

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the LLM providers. It asks for a plain
// transcription; structure is extracted locally by the invoice parser.
const transcriptionPrompt = `You are reading a photographed or scanned purchase/sales invoice or bill. Transcribe ALL printed and handwritten text exactly as it appears, top to bottom.

Rules:
- One array entry per printed line, in reading order.
- Keep numbers, currency symbols (₹, Rs.), percentages, dates and punctuation exactly as printed. Do not compute or correct anything.
- Keep table rows on a single line with columns separated by single spaces, e.g. "Rice 10 50 500".
- Skip lines you cannot read at all rather than guessing.
- Estimate how legible the document was as a confidence between 0 and 100.

Return ONLY valid JSON in this exact format:
{
  "lines": ["first line", "second line"],
  "confidence": 0
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimePDF  = "application/pdf"

	// maxOCRDimension bounds the longest side of images sent to local OCR.
	maxOCRDimension = 2000
)

// renderPDF renders the first page of a PDF; invoices are single page.
func renderPDF(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes PDF, HEIC and the standard formats. Phone photos are
// rotated according to their EXIF orientation.
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == mimePDF:
		return renderPDF(imageData)
	case isHEICFormat(imageData) || isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// normalizeMimeType lowercases and trims contentType, defaulting to JPEG.
func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		return mimeJPEG
	}
	return mimeType
}

// prepareImageData returns the upload as PNG. PNG input is passed through
// untouched.
func prepareImageData(imageData []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMimeType(contentType)
	if mimeType == mimePNG && !isHEICFormat(imageData) {
		return imageData, nil
	}

	img, err := decodeImage(imageData, mimeType)
	if err != nil {
		return nil, fmt.Errorf("converting %s to PNG: %w", mimeType, err)
	}
	return encodePNG(img)
}

// Enhance prepares a PNG for character recognition: grayscale, stronger
// contrast, sharpening, gamma lift and a bound on size.
func Enhance(pngData []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decoding image for enhancement: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustGamma(img, 1.2)

	b := img.Bounds()
	if b.Dx() > maxOCRDimension || b.Dy() > maxOCRDimension {
		img = imaging.Fit(img, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}

	return encodePNG(img)
}

// prepareForOCR converts and enhances an upload for the local OCR engines.
func prepareForOCR(imageData []byte, contentType string) ([]byte, error) {
	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}
	return Enhance(pngData)
}
