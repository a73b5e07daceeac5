package main

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/ledger-scan/internal/ledger"
	"github.com/zombor/ledger-scan/internal/logging"
	"github.com/zombor/ledger-scan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("ledger-scan")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "ledger-scan.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./invoices", "Invoice image directory")
		recognizer    = fs.StringLong("recognizer", scanning.ProviderGemini, "OCR provider: gemini, ollama, tesseract or azure")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		tesseractPath = fs.StringLong("tesseract-path", "tesseract", "Path to the tesseract binary")
		tesseractLang = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		azureEndpoint = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey      = fs.StringLong("azure-key", "", "Azure Computer Vision key")
		draftTTL      = fs.DurationLong("draft-ttl", ledger.DefaultDraftTTL, "How long unconfirmed drafts are kept")
		threshold     = fs.Float64Long("low-stock", ledger.DefaultLowStockThreshold, "Closing stock at or below which an alert is raised")
		sweepSchedule = fs.StringLong("sweep-schedule", ledger.DefaultSweepSchedule, "Cron schedule of the low stock sweep (empty disables it)")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat     = fs.StringLong("log-format", logging.FormatText, "Log format: text or json")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LEDGER_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Init(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(config{
		port:          *port,
		dbPath:        *dbPath,
		storagePath:   *storagePath,
		draftTTL:      *draftTTL,
		threshold:     *threshold,
		sweepSchedule: *sweepSchedule,
		auth:          ledger.BasicAuth{Username: *authUser, Password: *authPass},
		scanning: scanning.Config{
			Provider:          *recognizer,
			GeminiAPIKey:      firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
			GeminiModel:       *geminiModel,
			OllamaURL:         *ollamaURL,
			OllamaModel:       *ollamaModel,
			TesseractPath:     *tesseractPath,
			TesseractLanguage: *tesseractLang,
			AzureEndpoint:     *azureEndpoint,
			AzureKey:          *azureKey,
		},
	}); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}
