package main

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/videlboga/ReceiptScan/internal/extract"
	"github.com/videlboga/ReceiptScan/internal/metrics"
	"github.com/videlboga/ReceiptScan/internal/receipt"
	"github.com/videlboga/ReceiptScan/internal/report"
	"github.com/videlboga/ReceiptScan/internal/rules"
	"github.com/videlboga/ReceiptScan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// exitInvalid is the exit code of --check for a receipt that fails the rules
const exitInvalid = 2

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-checker")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-checker.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./uploads", "Storage directory path")
		rulesPath     = fs.StringLong("rules", "rules.yaml", "Validation rules file")
		scannerType   = fs.StringLong("scanner", "tesseract", "Scanner type: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang = fs.StringLong("tesseract-lang", "rus,eng", "Comma separated Tesseract languages")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logJSON       = fs.BoolLong("log-json", "Write logs as JSON")
		checkFile     = fs.StringLong("check", "", "Check one file, print the report and exit")
		ocrConf       = fs.Float64Long("ocr-confidence", 100, "OCR confidence for --check with a .txt file")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_CHECKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogging(*logLevel, *logJSON); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ruleStore, err := rules.NewStore(*rulesPath)
	if err != nil {
		slog.Error("Failed to load rules", "path", *rulesPath, "error", err)
		os.Exit(1)
	}

	// Text files need no scanner
	if *checkFile != "" && strings.EqualFold(filepath.Ext(*checkFile), ".txt") {
		os.Exit(runCheck(*checkFile, nil, ruleStore.Current(), *ocrConf))
	}

	var scanner scanning.Scanner
	switch *scannerType {
	case "tesseract":
		langs := strings.Split(*tesseractLang, ",")
		slog.Info("Initializing Tesseract scanner...", "languages", langs)
		scanner = scanning.NewPDFText(scanning.NewTesseract(langs...))
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}

	if *checkFile != "" {
		code := runCheck(*checkFile, scanner, ruleStore.Current(), *ocrConf)
		scanner.Close()
		os.Exit(code)
	}
	defer scanner.Close()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := receipt.NewService(db, scanner, store, ruleStore).WithMetrics(metrics.New())

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "rules", ruleStore.Path())
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			// Errors are logged by the service and the old rules stay in effect
			service.ReloadRules()
			continue
		}
		break
	}

	slog.Info("Shutting down...")
}

func setupLogging(level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// runCheck prints the report for one file and returns the exit code. A nil
// scanner means path holds recognized text.
func runCheck(path string, scanner scanning.Scanner, rs *rules.RuleSet, ocrConfidence float64) int {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read file", "path", path, "error", err)
		return 1
	}

	text, confidence := string(data), ocrConfidence
	if scanner != nil {
		doc, err := scanner.Recognize(data, "")
		if err != nil {
			slog.Error("Failed to recognize receipt", "path", path, "error", err)
			return 1
		}
		text, confidence = doc.Text, doc.Confidence
	} else if confidence < 0 || confidence > 100 {
		slog.Error("Invalid OCR confidence", "error", errors.New("must be between 0 and 100"), "value", confidence)
		return 1
	}

	verdict := rules.Validate(extract.NewDefault().Extract(text), confidence, rs)
	fmt.Print(report.Render(verdict))
	if !verdict.Valid {
		return exitInvalid
	}
	return 0
}
