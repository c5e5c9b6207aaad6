package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/videlboga/ReceiptScan/internal/extract"
	"github.com/videlboga/ReceiptScan/internal/metrics"
	"github.com/videlboga/ReceiptScan/internal/pattern"
	"github.com/videlboga/ReceiptScan/internal/report"
	"github.com/videlboga/ReceiptScan/internal/rules"
	"github.com/videlboga/ReceiptScan/internal/scanning"
)

var (
	// ErrInvalidInput marks errors caused by the caller's data
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoFile is returned for checks that were made from text
	ErrNoFile = errors.New("check has no file")
)

// IDGenerator generates unique IDs for checks
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs receipts through recognition, extraction and validation and
// keeps the results
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	rules       *rules.Store
	extractor   *extract.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
	metrics     *metrics.Metrics
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, ruleStore *rules.Store) *Service {
	return NewServiceWithDeps(db, scanner, storage, ruleStore, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, ruleStore *rules.Store, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		rules:       ruleStore,
		extractor:   extract.NewDefault(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WithMetrics makes the service record check metrics
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
	fileExtension       = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)
)

// sanitizeFilename cleans up a filename by removing special characters and
// truncating long names sent by phones
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	if !fileExtension.MatchString(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 50
	if utf8.RuneCountInString(base) > maxLen {
		base = string([]rune(base)[:maxLen])
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessReceipt stores the uploaded file, recognizes its text and checks it
// against the current rules
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Check, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if s.scanner == nil {
		return nil, fmt.Errorf("no scanner configured")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		s.metrics.IncrementCheck("error", SourceFile)
		return nil, fmt.Errorf("saving file: %w", err)
	}

	start := time.Now()
	doc, err := s.scanner.Recognize(data, contentType)
	if err != nil {
		slog.Error("Failed to recognize receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.cleanup(savedPath)
		s.metrics.IncrementCheck("error", SourceFile)
		return nil, fmt.Errorf("recognizing receipt: %w", err)
	}
	s.metrics.ObserveRecognize(doc.Engine, time.Since(start))

	check := s.evaluate(id, doc.Text, doc.Confidence, now)
	check.Source = SourceFile
	check.Filename = savedPath
	check.ContentType = contentType
	check.Engine = doc.Engine

	if err := s.db.SaveCheck(check); err != nil {
		s.cleanup(savedPath)
		s.metrics.IncrementCheck("error", SourceFile)
		return nil, fmt.Errorf("saving check to database: %w", err)
	}
	s.record(check)
	return check, nil
}

// CheckText checks already recognized text. ocrConfidence is the
// recognition engine's confidence, 0 to 100.
func (s *Service) CheckText(text string, ocrConfidence float64) (*Check, error) {
	if ocrConfidence < 0 || ocrConfidence > 100 {
		return nil, fmt.Errorf("%w: ocr confidence must be between 0 and 100, got %v", ErrInvalidInput, ocrConfidence)
	}

	check := s.evaluate(s.idGenerator.Generate(), text, ocrConfidence, s.timeSource.Now())
	check.Source = SourceText

	if err := s.db.SaveCheck(check); err != nil {
		s.metrics.IncrementCheck("error", SourceText)
		return nil, fmt.Errorf("saving check to database: %w", err)
	}
	s.record(check)
	return check, nil
}

func (s *Service) evaluate(id, text string, ocrConfidence float64, now time.Time) *Check {
	candidates := s.extractor.Extract(text)
	verdict := rules.Validate(candidates, ocrConfidence, s.rules.Current())
	return &Check{
		ID:            id,
		Text:          text,
		OCRConfidence: ocrConfidence,
		Candidates:    candidates,
		Items:         s.extractor.Items(text),
		Verdict:       verdict,
		Report:        report.Render(verdict),
		CreatedAt:     now,
	}
}

func (s *Service) record(check *Check) {
	result := "invalid"
	if check.Verdict.Valid {
		result = "valid"
	}
	slog.Info("Receipt checked",
		"id", check.ID,
		"source", check.Source,
		"valid", check.Verdict.Valid,
		"ocr_confidence", check.OCRConfidence,
		"confidence", check.Verdict.Confidence,
		"candidates", len(check.Candidates),
	)
	s.metrics.IncrementCheck(result, check.Source)
	s.metrics.ObserveConfidence(check.OCRConfidence, check.Verdict.Confidence)
}

func (s *Service) cleanup(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetCheck retrieves a check by ID
func (s *Service) GetCheck(id string) (*Check, error) {
	check, err := s.db.GetCheck(id)
	if err != nil {
		return nil, fmt.Errorf("getting check: %w", err)
	}
	return check, nil
}

// ListChecks returns all checks, newest first
func (s *Service) ListChecks() ([]*Check, error) {
	checks, err := s.db.ListChecks()
	if err != nil {
		return nil, fmt.Errorf("listing checks: %w", err)
	}
	return checks, nil
}

// DeleteCheck removes a check and its file
func (s *Service) DeleteCheck(id string) error {
	check, err := s.db.GetCheck(id)
	if err != nil {
		return fmt.Errorf("getting check for deletion: %w", err)
	}

	if check.Filename != "" {
		if err := s.storage.Delete(check.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", check.Filename, "error", err)
		}
	}

	if err := s.db.DeleteCheck(id); err != nil {
		return fmt.Errorf("deleting check from database: %w", err)
	}
	return nil
}

// GetCheckFile retrieves the uploaded file of a check
func (s *Service) GetCheckFile(id string) ([]byte, string, error) {
	check, err := s.db.GetCheck(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting check: %w", err)
	}
	if check.Filename == "" {
		return nil, "", ErrNoFile
	}

	data, err := s.storage.Get(check.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting check file: %w", err)
	}
	return data, check.ContentType, nil
}

// RulesSummary describes the rules in effect
func (s *Service) RulesSummary() rules.Summary {
	return s.rules.Current().Summary()
}

// ReloadRules reads the rules file again. On error the rules in effect are
// kept.
func (s *Service) ReloadRules() (rules.Summary, error) {
	rs, err := s.rules.Reload()
	if err != nil {
		slog.Error("Failed to reload rules", "path", s.rules.Path(), "error", err)
		s.metrics.IncrementReload(false)
		return rules.Summary{}, fmt.Errorf("reloading rules: %w", err)
	}
	slog.Info("Rules reloaded", "path", s.rules.Path(), "phones", len(rs.ValidPhones), "amounts", len(rs.ValidAmounts))
	s.metrics.IncrementReload(true)
	return rs.Summary(), nil
}

// AddValidValue puts a value on the valid list of kind until the next reload
func (s *Service) AddValidValue(kind pattern.Kind, value string) (rules.Summary, error) {
	rs, err := s.rules.Add(kind, value)
	if err != nil {
		return rules.Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	slog.Info("Valid value added", "kind", kind, "value", value)
	return rs.Summary(), nil
}
