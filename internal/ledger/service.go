package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/zombor/ledger-scan/internal/invoice"
	"github.com/zombor/ledger-scan/internal/reconcile"
	"github.com/zombor/ledger-scan/internal/scanning"
)

const (
	// DefaultDraftTTL is how long an unconfirmed draft is kept
	DefaultDraftTTL = 30 * time.Minute
	// DefaultLowStockThreshold is the closing stock at or below which an alert is raised
	DefaultLowStockThreshold = 10

	dateLayout = "2006-01-02"
)

// IDGenerator generates unique record IDs
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

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	DraftTTL          time.Duration
	LowStockThreshold float64
}

// Service scans invoices into drafts and books confirmed invoices, payments
// and stock into the ledger
type Service struct {
	db         DB
	recognizer scanning.Recognizer
	storage    Storage
	parser     *invoice.Parser
	reconciler *reconcile.Reconciler
	drafts     *cache.Cache
	threshold  float64

	idGenerator IDGenerator
	timeSource  TimeSource

	// mu serialises read-modify-write cycles over the collections
	mu sync.Mutex
}

// NewService creates a new Service with uuid IDs and the wall clock
func NewService(db DB, recognizer scanning.Recognizer, storage Storage, opts Options) *Service {
	return NewServiceWithDeps(db, recognizer, storage, opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = DefaultDraftTTL
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}

	s := &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		parser:      invoice.NewParserWithTimeSource(timeSrc),
		reconciler:  reconcile.New(),
		drafts:      cache.New(opts.DraftTTL, opts.DraftTTL/2),
		threshold:   opts.LowStockThreshold,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
	s.drafts.OnEvicted(s.discardDraftImage)
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips a phone-generated filename down to a short, safe one
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	return base + ext
}

// ScanInvoice stores the image, runs OCR once and turns the text into a
// reconciled draft for review. Only a failure of the recognizer itself is an
// error; text that yields nothing still produces an editable draft.
func (s *Service) ScanInvoice(ctx context.Context, filename string, data []byte, contentType string) (*Draft, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	imageFile, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	recognition, err := s.recognizer.Recognize(ctx, data, contentType)
	if err == nil && recognition == nil {
		err = errors.New("recognizer returned no result")
	}
	if err == nil && !recognition.Success {
		err = errors.New(recognition.Error)
	}
	if err != nil {
		slog.Error("Failed to recognize invoice",
			"recognizer", s.recognizer.Name(),
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if delErr := s.storage.Delete(imageFile); delErr != nil {
			slog.Warn("Failed to delete image", "image", imageFile, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}

	parsed := s.parser.ParseInvoice(recognition.RecognizedText())
	reconciled := s.reconciler.Reconcile(parsed)

	draft := Draft{
		ID:          id,
		ImageFile:   imageFile,
		ContentType: contentType,
		Recognizer:  s.recognizer.Name(),
		NeedsReview: parsed.Failed() || reconciled.Corrections.TotalCorrections > 0,
		CreatedAt:   now,
		Draft:       reconcile.NewDraft(reconciled),
	}
	s.drafts.Set(id, draft, cache.DefaultExpiration)

	slog.Info("Scanned invoice",
		"draft_id", id,
		"recognizer", draft.Recognizer,
		"confidence", reconciled.Confidence,
		"items", len(reconciled.Items),
		"total", reconciled.Total,
		"total_change_pct", reconciled.TotalChangePercentage,
		"corrections", reconciled.Corrections.TotalCorrections,
	)
	return &draft, nil
}

// GetDraft returns a draft still under review
func (s *Service) GetDraft(id string) (*Draft, error) {
	v, ok := s.drafts.Get(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	draft := v.(Draft)
	return &draft, nil
}

// EditDraft applies reviewer edits in order and keeps the draft alive for
// another TTL
func (s *Service) EditDraft(id string, edits ...reconcile.Edit) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.GetDraft(id)
	if err != nil {
		return nil, err
	}

	for _, edit := range edits {
		draft.Draft = s.reconciler.ApplyEdit(draft.Draft, edit)
	}
	draft.NeedsReview = draft.Corrections.TotalCorrections > 0

	s.drafts.Set(id, *draft, cache.DefaultExpiration)
	return draft, nil
}

// DiscardDraft drops a draft and its image
func (s *Service) DiscardDraft(id string) error {
	if _, ok := s.drafts.Get(id); !ok {
		return ErrDraftNotFound
	}
	s.drafts.Delete(id)
	return nil
}

// forgetDraft drops a confirmed draft. Its image now belongs to the ledger
// record, so the value is blanked first to keep the eviction hook off it.
func (s *Service) forgetDraft(id string) {
	s.drafts.Set(id, Draft{ID: id}, cache.DefaultExpiration)
	s.drafts.Delete(id)
}

// discardDraftImage runs whenever a draft leaves the cache
func (s *Service) discardDraftImage(id string, v interface{}) {
	draft, ok := v.(Draft)
	if !ok || draft.ImageFile == "" {
		return
	}
	if err := s.storage.Delete(draft.ImageFile); err != nil {
		slog.Warn("Failed to delete draft image", "draft_id", id, "image", draft.ImageFile, "error", err)
	}
}

// Reconcile validates a transaction without storing anything
func (s *Service) Reconcile(tx reconcile.Transaction) reconcile.Result {
	return s.reconciler.ValidateTransaction(tx)
}

// ReconcileText parses invoice text typed or pasted by hand and reconciles
// it without storing anything
func (s *Service) ReconcileText(text string) (reconcile.ReconciledInvoice, error) {
	if strings.TrimSpace(text) == "" {
		return reconcile.ReconciledInvoice{}, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return s.reconciler.Reconcile(s.parser.ParseText(text)), nil
}

// Image kinds accepted by GetInvoiceImage
const (
	ImageDraft    = "draft"
	ImagePurchase = "purchase"
	ImageSale     = "sale"
)

// GetInvoiceImage returns the scanned image behind a draft, purchase or sale
func (s *Service) GetInvoiceImage(kind, id string) ([]byte, string, error) {
	var imageFile, contentType string

	switch kind {
	case ImageDraft:
		draft, err := s.GetDraft(id)
		if err != nil {
			return nil, "", err
		}
		imageFile, contentType = draft.ImageFile, draft.ContentType
	case ImagePurchase:
		purchase, err := s.GetPurchase(id)
		if err != nil {
			return nil, "", err
		}
		imageFile, contentType = purchase.ImageFile, purchase.ContentType
	case ImageSale:
		sale, err := s.GetSale(id)
		if err != nil {
			return nil, "", err
		}
		imageFile, contentType = sale.ImageFile, sale.ContentType
	default:
		return nil, "", fmt.Errorf("image kind %q: %w", kind, ErrNotFound)
	}

	if imageFile == "" {
		return nil, "", fmt.Errorf("%s %s has no image: %w", kind, id, ErrNotFound)
	}

	data, err := s.storage.Get(imageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, contentType, nil
}

// today formats the current date the way records store it
func (s *Service) today() string {
	return s.timeSource.Now().Format(dateLayout)
}
