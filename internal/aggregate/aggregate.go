// Package aggregate walks a folder of contract notes and folds their summary
// tables into one charges aggregate per broker.
package aggregate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/extractor"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
	"github.com/insightdelivered/contract-note-reconciler/internal/selector"
)

var (
	// ErrFolderNotFound is returned when the contract note folder is missing.
	ErrFolderNotFound = errors.New("contract note folder not found")
	// ErrExtraction wraps failures of the table engine on one document.
	ErrExtraction = errors.New("table extraction failed")
	// ErrInvalidOptions is returned for options that cannot drive a run.
	ErrInvalidOptions = errors.New("invalid aggregation options")
)

// PostProcessFunc turns the selected summary table of one document into a
// record carrying the broker's full field set. It must not do I/O.
type PostProcessFunc func(path, date string, t *models.Table) (models.SummaryRecord, error)

// Store loads and saves aggregates between runs.
type Store interface {
	Load(path, dateColumn string, fields []string) (*models.ChargesAggregate, bool, error)
	Save(path string, agg *models.ChargesAggregate) error
}

// FailurePolicy decides what a document-local failure does to the run.
type FailurePolicy int

const (
	// FailFast stops the run at the first failing document.
	FailFast FailurePolicy = iota
	// SkipDocument drops the failing document and carries on. Integrity
	// failures still stop the run.
	SkipDocument
)

func (p FailurePolicy) String() string {
	if p == SkipDocument {
		return "skip"
	}
	return "fail"
}

// ParseFailurePolicy reads "fail" or "skip"; empty means fail.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "failfast":
		return FailFast, nil
	case "skip", "skipdocument":
		return SkipDocument, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy %q", s)
}

// DocumentError locates a failure: the document path, its date when known,
// and the cause.
type DocumentError struct {
	Path string
	Date string
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("%s (%s): %v", e.Path, e.Date, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Options configure one aggregation run.
type Options struct {
	// AggregatePath is the aggregate file loaded at start and saved at the
	// end. Empty means start empty and save nothing.
	AggregatePath string
	// StartDate and EndDate bound document dates to [StartDate, EndDate).
	StartDate, EndDate string
	// MaxCount caps the documents accepted in this run; 0 is unlimited.
	MaxCount int
	// DryRun skips the final save.
	DryRun bool
	// TrailingPages is the number of last pages scanned; 0 scans all.
	TrailingPages int

	DateColumn  string
	Fields      []string
	Dates       *dates.Extractor
	Match       selector.MatchFunc
	Policy      selector.Policy
	PostProcess PostProcessFunc
	OnError     FailurePolicy
}

func (o Options) validate() error {
	switch {
	case o.DateColumn == "":
		return fmt.Errorf("%w: no date column", ErrInvalidOptions)
	case len(o.Fields) == 0:
		return fmt.Errorf("%w: no fields", ErrInvalidOptions)
	case o.Match == nil:
		return fmt.Errorf("%w: no match function", ErrInvalidOptions)
	case o.PostProcess == nil:
		return fmt.Errorf("%w: no post-process function", ErrInvalidOptions)
	case o.MaxCount < 0 || o.TrailingPages < 0:
		return fmt.Errorf("%w: negative count", ErrInvalidOptions)
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	Aggregate *models.ChargesAggregate
	// Examined counts the PDF files seen, Added the records appended.
	Examined int
	Added    int
	// Saved is set when the aggregate file was rewritten.
	Saved bool
	// Skipped collects the document errors tolerated under SkipDocument.
	Skipped *multierror.Error
}

// SkippedErrors returns the tolerated document errors, in walk order.
func (r *Result) SkippedErrors() []error {
	if r.Skipped == nil {
		return nil
	}
	return r.Skipped.Errors
}

// Aggregator runs the per-document pipeline over a folder.
type Aggregator struct {
	extractor extractor.TableExtractor
	store     Store
	log       zerolog.Logger
}

// New returns an Aggregator. store may be nil when no aggregate file is used.
func New(ext extractor.TableExtractor, store Store, log zerolog.Logger) *Aggregator {
	return &Aggregator{extractor: ext, store: store, log: log}
}

// AggregateFolder processes every PDF under folder, in lexical order within
// each directory, and returns the aggregate extended with the new documents.
// Dates already in the loaded aggregate are never reprocessed.
func (a *Aggregator) AggregateFolder(folder string, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}
	if opts.Dates == nil {
		opts.Dates = dates.NewExtractor()
	}

	agg, err := a.load(opts)
	if err != nil {
		return nil, err
	}
	present := agg.Dates()
	res := &Result{Aggregate: agg}

	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		res.Examined++

		date, ok := opts.Dates.Extract(filepath.Base(path))
		switch {
		case !ok:
			a.log.Debug().Str("file", path).Msg("no date in file name, skipping")
			return nil
		case !dates.InRange(date, opts.StartDate, opts.EndDate):
			a.log.Debug().Str("file", path).Str("date", date).Msg("date out of range, skipping")
			return nil
		}
		if _, seen := present[date]; seen {
			a.log.Debug().Str("file", path).Str("date", date).Msg("date already aggregated, skipping")
			return nil
		}

		if err := a.processDocument(agg, path, date, opts); err != nil {
			docErr := &DocumentError{Path: path, Date: date, Err: err}
			if opts.OnError == SkipDocument && isDocumentLocal(err) {
				a.log.Warn().Str("file", path).Str("date", date).Err(err).Msg("skipping document")
				res.Skipped = multierror.Append(res.Skipped, docErr)
				return nil
			}
			return docErr
		}
		res.Added++
		a.log.Info().Str("file", path).Str("date", date).Msg("added contract note")

		if opts.MaxCount > 0 && res.Added >= opts.MaxCount {
			a.log.Info().Int("max", opts.MaxCount).Msg("document limit reached")
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if res.Added > 0 && !opts.DryRun && opts.AggregatePath != "" && a.store != nil {
		if err := a.store.Save(opts.AggregatePath, agg); err != nil {
			return nil, fmt.Errorf("save aggregate: %w", err)
		}
		res.Saved = true
	}

	a.log.Info().
		Str("folder", folder).
		Int("examined", res.Examined).
		Int("added", res.Added).
		Int("skipped", len(res.SkippedErrors())).
		Int("total", agg.Len()).
		Bool("dry_run", opts.DryRun).
		Msg("aggregation finished")
	return res, nil
}

func (a *Aggregator) load(opts Options) (*models.ChargesAggregate, error) {
	if opts.AggregatePath == "" || a.store == nil {
		return models.NewChargesAggregate(opts.DateColumn, opts.Fields), nil
	}
	agg, found, err := a.store.Load(opts.AggregatePath, opts.DateColumn, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("load aggregate: %w", err)
	}
	if !found {
		a.log.Info().Str("file", opts.AggregatePath).Msg("no existing aggregate, starting empty")
		return models.NewChargesAggregate(opts.DateColumn, opts.Fields), nil
	}
	return agg, nil
}

// processDocument runs one contract note through page selection, table
// selection and post-processing, then appends the record.
func (a *Aggregator) processDocument(agg *models.ChargesAggregate, path, date string, opts Options) error {
	var pages []int
	if opts.TrailingPages > 0 {
		n, err := a.extractor.PageCount(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		pages = extractor.TrailingPages(n, opts.TrailingPages)
	}

	tables, err := a.extractor.ExtractTables(path, pages)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	table, _, err := selector.Select(tables, opts.Match, opts.Policy)
	if err != nil {
		return err
	}
	a.log.Debug().Str("file", path).Int("page", table.Page).Msg("summary table selected")

	rec, err := opts.PostProcess(path, date, table)
	if err != nil {
		return err
	}
	rec.Date = date
	if rec.Document == "" {
		rec.Document = path
	}
	return agg.Add(rec)
}

// isDocumentLocal reports whether err only spoils its own document. Integrity
// failures never are.
func isDocumentLocal(err error) bool {
	if errors.Is(err, numeric.ErrInvalidDecimal) || errors.Is(err, models.ErrSchemaMismatch) {
		return false
	}
	return errors.Is(err, selector.ErrSummaryTableNotFound) ||
		errors.Is(err, models.ErrColumnMissing) ||
		errors.Is(err, models.ErrDuplicateDate) ||
		errors.Is(err, ErrExtraction)
}
