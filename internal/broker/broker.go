package broker

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/aggregate"
	"github.com/insightdelivered/contract-note-reconciler/internal/config"
	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/extractor"
	"github.com/insightdelivered/contract-note-reconciler/internal/ledger"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
	"github.com/insightdelivered/contract-note-reconciler/internal/reconcile"
	"github.com/insightdelivered/contract-note-reconciler/internal/selector"
	"github.com/insightdelivered/contract-note-reconciler/internal/sheet"
)

// ErrConfig is returned when a broker cannot be set up.
var ErrConfig = errors.New("broker configuration error")

// ErrUnknownBroker is returned for a key with no definition.
var ErrUnknownBroker = errors.New("unknown broker")

// Config is a definition with paths resolved and overrides applied.
type Config struct {
	Definition

	LedgerPath    string
	NotesDir      string
	AggregatePath string

	// LedgerDateLayout is LedgerDateFormat as a Go layout.
	LedgerDateLayout string
	LedgerFilter     ledger.Filter
}

// NewConfig merges the application settings and the broker's overrides into
// def and checks that nothing required is missing.
func NewConfig(def Definition, app *config.Config, over config.BrokerConfig) (*Config, error) {
	if over.Name != "" {
		def.Name = over.Name
	}
	if over.LedgerDateColumn != "" {
		def.LedgerDateColumn = over.LedgerDateColumn
	}
	if over.LedgerDateFormat != "" {
		def.LedgerDateFormat = over.LedgerDateFormat
	}
	if over.ChargesDateColumn != "" {
		def.ChargesDateColumn = over.ChargesDateColumn
	}
	if over.TrailingPages != nil {
		def.TrailingPages = *over.TrailingPages
	}
	if over.SelectionPolicy != "" {
		p, err := selector.ParsePolicy(over.SelectionPolicy)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, def.Key, err)
		}
		def.Policy = p
	}
	if over.OnError != "" {
		p, err := aggregate.ParseFailurePolicy(over.OnError)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, def.Key, err)
		}
		def.OnError = p
	}
	if over.LedgerFilters != nil {
		def.LedgerFilters = over.LedgerFilters
	}

	if err := def.validate(); err != nil {
		return nil, err
	}

	cfg := &Config{Definition: def}

	layout, err := dates.Layout(def.LedgerDateFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, def.Key, err)
	}
	cfg.LedgerDateLayout = layout

	filters := make([]ledger.Filter, 0, len(def.LedgerFilters))
	for _, rule := range def.LedgerFilters {
		f, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, def.Key, err)
		}
		filters = append(filters, f)
	}
	if len(filters) > 0 {
		cfg.LedgerFilter = ledger.All(filters...)
	}

	cfg.LedgerPath = pick(over.LedgerPath, filepath.Join(app.DataDir, "FinancialLedger", def.Name, def.Name+"_FinancialLedger_Transactions.xlsx"))
	cfg.NotesDir = pick(over.NotesDir, filepath.Join(app.DataDir, "ContractNotes", def.Name))
	cfg.AggregatePath = pick(over.AggregatePath, filepath.Join(app.ComputeDir, def.Name, "charges.xlsx"))
	return cfg, nil
}

func (d Definition) validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: broker %q has no name", ErrConfig, d.Key)
	case d.Match == nil:
		return fmt.Errorf("%w: %s has no table match function", ErrConfig, d.Name)
	case d.NewPostProcess == nil:
		return fmt.Errorf("%w: %s has no summary post-process function", ErrConfig, d.Name)
	case len(d.Fields) == 0:
		return fmt.Errorf("%w: %s has no numeric field list", ErrConfig, d.Name)
	case d.LedgerDateColumn == "" || d.ChargesDateColumn == "":
		return fmt.Errorf("%w: %s is missing a date column", ErrConfig, d.Name)
	case d.TrailingPages < 0:
		return fmt.Errorf("%w: %s has a negative trailing page count", ErrConfig, d.Name)
	}
	return nil
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// LedgerReportName names the ledger in findings.
func (c *Config) LedgerReportName() string { return c.Name + " Financial Ledger" }

// ChargesReportName names the charges aggregate in findings.
func (c *Config) ChargesReportName() string { return c.Name + " Charges Aggregate" }

// RunOptions bound one run.
type RunOptions struct {
	StartDate string
	EndDate   string
	DryRun    bool
	MaxCount  int
}

// Report is the outcome of ComputeAll.
type Report struct {
	RunID      string    `json:"runId"`
	Broker     string    `json:"broker"`
	StartDate  string    `json:"startDate,omitempty"`
	EndDate    string    `json:"endDate,omitempty"`
	DryRun     bool      `json:"dryRun"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	LedgerRows       int  `json:"ledgerRows"`
	DocumentsAdded   int  `json:"documentsAdded"`
	AggregateRecords int  `json:"aggregateRecords"`
	AggregateSaved   bool `json:"aggregateSaved"`

	Summary    reconcile.Summary   `json:"summary"`
	Findings   []reconcile.Finding `json:"findings"`
	Mismatches []reconcile.Row     `json:"mismatches"`
	Skipped    []string            `json:"skipped,omitempty"`
}

// Broker runs the pipeline for one configured broker.
type Broker struct {
	cfg        *Config
	ledger     *ledger.Loader
	aggregator *aggregate.Aggregator
	normalizer *numeric.Normalizer
	log        zerolog.Logger
}

// New returns a Broker reading contract notes through ext.
func New(cfg *Config, ext extractor.TableExtractor, log zerolog.Logger) *Broker {
	log = log.With().Str("broker", cfg.Name).Logger()
	return &Broker{
		cfg:        cfg,
		ledger:     ledger.NewLoader(log),
		aggregator: aggregate.New(ext, sheet.NewAggregateStore(log), log),
		normalizer: numeric.NewNormalizer(log),
		log:        log,
	}
}

// Config returns the broker's resolved configuration.
func (b *Broker) Config() *Config {
	return b.cfg
}

// ReadLedger loads the filtered ledger postings in the run's date range.
func (b *Broker) ReadLedger(opts RunOptions) (*models.LedgerDataset, error) {
	return b.ledger.Load(b.cfg.LedgerPath, ledger.Options{
		DateColumn: b.cfg.LedgerDateColumn,
		DateLayout: b.cfg.LedgerDateLayout,
		Filter:     b.cfg.LedgerFilter,
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
	})
}

// ReadDocuments aggregates the broker's contract note folder.
func (b *Broker) ReadDocuments(opts RunOptions) (*aggregate.Result, error) {
	return b.aggregator.AggregateFolder(b.cfg.NotesDir, aggregate.Options{
		AggregatePath: b.cfg.AggregatePath,
		StartDate:     opts.StartDate,
		EndDate:       opts.EndDate,
		MaxCount:      opts.MaxCount,
		DryRun:        opts.DryRun,
		TrailingPages: b.cfg.TrailingPages,
		DateColumn:    b.cfg.ChargesDateColumn,
		Fields:        b.cfg.Fields,
		Dates:         dates.NewExtractor(b.cfg.DatePatterns...),
		Match:         b.cfg.Match,
		Policy:        b.cfg.Policy,
		PostProcess:   b.cfg.NewPostProcess(b.normalizer),
		OnError:       b.cfg.OnError,
	})
}

// Reconcile joins the ledger and the aggregate on date.
func (b *Broker) Reconcile(ds *models.LedgerDataset, charges *models.ChargesAggregate) []reconcile.Row {
	return reconcile.Reconcile(ds, charges)
}

// Report turns the join into directional findings and logs each one.
func (b *Broker) Report(rows []reconcile.Row) []reconcile.Finding {
	findings := reconcile.Report(rows, b.cfg.LedgerReportName(), b.cfg.ChargesReportName())
	if len(findings) == 0 {
		b.log.Info().Msg("there are no missing entries")
		return findings
	}
	for _, f := range findings {
		b.log.Warn().Str("date", f.Date).Str("kind", string(f.Kind)).Msg(f.Message)
	}
	return findings
}

// ComputeAll reads the ledger and the contract notes, reconciles them and
// reports the gaps.
func (b *Broker) ComputeAll(opts RunOptions) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		Broker:    b.cfg.Name,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	log := b.log.With().Str("run_id", rep.RunID).Logger()
	log.Info().Str("start", opts.StartDate).Str("end", opts.EndDate).Bool("dry_run", opts.DryRun).Msg("reconciliation started")

	ds, err := b.ReadLedger(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.cfg.Name, err)
	}
	res, err := b.ReadDocuments(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.cfg.Name, err)
	}

	// only the run's range is reconciled, the aggregate file may hold more
	charges := models.NewChargesAggregate(res.Aggregate.DateColumn, res.Aggregate.Fields)
	for _, rec := range res.Aggregate.Records {
		if dates.InRange(rec.Date, opts.StartDate, opts.EndDate) {
			if err := charges.Add(rec); err != nil {
				return nil, fmt.Errorf("%s: %w", b.cfg.Name, err)
			}
		}
	}

	rows := b.Reconcile(ds, charges)
	rep.LedgerRows = len(ds.Records)
	rep.DocumentsAdded = res.Added
	rep.AggregateRecords = res.Aggregate.Len()
	rep.AggregateSaved = res.Saved
	rep.Summary = reconcile.Summarize(rows)
	rep.Mismatches = reconcile.FindMismatches(rows)
	rep.Findings = b.Report(rows)
	for _, err := range res.SkippedErrors() {
		rep.Skipped = append(rep.Skipped, err.Error())
	}
	rep.FinishedAt = time.Now().UTC()

	log.Info().
		Int("matched", rep.Summary.Matched).
		Int("ledger_only", rep.Summary.LedgerOnly).
		Int("charges_only", rep.Summary.ChargesOnly).
		Int("skipped", len(rep.Skipped)).
		Dur("elapsed", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("reconciliation finished")
	return rep, nil
}

// Open looks up key, applies the configuration and returns a ready Broker.
func Open(key string, app *config.Config, ext extractor.TableExtractor, log zerolog.Logger) (*Broker, error) {
	def, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownBroker, key, Names())
	}
	cfg, err := NewConfig(def, app, app.Broker(key))
	if err != nil {
		return nil, err
	}
	return New(cfg, ext, log), nil
}
