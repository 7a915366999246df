package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/api"
	"github.com/insightdelivered/contract-note-reconciler/internal/broker"
	"github.com/insightdelivered/contract-note-reconciler/internal/config"
	"github.com/insightdelivered/contract-note-reconciler/internal/extractor"
	"github.com/insightdelivered/contract-note-reconciler/internal/logging"
	"github.com/insightdelivered/contract-note-reconciler/internal/writer"
)

const version = "2.0.0"

func main() {
	// CLI flags
	configFlag := flag.String("config", "", "YAML configuration file (optional)")
	brokerFlag := flag.String("broker", "", "Broker to reconcile: "+strings.Join(broker.Names(), ", ")+" (all if omitted)")
	startFlag := flag.String("start", "", "First date to reconcile, YYYY-MM-DD (overrides config)")
	endFlag := flag.String("end", "", "Date to stop before, YYYY-MM-DD (overrides config)")
	dryRunFlag := flag.Bool("dry-run", false, "Do not write the charges aggregate")
	maxFlag := flag.Int("max", 0, "Maximum contract notes to process per broker (0 = unlimited)")
	outputFlag := flag.String("output", "", "Write findings CSV to this path ({broker} is replaced by the broker key)")
	headerFlag := flag.Bool("header", true, "Include run metadata header rows in CSV")
	serveFlag := flag.Bool("serve", false, "Serve the HTTP API instead of running once")
	addrFlag := flag.String("addr", "", "API listen address (overrides config listen_addr)")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Contract Note Charges Reconciler
by Insight Delivered

Aggregates the charge summaries of brokerage contract note PDFs and reports
the days missing from either the contract notes or the financial ledger.

Usage:
  contract-note-reconciler [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Reconcile every broker for the configured range
  contract-note-reconciler --config=recon.yaml

  # One broker, one financial year, without touching the aggregate
  contract-note-reconciler --broker=zerodha --start=2022-04-01 --end=2023-04-01 --dry-run

  # Save the findings
  contract-note-reconciler --broker=axisdirect --output=reports/{broker}.csv

  # Run the API
  contract-note-reconciler --config=recon.yaml --serve --addr=:8080

Environment:
  RECON_DATA_DIR, RECON_COMPUTE_DIR, RECON_START_DATE, RECON_END_DATE,
  RECON_LOG_LEVEL, RECON_LOG_PRETTY, RECON_LISTEN_ADDR, RECON_OCR (also read
  from .env)
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("contract-note-reconciler v%s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}
	if *startFlag != "" {
		cfg.StartDate = *startFlag
	}
	if *endFlag != "" {
		cfg.EndDate = *endFlag
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Configuration error: %v\n", err)
	}
	if *addrFlag != "" {
		cfg.ListenAddr = *addrFlag
	}
	if *maxFlag < 0 {
		fatalf("--max must not be negative\n")
	}

	log := logging.New(cfg.LogLevel, os.Stderr, cfg.LogPretty || !*serveFlag)
	ext := extractor.NewPDFExtractor(log)
	ext.OCR = cfg.OCR

	if *serveFlag {
		serve(cfg.ListenAddr, cfg, ext, log)
		return
	}

	keys := broker.Names()
	if *brokerFlag != "" {
		keys = []string{strings.ToLower(*brokerFlag)}
	}

	opts := broker.RunOptions{
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
		DryRun:    *dryRunFlag,
		MaxCount:  *maxFlag,
	}
	failed := false
	for _, key := range keys {
		if err := run(key, cfg, ext, opts, *outputFlag, *headerFlag, log); err != nil {
			log.Error().Err(err).Str("broker", key).Msg("reconciliation failed")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func run(key string, cfg *config.Config, ext extractor.TableExtractor, opts broker.RunOptions, output string, includeHeader bool, log zerolog.Logger) error {
	b, err := broker.Open(key, cfg, ext, log)
	if err != nil {
		return err
	}

	rep, err := b.ComputeAll(opts)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d matched, %d missing from charges aggregate, %d missing from ledger\n",
		rep.Broker, rep.Summary.Matched, rep.Summary.LedgerOnly, rep.Summary.ChargesOnly)
	if len(rep.Findings) == 0 {
		fmt.Println("  There are no missing entries.")
	}
	for _, f := range rep.Findings {
		fmt.Printf("  %s\n", f.Message)
	}
	for _, s := range rep.Skipped {
		fmt.Printf("  Skipped: %s\n", s)
	}

	if output == "" {
		return nil
	}
	outPath := strings.ReplaceAll(output, "{broker}", key)
	w := &writer.CSVWriter{IncludeHeader: includeHeader}
	if err := w.WriteToFile(outPath, rep); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	fmt.Printf("  Output: %s\n", outPath)
	return nil
}

func serve(addr string, cfg *config.Config, ext extractor.TableExtractor, log zerolog.Logger) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.NewHandler(cfg, ext, log).RegisterRoutes(app)

	log.Info().Str("addr", addr).Msg("serving API")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
