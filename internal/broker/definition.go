// Package broker binds the per-broker strategies (file name dates, table
// matching, summary post-processing, ledger filters) to the shared pipeline
// and runs a reconciliation for one broker.
package broker

import (
	"sort"
	"strings"

	"github.com/insightdelivered/contract-note-reconciler/internal/aggregate"
	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/ledger"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
	"github.com/insightdelivered/contract-note-reconciler/internal/selector"
)

// PostProcessBuilder makes a broker's summary post-processor around the
// run's normalizer.
type PostProcessBuilder func(n *numeric.Normalizer) aggregate.PostProcessFunc

// Definition is everything that differs between brokers. Adding a broker
// means adding a Definition; the pipeline does not change.
type Definition struct {
	// Key is the registry and config key, Name the display name used in
	// paths and reports.
	Key  string
	Name string

	DatePatterns []dates.Pattern

	LedgerDateColumn string
	// LedgerDateFormat is a strftime format for text dates, empty for native
	// spreadsheet dates.
	LedgerDateFormat string
	LedgerFilters    []ledger.FilterRule

	ChargesDateColumn string
	Fields            []string

	TrailingPages int
	Policy        selector.Policy
	OnError       aggregate.FailurePolicy

	Match          selector.MatchFunc
	NewPostProcess PostProcessBuilder
}

var registry = map[string]func() Definition{
	"zerodha":    Zerodha,
	"axisdirect": AxisDirect,
}

// Lookup returns the built-in definition for key, case-insensitively.
func Lookup(key string) (Definition, bool) {
	mk, ok := registry[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Definition{}, false
	}
	return mk(), true
}

// Names lists the registered broker keys in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
