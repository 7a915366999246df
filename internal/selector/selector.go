// Package selector picks the charge summary table out of the candidate
// tables extracted from a contract note.
package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// ErrSummaryTableNotFound means no candidate was tagged as the summary.
var ErrSummaryTableNotFound = errors.New("summary table not found")

// Tag classifies a candidate table.
type Tag string

const (
	TagNone    Tag = ""
	TagSummary Tag = "Summary"
	TagTrades  Tag = "Trades"
)

// MatchFunc inspects a normalized candidate (shape, column names, page) and
// returns its classification, or TagNone to reject it.
type MatchFunc func(t *models.Table) Tag

// Policy decides which summary-tagged candidate wins when several match.
type Policy int

const (
	// FirstMatch keeps the first summary table in reading order.
	FirstMatch Policy = iota
	// LastMatch scans every candidate and keeps the last summary table, which
	// tolerates a malformed leading duplicate.
	LastMatch
)

func (p Policy) String() string {
	switch p {
	case FirstMatch:
		return "first"
	case LastMatch:
		return "last"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy reads "first" or "last".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return FirstMatch, nil
	case "last":
		return LastMatch, nil
	default:
		return FirstMatch, fmt.Errorf("unknown selection policy %q (use first or last)", s)
	}
}

// Normalize promotes the first grid row to column names, collapsing newlines
// in header cells to spaces. Short rows are padded with blanks.
func Normalize(raw models.RawTable) *models.Table {
	t := &models.Table{Page: raw.Page}
	if len(raw.Cells) == 0 {
		return t
	}

	_, width := raw.Shape()
	t.Columns = make([]string, width)
	for i, h := range raw.Cells[0] {
		t.Columns[i] = strings.ReplaceAll(h, "\n", " ")
	}

	for _, row := range raw.Cells[1:] {
		r := make([]string, width)
		copy(r, row)
		t.Rows = append(t.Rows, r)
	}
	return t
}

// Select offers every candidate, in extraction order, to match and returns the
// summary table chosen by policy together with its tag.
func Select(tables []models.RawTable, match MatchFunc, policy Policy) (*models.Table, Tag, error) {
	if match == nil {
		return nil, TagNone, errors.New("no match function configured")
	}

	var found *models.Table
	for _, raw := range tables {
		t := Normalize(raw)
		if match(t) != TagSummary {
			continue
		}
		found = t
		if policy == FirstMatch {
			break
		}
	}

	if found == nil {
		return nil, TagNone, fmt.Errorf("%w among %d candidate tables", ErrSummaryTableNotFound, len(tables))
	}
	return found, TagSummary, nil
}
