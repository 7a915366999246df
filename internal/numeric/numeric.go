// Package numeric turns extracted table cell text into exact decimal amounts.
package numeric

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FixedPlaces is the number of fractional digits kept for money fields.
const FixedPlaces = 4

// ErrInvalidDecimal is returned when a required money field cannot be parsed.
var ErrInvalidDecimal = errors.New("invalid decimal")

var (
	whitespacePattern = regexp.MustCompile(`^\s*$`)
	// Accounting convention: "(1,234.50)" is -1234.50
	bracketedPattern = regexp.MustCompile(`^\s*\(([\d.,]*)\)\s*$`)
)

// Cell is a normalized table cell. NaN marks text that could not be parsed;
// Raw always keeps the original text.
type Cell struct {
	Raw   string
	Value decimal.Decimal
	NaN   bool
}

// Fixed returns the value rounded to FixedPlaces. A NaN cell is an error.
func (c Cell) Fixed() (decimal.Decimal, error) {
	if c.NaN {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDecimal, c.Raw)
	}
	return c.Value.Round(FixedPlaces), nil
}

// String renders the cell for diagnostics.
func (c Cell) String() string {
	if c.NaN {
		return "NaN"
	}
	return c.Value.String()
}

// Normalizer converts cell text to Cells, logging every unparseable value.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer returns a Normalizer that reports parse failures to log.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize parses a cell. Blank text is zero ("no charge"), a bracketed
// amount is negative, anything else must be a decimal numeral. Failures give a
// NaN cell and a warning, never an error.
func (n *Normalizer) Normalize(text string) Cell {
	cell := Cell{Raw: text}

	if whitespacePattern.MatchString(text) {
		cell.Value = decimal.Zero
		return cell
	}

	if m := bracketedPattern.FindStringSubmatch(text); m != nil {
		v, err := parseDecimal(m[1])
		if err != nil {
			n.log.Warn().Str("text", text).Err(err).Msg("cannot convert bracketed cell to decimal")
			cell.NaN = true
			return cell
		}
		cell.Value = v.Neg()
		return cell
	}

	v, err := parseDecimal(text)
	if err != nil {
		n.log.Warn().Str("text", text).Err(err).Msg("cannot convert cell to decimal")
		cell.NaN = true
		return cell
	}
	cell.Value = v
	return cell
}

// ToFixed parses text as a required decimal and rounds it to FixedPlaces.
// When ignoreOnFailure is set an unparseable value comes back untouched as a
// NaN cell; otherwise the failure is returned as ErrInvalidDecimal.
func ToFixed(text string, ignoreOnFailure bool) (Cell, error) {
	v, err := parseDecimal(text)
	if err != nil {
		if ignoreOnFailure {
			return Cell{Raw: text, NaN: true}, nil
		}
		return Cell{}, fmt.Errorf("%w: conversion failed for cell %q", ErrInvalidDecimal, text)
	}
	return Cell{Raw: text, Value: v.Round(FixedPlaces)}, nil
}

// Sum adds cells, failing on the first NaN.
func Sum(cells ...Cell) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range cells {
		if c.NaN {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDecimal, c.Raw)
		}
		total = total.Add(c.Value)
	}
	return total, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "\u00A0", "") // non-breaking space
	return decimal.NewFromString(s)
}
