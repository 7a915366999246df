package numeric

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())

	tests := []struct {
		input    string
		expected string
		nan      bool
	}{
		{"25.99", "25.99", false},
		{"1,234.56", "1234.56", false},
		{"(13.50)", "-13.5", false},
		{"(1,234.5678)", "-1234.5678", false},
		{"-0.75", "-0.75", false},
		{" 42 ", "42", false},
		{"", "0", false},
		{"   ", "0", false},
		{"\t", "0", false},
		{"\n", "0", false},
		{"abc", "", true},
		{"()", "", true},
		{"12.3.4", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := n.Normalize(tt.input)
			if got.NaN != tt.nan {
				t.Fatalf("Normalize(%q).NaN: got %v, want %v", tt.input, got.NaN, tt.nan)
			}
			if tt.nan {
				return
			}
			want := decimal.RequireFromString(tt.expected)
			if !got.Value.Equal(want) {
				t.Errorf("Normalize(%q): got %s, want %s", tt.input, got.Value, want)
			}
		})
	}
}

func TestNormalizeLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	n := NewNormalizer(zerolog.New(&buf))

	cell := n.Normalize("n/a")

	assert.True(t, cell.NaN)
	assert.Equal(t, "n/a", cell.Raw)
	assert.Contains(t, buf.String(), `"text":"n/a"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNormalizeRoundTrip(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	values := []string{"0", "0.0001", "1", "12.5", "999999.9999", "-0.0001", "-1", "-1234.5678", "-87654321.1"}

	for _, s := range values {
		v := decimal.RequireFromString(s)
		text := v.String()
		if v.IsNegative() {
			text = "(" + v.Neg().String() + ")"
		}
		got := n.Normalize(text)
		require.False(t, got.NaN, "text %q", text)
		assert.True(t, got.Value.Equal(v), "round trip %q: got %s, want %s", text, got.Value, v)
	}
}

func TestToFixed(t *testing.T) {
	got, err := ToFixed("1,234.567891", false)
	require.NoError(t, err)
	assert.Equal(t, "1234.5679", got.Value.String())

	got, err = ToFixed("N/A", true)
	require.NoError(t, err)
	assert.True(t, got.NaN)
	assert.Equal(t, "N/A", got.Raw)

	_, err = ToFixed("N/A", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDecimal))
	assert.True(t, strings.Contains(err.Error(), "N/A"))

	// blank is not zero for a required field
	_, err = ToFixed("  ", false)
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestCellFixed(t *testing.T) {
	v, err := Cell{Value: decimal.RequireFromString("0.123456")}.Fixed()
	require.NoError(t, err)
	assert.Equal(t, "0.1235", v.String())

	_, err = Cell{Raw: "x", NaN: true}.Fixed()
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestSum(t *testing.T) {
	n := NewNormalizer(zerolog.Nop())
	total, err := Sum(n.Normalize("0.10"), n.Normalize("0.20"), n.Normalize("(0.05)"), n.Normalize(""))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.25")), "got %s", total)

	_, err = Sum(n.Normalize("1"), n.Normalize("bad"))
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}
