package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/sheet"
)

const axisLedger = `Voucher Date,Voucher Type,Narration,Debit,Credit
01-04-2022,Bill,Bill for trades on 01-04-2022,1020.50,
01-04-2022,Receipt,Funds added,,5000
04-04-2022,Bill,Bill for trades on 04-04-2022,33.10,
05-04-2022,Bill,Bill for trades on 05-04-2022,12.00,
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func recordDates(ds *models.LedgerDataset) []string {
	var out []string
	for _, r := range ds.Records {
		out = append(out, r.Date)
	}
	return out
}

func TestLoadConvertsAndFilters(t *testing.T) {
	path := writeFile(t, "ledger.csv", axisLedger)
	filter, err := FilterRule{Column: "Voucher Type", Equals: "Bill"}.Compile()
	require.NoError(t, err)

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{
		DateColumn: "Voucher Date",
		DateLayout: "02-01-2006",
		Filter:     filter,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-04-01", "2022-04-04", "2022-04-05"}, recordDates(ds))
	assert.Equal(t, "2022-04-01", ds.Records[0].Get("Voucher Date"), "date column holds the ISO value")
	assert.Equal(t, "1020.50", ds.Records[0].Get("Debit"))
	assert.Equal(t, 1, ds.Records[0].Row)
}

func TestLoadWithoutFilterKeepsAllRows(t *testing.T) {
	path := writeFile(t, "ledger.csv", axisLedger)

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{DateColumn: "Voucher Date", DateLayout: "02-01-2006"})

	require.NoError(t, err)
	assert.Len(t, ds.Records, 4)
}

func TestLoadDateBounds(t *testing.T) {
	path := writeFile(t, "ledger.csv", axisLedger)

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{
		DateColumn: "Voucher Date",
		DateLayout: "02-01-2006",
		StartDate:  "2022-04-04",
		EndDate:    "2022-04-05",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-04-04"}, recordDates(ds))
}

func TestLoadNativeDatesFromWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Zerodha_FinancialLedger_Transactions.xlsx")
	require.NoError(t, sheet.Write(path, &sheet.Sheet{
		Header:         []string{"Particulars", "Posting Date", "Debit"},
		Rows:           [][]string{{"Net settlement", "44652", "10.5"}, {"Net settlement", "44655", "3"}},
		NumericColumns: map[string]bool{"Posting Date": true, "Debit": true},
	}))

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{DateColumn: "Posting Date"})

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-04-01", "2022-04-04"}, recordDates(ds))
}

func TestLoadSkipsUndatedRows(t *testing.T) {
	path := writeFile(t, "ledger.csv", `Particulars,Posting Date,Debit,Credit
Opening Balance,,,2500.00
Net obligation for Equity,2022-04-01,1035.71,
Net obligation for Equity,2022-04-04,12.40,
Closing Balance,,,1451.89
`)

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{DateColumn: "Posting Date"})

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-04-01", "2022-04-04"}, recordDates(ds))
	assert.Equal(t, 2, ds.Records[0].Row)
}

func TestLoadMixedTextAndNativeDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AxisDirect_FinancialLedger_Transactions.xlsx")
	require.NoError(t, sheet.Write(path, &sheet.Sheet{
		Header: []string{"Voucher Date", "Voucher Type", "Debit"},
		Rows: [][]string{
			{"01-04-2022", "Bill", "10.5"},
			{"44655", "Bill", "3"},
		},
		NumericColumns: map[string]bool{"Debit": true},
	}))
	// write the second date as a native serial cell
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(f.GetSheetName(0), "A3", 44655))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	ds, err := NewLoader(zerolog.Nop()).Load(path, Options{DateColumn: "Voucher Date", DateLayout: "02-01-2006"})

	require.NoError(t, err)
	assert.Equal(t, []string{"2022-04-01", "2022-04-04"}, recordDates(ds))
}

func TestLoadErrors(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.xlsx"), Options{DateColumn: "Date"})
	assert.ErrorIs(t, err, sheet.ErrFileNotFound)

	path := writeFile(t, "ledger.csv", axisLedger)
	_, err = loader.Load(path, Options{DateColumn: "Posting Date"})
	assert.ErrorIs(t, err, models.ErrColumnMissing)

	_, err = loader.Load(path, Options{DateColumn: "Voucher Date", DateLayout: "2006-01-02"})
	var fe *models.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Voucher Date", fe.Field)

	_, err = loader.Load(path, Options{})
	assert.Error(t, err)
}

func TestFilterRule(t *testing.T) {
	rec := func(v string) models.LedgerRecord {
		return models.LedgerRecord{Values: map[string]string{"Narration": v}}
	}

	tests := []struct {
		name  string
		rule  FilterRule
		value string
		keep  bool
	}{
		{"equals", FilterRule{Column: "Narration", Equals: "Bill"}, "Bill", true},
		{"equals trims", FilterRule{Column: "Narration", Equals: "Bill"}, " Bill ", true},
		{"equals miss", FilterRule{Column: "Narration", Equals: "Bill"}, "Receipt", false},
		{"contains", FilterRule{Column: "Narration", Contains: "Trade Bill"}, "Trade Bill 2022-04-01", true},
		{"matches", FilterRule{Column: "Narration", Matches: `^BILL-\d+$`}, "BILL-991", true},
		{"not empty", FilterRule{Column: "Narration", NotEmpty: true}, "", false},
		{"not empty kept", FilterRule{Column: "Narration", NotEmpty: true}, "X12", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.rule.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.keep, f(rec(tt.value)))
		})
	}

	_, err := FilterRule{Equals: "x"}.Compile()
	assert.Error(t, err)
	_, err = FilterRule{Column: "Narration"}.Compile()
	assert.Error(t, err)
	_, err = FilterRule{Column: "Narration", Matches: "("}.Compile()
	assert.Error(t, err)
}

func TestAll(t *testing.T) {
	yes := func(models.LedgerRecord) bool { return true }
	no := func(models.LedgerRecord) bool { return false }

	assert.True(t, All(yes, nil, yes)(models.LedgerRecord{}))
	assert.False(t, All(yes, no)(models.LedgerRecord{}))
}
