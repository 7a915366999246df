package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
data_dir: /srv/recon/data
compute_dir: /srv/recon/compute
start_date: 2022-04-01
end_date: 2023-04-01
log_level: debug
brokers:
  zerodha:
    trailing_pages: 0
    selection_policy: last
  axisdirect:
    name: AxisDirect
    ledger_date_format: "%d/%m/%Y"
    on_error: skip
    ledger_filters:
      - column: Voucher Type
        equals: Bill
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "recon.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/srv/recon/data", cfg.DataDir)
	assert.Equal(t, "2022-04-01", cfg.StartDate)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr, "default kept")

	z := cfg.Broker("Zerodha")
	require.NotNil(t, z.TrailingPages)
	assert.Equal(t, 0, *z.TrailingPages)
	assert.Equal(t, "last", z.SelectionPolicy)

	a := cfg.Broker("axisdirect")
	assert.Equal(t, "AxisDirect", a.Name)
	assert.Equal(t, "%d/%m/%Y", a.LedgerDateFormat)
	require.Len(t, a.LedgerFilters, 1)
	assert.Equal(t, "Voucher Type", a.LedgerFilters[0].Column)
	assert.Equal(t, "Bill", a.LedgerFilters[0].Equals)

	assert.Nil(t, cfg.Broker("unknown").TrailingPages)
}

func TestLoadBrokerKeysIgnoreCase(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(writeConfig(t, `
brokers:
  Zerodha:
    selection_policy: last
  AxisDirect:
    on_error: fail
`))
	require.NoError(t, err)

	assert.Equal(t, "last", cfg.Broker("zerodha").SelectionPolicy)
	assert.Equal(t, "fail", cfg.Broker("axisdirect").OnError)

	_, err = Load(writeConfig(t, `
brokers:
  Zerodha:
    selection_policy: last
  zerodha:
    selection_policy: first
`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RECON_DATA_DIR", "/mnt/data")
	t.Setenv("RECON_END_DATE", "2022-05-01")
	t.Setenv("RECON_LOG_PRETTY", "true")
	t.Setenv("RECON_OCR", "1")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/mnt/data", cfg.DataDir)
	assert.Equal(t, "2022-05-01", cfg.EndDate)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.OCR)
	assert.Equal(t, "/srv/recon/compute", cfg.ComputeDir)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RECON_COMPUTE_DIR=/tmp/out\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RECON_COMPUTE_DIR") })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", cfg.ComputeDir)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoadErrors(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "data_dir: [unclosed"},
		{"bad date", "start_date: 01-04-2022"},
		{"empty range", "start_date: 2022-04-02\nend_date: 2022-04-01"},
		{"negative pages", "brokers:\n  zerodha:\n    trailing_pages: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
