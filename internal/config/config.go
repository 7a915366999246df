// Package config loads run settings from a YAML file, a .env file and
// RECON_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/contract-note-reconciler/internal/ledger"
)

// ErrInvalid is returned when the loaded settings cannot drive a run.
var ErrInvalid = errors.New("invalid configuration")

// Config is the process configuration.
type Config struct {
	// DataDir holds FinancialLedger/ and ContractNotes/ inputs.
	DataDir string `yaml:"data_dir"`
	// ComputeDir receives the charges aggregates.
	ComputeDir string `yaml:"compute_dir"`
	// StartDate and EndDate bound the run to [StartDate, EndDate), ISO dates.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	LogLevel   string `yaml:"log_level"`
	LogPretty  bool   `yaml:"log_pretty"`
	ListenAddr string `yaml:"listen_addr"`
	// OCR enables the Tesseract fallback for scanned contract notes.
	OCR bool `yaml:"ocr"`

	Brokers map[string]BrokerConfig `yaml:"brokers"`
}

// BrokerConfig overrides a built-in broker definition. Zero values keep the
// definition's defaults.
type BrokerConfig struct {
	// Name is the display name used in paths and reports, e.g. "Zerodha".
	Name string `yaml:"name"`

	LedgerPath    string `yaml:"ledger_path"`
	NotesDir      string `yaml:"notes_dir"`
	AggregatePath string `yaml:"aggregate_path"`

	LedgerDateColumn  string `yaml:"ledger_date_column"`
	LedgerDateFormat  string `yaml:"ledger_date_format"`
	ChargesDateColumn string `yaml:"charges_date_column"`

	// TrailingPages is a pointer so that 0 (all pages) can be configured.
	TrailingPages   *int                `yaml:"trailing_pages"`
	SelectionPolicy string              `yaml:"selection_policy"`
	OnError         string              `yaml:"on_error"`
	LedgerFilters   []ledger.FilterRule `yaml:"ledger_filters"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		DataDir:    "data",
		ComputeDir: "compute",
		LogLevel:   "info",
		ListenAddr: ":8080",
		Brokers:    map[string]BrokerConfig{},
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error. A .env file in the working directory is loaded if
// present and never overrides variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		brokers, err := brokerKeys(cfg.Brokers)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Brokers = brokers
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("RECON_DATA_DIR", c.DataDir)
	c.ComputeDir = getEnv("RECON_COMPUTE_DIR", c.ComputeDir)
	c.StartDate = getEnv("RECON_START_DATE", c.StartDate)
	c.EndDate = getEnv("RECON_END_DATE", c.EndDate)
	c.LogLevel = getEnv("RECON_LOG_LEVEL", c.LogLevel)
	c.ListenAddr = getEnv("RECON_LISTEN_ADDR", c.ListenAddr)
	if v, ok := os.LookupEnv("RECON_LOG_PRETTY"); ok {
		c.LogPretty = isTrue(v)
	}
	if v, ok := os.LookupEnv("RECON_OCR"); ok {
		c.OCR = isTrue(v)
	}
}

// Validate checks the date range and directories.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	}
	if c.ComputeDir == "" {
		return fmt.Errorf("%w: compute_dir is empty", ErrInvalid)
	}
	for key, v := range map[string]string{"start_date": c.StartDate, "end_date": c.EndDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalid, key, v)
		}
	}
	if c.StartDate != "" && c.EndDate != "" && c.StartDate >= c.EndDate {
		return fmt.Errorf("%w: start_date %s is not before end_date %s", ErrInvalid, c.StartDate, c.EndDate)
	}
	for name, b := range c.Brokers {
		if b.TrailingPages != nil && *b.TrailingPages < 0 {
			return fmt.Errorf("%w: broker %s: trailing_pages is negative", ErrInvalid, name)
		}
	}
	return nil
}

// Broker returns the overrides for a broker key, empty if none.
func (c *Config) Broker(key string) BrokerConfig {
	return c.Brokers[strings.ToLower(strings.TrimSpace(key))]
}

// brokerKeys lower cases the broker map keys so a "Zerodha:" block matches the
// registry key.
func brokerKeys(in map[string]BrokerConfig) (map[string]BrokerConfig, error) {
	out := make(map[string]BrokerConfig, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: broker %q configured twice", ErrInvalid, key)
		}
		out[key] = v
	}
	return out, nil
}

func isTrue(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
