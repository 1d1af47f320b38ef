// Package config loads the engine configuration from YAML with environment overrides.
// The resulting Config is passed by value into the engine; nothing below the CLI reads
// process state.
package config

import (
	"os"
	"quarterly_metrics/pkg/core/dictionary"
	"quarterly_metrics/pkg/core/units"
	"quarterly_metrics/pkg/core/validate"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"
)

// Duration reads "90s" style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return eris.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Company is one entry of the configured company list.
type Company struct {
	Symbol               string `yaml:"symbol" validate:"required"`
	Name                 string `yaml:"name"`
	Sector               string `yaml:"sector"`
	FiscalYearStartMonth int    `yaml:"fiscal_year_start_month" validate:"omitempty,min=1,max=12"`
}

// Output names the files the dataset and audit report are written to.
type Output struct {
	Dir         string `yaml:"dir" validate:"required"`
	DatasetFile string `yaml:"dataset_file" validate:"required"`
	AuditFile   string `yaml:"audit_file" validate:"required"`
}

// Gemini configures the extraction oracle.
type Gemini struct {
	Model             string `yaml:"model" validate:"required"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"min=1"`
	APIKey            string `yaml:"-"`
}

type Config struct {
	Workers                 int             `yaml:"workers" validate:"min=1"`
	OracleTimeout           Duration        `yaml:"oracle_timeout" validate:"gt=0"`
	SimilarityThreshold     float64         `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	DefaultUnit             units.Unit      `yaml:"default_unit"`
	Retention               validate.Window `yaml:"retention"`
	GapTolerance            int             `yaml:"gap_tolerance" validate:"min=0"`
	RestatementTolerancePct float64         `yaml:"restatement_tolerance_pct" validate:"min=0"`
	DictionaryPath          string          `yaml:"dictionary_path"`
	Companies               []Company       `yaml:"companies" validate:"dive"`
	Output                  Output          `yaml:"output"`
	Gemini                  Gemini          `yaml:"gemini"`
	CacheDir                string          `yaml:"cache_dir"`
	LogLevel                string          `yaml:"log_level"`
	DatabaseURL             string          `yaml:"-"`
	PushgatewayURL          string          `yaml:"pushgateway_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:                 4,
		OracleTimeout:           Duration(90 * time.Second),
		SimilarityThreshold:     dictionary.DefaultThreshold,
		DefaultUnit:             units.Unit{Currency: "LKR", Scale: units.ScaleThousands},
		Retention:               validate.Window{FromYear: 2000, ToYear: 2099},
		GapTolerance:            1,
		RestatementTolerancePct: 0.5,
		Output: Output{
			Dir:         "output",
			DatasetFile: "financial_metrics.csv",
			AuditFile:   "audit_report.csv",
		},
		Gemini: Gemini{
			Model:             "gemini-2.5-flash",
			RequestsPerMinute: 10,
		},
		CacheDir: "cache/extractions",
		LogLevel: "info",
	}
}

// Load reads path (optional) over the defaults, applies environment overrides and validates.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, eris.Wrapf(err, "read config %s", path)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, eris.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QM_WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return eris.Wrapf(err, "QM_WORKERS=%q", v)
		}
		c.Workers = n
	}
	if v, ok := lookup("QM_ORACLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return eris.Wrapf(err, "QM_ORACLE_TIMEOUT=%q", v)
		}
		c.OracleTimeout = Duration(d)
	}
	if v, ok := lookup("QM_OUTPUT_DIR"); ok && v != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup("GEMINI_API_KEY"); ok {
		c.Gemini.APIKey = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := lookup("PUSHGATEWAY_URL"); ok && v != "" {
		c.PushgatewayURL = v
	}
	return nil
}

var validScales = map[float64]struct{}{
	units.ScaleUnits: {}, units.ScaleThousands: {}, units.ScaleMillions: {}, units.ScaleBillions: {},
}

// Validate checks struct tags plus the rules tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "invalid configuration")
	}
	if strings.TrimSpace(c.DefaultUnit.Currency) == "" {
		return eris.New("invalid configuration: default_unit.currency is required")
	}
	if _, ok := validScales[c.DefaultUnit.Scale]; !ok {
		return eris.Errorf("invalid configuration: default_unit.scale %v is not 1, 1000, 1000000 or 1000000000", c.DefaultUnit.Scale)
	}
	seen := make(map[string]struct{}, len(c.Companies))
	for _, co := range c.Companies {
		sym := strings.ToUpper(co.Symbol)
		if _, dup := seen[sym]; dup {
			return eris.Errorf("invalid configuration: company %s listed twice", sym)
		}
		seen[sym] = struct{}{}
	}
	return nil
}

// Symbols lists the configured company symbols.
func (c Config) Symbols() []string {
	out := make([]string, 0, len(c.Companies))
	for _, co := range c.Companies {
		out = append(out, co.Symbol)
	}
	return out
}

// Company returns the entry for symbol, if configured.
func (c Config) Company(symbol string) (Company, bool) {
	for _, co := range c.Companies {
		if strings.EqualFold(co.Symbol, symbol) {
			return co, true
		}
	}
	return Company{}, false
}
