package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Collision policies for output files created within the same second.
const (
	CollisionOverwrite = "overwrite"
	CollisionUnique    = "unique"
)

// Rules describes which columns get rewritten and how output lines are built.
// A zero value is not usable; start from Default or Load.
type Rules struct {
	DateColumns   []string `yaml:"date_columns"`
	AmountColumns []string `yaml:"amount_columns"`
	QuoteColumns  []string `yaml:"quote_columns"`

	Delimiter    string `yaml:"delimiter"`
	IndexHeader  string `yaml:"index_header"`
	AmountSuffix string `yaml:"amount_suffix"`
	OnCollision  string `yaml:"on_collision"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the rule set used when no rules file is given.
func Default() *Rules {
	r := &Rules{}
	applyDefaults(r)
	return r
}

// Load reads a YAML rules file. An empty path yields the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	return Parse(data)
}

// Parse decodes rules from YAML, fills unset fields and validates the result.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	applyDefaults(&r)

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	return &r, nil
}

// applyDefaults only fills fields that were left out. An explicit empty list
// in YAML (date_columns: []) disables that family.
func applyDefaults(r *Rules) {
	if r.DateColumns == nil {
		r.DateColumns = []string{"AKT_DATA", "PP_DATA"}
	}
	if r.AmountColumns == nil {
		r.AmountColumns = []string{"KWOTA_NOM", "KWOTA_BRUT"}
	}
	if r.QuoteColumns == nil {
		r.QuoteColumns = []string{"PUP_NIP", "PUP_NAZWA", "AKT_SYM", "AKT_DATA", "BF_NAZWA"}
	}
	if r.Delimiter == "" {
		r.Delimiter = "|"
	}
	if r.IndexHeader == "" {
		r.IndexHeader = "LP"
	}
	if r.AmountSuffix == "" {
		r.AmountSuffix = ",00"
	}
	if r.OnCollision == "" {
		r.OnCollision = CollisionOverwrite
	}
	if r.LogLevel == "" {
		r.LogLevel = "info"
	}
}

func (r *Rules) Validate() error {
	var errs []error

	if strings.ContainsAny(r.Delimiter, "\r\n") {
		errs = append(errs, fmt.Errorf("delimiter must not contain line breaks"))
	}

	switch r.OnCollision {
	case CollisionOverwrite, CollisionUnique:
	default:
		errs = append(errs, fmt.Errorf("on_collision must be %q or %q, got %q",
			CollisionOverwrite, CollisionUnique, r.OnCollision))
	}

	switch strings.ToLower(r.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", r.LogLevel))
	}

	for family, cols := range map[string][]string{
		"date_columns":   r.DateColumns,
		"amount_columns": r.AmountColumns,
		"quote_columns":  r.QuoteColumns,
	} {
		for _, c := range cols {
			if c == "" {
				errs = append(errs, fmt.Errorf("%s contains an empty column name", family))
				break
			}
		}
	}

	return errors.Join(errs...)
}
