package config

import (
	"os"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// ETLConfig describes one raw-data processing run.
//
//	database_path: ""            # empty = in-memory DuckDB
//	input_path: data/raw.parquet
//	output_path: data/processed.parquet
//	drop_columns: [EMPRESA_SIGLA]
//	replace_comma_with_dot_columns: [ASK, ATK]
//	set_empty_to_null_columns: [ASK, ATK]
//	numeric_columns: [ASK, ATK, COMBUSTIVEL_LITROS, PASSAGEIROS_PAGOS]
//	date_columns: [ANO, MES]
//	new_date_column: DATA
//	date_concat_format: "-01"
type ETLConfig struct {
	DatabasePath               string   `yaml:"database_path"`
	InputPath                  string   `yaml:"input_path"`
	OutputPath                 string   `yaml:"output_path"`
	DropColumns                []string `yaml:"drop_columns"`
	ReplaceCommaWithDotColumns []string `yaml:"replace_comma_with_dot_columns"`
	SetEmptyToNullColumns      []string `yaml:"set_empty_to_null_columns"`
	NumericColumns             []string `yaml:"numeric_columns"`
	DateColumns                []string `yaml:"date_columns"`
	NewDateColumn              string   `yaml:"new_date_column"`
	DateConcatFormat           string   `yaml:"date_concat_format"`
}

// LoadETLConfig reads and validates an ETL config file.
func LoadETLConfig(path string) (ETLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ETLConfig{}, pkgerrors.Wrapf(err, "read %s", path)
	}
	return ParseETLConfig(data)
}

// ParseETLConfig decodes YAML bytes into an ETLConfig and validates it.
func ParseETLConfig(data []byte) (ETLConfig, error) {
	var cfg ETLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ETLConfig{}, pkgerrors.NewValidationError("etl_config", "invalid yaml", err.Error())
	}
	if cfg.DateConcatFormat == "" {
		cfg.DateConcatFormat = "-01"
	}
	if err := cfg.Validate(); err != nil {
		return ETLConfig{}, err
	}
	return cfg, nil
}

// Validate checks required fields. Column names are checked against the
// actual table by the ETL job itself.
func (c ETLConfig) Validate() error {
	if c.InputPath == "" {
		return pkgerrors.NewValidationError("input_path", "cannot be empty", c.InputPath)
	}
	if c.OutputPath == "" {
		return pkgerrors.NewValidationError("output_path", "cannot be empty", c.OutputPath)
	}
	if c.NewDateColumn != "" && len(c.DateColumns) != 2 {
		return pkgerrors.NewValidationError("date_columns", "need exactly [year, month] when new_date_column is set", c.DateColumns)
	}
	return nil
}
