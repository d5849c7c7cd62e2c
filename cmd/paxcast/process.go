package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/paxcast/internal/config"
	"github.com/YuminosukeSato/paxcast/internal/etl"
)

var etlConfigPath string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Clean the raw parquet export into the training dataset",
	Long: `process loads the raw parquet file into DuckDB, drops and cleans the
configured columns, derives the date column and writes the processed parquet
file that train and serve read from DATA_PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		cfg, err := config.LoadETLConfig(etlConfigPath)
		if err != nil {
			return err
		}
		return etl.Process(cmd.Context(), cfg)
	},
}

func init() {
	processCmd.Flags().StringVar(&etlConfigPath, "config", "etl.yaml", "ETL job description (YAML)")
}
