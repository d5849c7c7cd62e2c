package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/paxcast/internal/config"
	"github.com/YuminosukeSato/paxcast/internal/metricsdb"
	"github.com/YuminosukeSato/paxcast/internal/modelstore"
	"github.com/YuminosukeSato/paxcast/internal/service"
	"github.com/YuminosukeSato/paxcast/internal/telemetry"
	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "paxcast",
	Short: "Passenger forecast model service",
	Long: `paxcast trains a mean baseline and a gradient-boosted regressor that
predict paid passengers from ASK, ATK and fuel consumption, serves predictions
over HTTP and tracks their error once actual values are reported.

Configuration is read from PAXCAST_* environment variables, optionally seeded
from a .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(processCmd)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// app holds what every subcommand that touches the stores needs.
type app struct {
	cfg     config.Config
	logs    io.Closer
	db      *metricsdb.Store
	metrics *telemetry.Metrics
	svc     *service.Service
}

func (r *app) Close() error {
	var errs []error
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	if r.logs != nil {
		errs = append(errs, r.logs.Close())
	}
	return errors.Join(errs...)
}

// loadConfig reads the service config and installs the global logger.
func loadConfig() (config.Config, io.Closer, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return config.Config{}, nil, pkgerrors.Wrap(err, "load config")
	}
	closer, err := log.SetupLogger(log.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, closer, nil
}

// openApp loads config, opens both stores and builds the service.
func openApp(ctx context.Context) (*app, error) {
	cfg, closer, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg, logs: closer, metrics: telemetry.New()}

	rt.db, err = metricsdb.Open(ctx, metricsdb.Options{Driver: cfg.DBDriver, Path: cfg.DBPath})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	models, err := modelstore.New(cfg.ModelDir)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.svc, err = service.New(models, rt.db, cfg.ModelCacheSize,
		service.WithDataPath(cfg.DataPath),
		service.WithTelemetry(rt.metrics),
	)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}
