package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/paxcast/internal/server"
	"github.com/YuminosukeSato/paxcast/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Prometheus listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		logger := log.GetLoggerWithName("serve")
		api := server.New(server.Config{
			Backend:      rt.svc,
			Telemetry:    rt.metrics,
			MaxBodyBytes: rt.cfg.MaxBodyBytes,
		})

		servers := []*http.Server{api.HTTPServer(rt.cfg.ListenAddr)}
		if rt.cfg.MetricsAddr != "" {
			servers = append(servers, rt.metrics.NewServer(rt.cfg.MetricsAddr))
		}
		logger.Info("starting paxcast",
			"listen_addr", rt.cfg.ListenAddr,
			"metrics_addr", rt.cfg.MetricsAddr,
			"db_driver", rt.db.Driver(),
			log.PathKey, rt.cfg.ModelDir)

		return server.Run(ctx, rt.cfg.ShutdownTimeout, servers...)
	},
}
