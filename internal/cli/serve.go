package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/metrics"
	"github.com/gltg/bmp-api/internal/server"
)

var (
	serveAddr     string
	serveBasePath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API over the configured database.

Routes:
  GET {base}/                  list resources
  GET {base}/{resource}        search (same parameters as 'bmp query')
  GET {base}/{resource}/{id}   one row by primary key
  GET /healthz                 liveness
  GET /metrics                 prometheus metrics

Examples:
  bmp serve
  bmp serve --addr :9000 --base-path /api
  DB_DRIVER=pgx DB_HOST=db DB_PASSWORD=secret bmp serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		if cmd.Flags().Changed("addr") {
			c.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("base-path") {
			c.Server.BasePath = serveBasePath
		}
		if err := c.Validate(); err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return handleQueryError(err)
		}
		defer st.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(st.DB(), st.Dialect().Name),
		)
		m := metrics.New(reg)

		svc := newService(m.InstrumentStore(st))
		srv := server.New(svc, server.Options{
			BasePath:           c.Server.BasePath,
			RateLimitPerMinute: c.Server.RateLimitPerMinute,
			Burst:              c.Server.Burst,
			Logger:             getLogger(),
			Metrics:            m,
			Gatherer:           reg,
		})
		return srv.Run(ctx, c.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr and API_PORT)")
	serveCmd.Flags().StringVar(&serveBasePath, "base-path", "", "Route prefix (overrides server.base_path and API_CONTEXT)")
	rootCmd.AddCommand(serveCmd)
}
