package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/depviz/internal/server"
	"github.com/matzehuels/depviz/pkg/cache"
	"github.com/matzehuels/depviz/pkg/observability"
)

// serveCommand serves the analysis over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		watch     bool
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve the graph and its analysis over HTTP",
		Long: `Serve the graph and its analysis over HTTP.

Endpoints:
  GET /api/graph                       node and edge rows
  GET /api/analysis?filter=            the analysis reply
  GET /api/summary?n=                  totals and top-n rankings
  GET /api/files/{id}/deps             dependencies of a file
  GET /api/files/{id}/recompile        files recompiled when it changes
  GET /api/files/{id}/diagram?mode=&format=
  GET /api/path?from=&to=&filter=      shortest path
  GET /ws                              analysis requests over a websocket
  GET /metrics                         Prometheus metrics
  GET /healthz, /version

File ids are URL path escaped (lib%2Fa.ex). With --watch the file is
reloaded in full whenever it changes.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeArgs(0),
	}
	filter := addFilterFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := filter.resolve(c.Config)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("addr") {
			addr = c.Config.Server.Addr
		}
		runner, err := c.newRunner(cache.NewScopedKeyer(nil, args[0]+":"))
		if err != nil {
			return err
		}

		var metrics *server.Metrics
		if !noMetrics {
			metrics = server.NewMetrics()
			metrics.Install()
			defer observability.Reset()
		}

		srv, err := server.New(server.Options{
			Source:    args[0],
			Addr:      addr,
			Filter:    f,
			Runner:    runner,
			Analysis:  c.analysisOptions(f),
			Timeout:   c.Config.Server.AnalysisTimeout,
			Watch:     watch,
			Debounce:  c.Config.Server.WatchDebounce,
			MaxLabels: c.Config.MaxLabelsToShow,
			Metrics:   metrics,
			Logger:    c.Logger,
		})
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the file when it changes")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")

	return cmd
}
