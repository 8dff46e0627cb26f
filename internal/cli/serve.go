package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/api"
	"github.com/illumorae/patchfill/pkg/observability"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the infill API over HTTP",
		Long: `Serve the infill API over HTTP until interrupted.

  POST /v1/infill   multipart form: image, mask and option fields
  GET  /healthz     liveness probe
  GET  /version     build information
  GET  /stats       request, cache and infill counters`,
		Example: `  patchfill serve --addr :8080
  curl -F image=@photo.png -F mask=@mask.png -F seed=42 localhost:8080/v1/infill -o out.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config

			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			timeout, err := cfg.requestTimeout()
			if err != nil {
				return err
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			printInfo("Starting %s API", appName)
			printKeyValue("Address", addr)
			printKeyValue("Cache", cacheDescription(cfg.Cache.Backend, noCache))
			printKeyValue("Max upload", fmt.Sprintf("%d MB", cfg.Server.MaxUploadMB))
			printNewline()

			stats := observability.NewCounters()
			stats.Register()
			defer observability.Reset()

			srv := api.NewServer(runner, c.Logger, api.Config{
				Addr:           addr,
				MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
				RequestTimeout: timeout,
				Defaults:       cfg.Infill.options(),
				Stats:          stats,
			})
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", api.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")

	return cmd
}

func cacheDescription(backend string, noCache bool) string {
	switch {
	case noCache:
		return "disabled"
	case backend == "":
		return "file"
	}
	return backend
}
