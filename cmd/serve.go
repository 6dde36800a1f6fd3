package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/feedback"
	"github.com/zpam/spamscan/pkg/milter"
	"github.com/zpam/spamscan/pkg/profiler"
	"github.com/zpam/spamscan/pkg/registry"
	"github.com/zpam/spamscan/pkg/reload"
	"github.com/zpam/spamscan/pkg/scanner"
	"github.com/zpam/spamscan/pkg/server"
)

var (
	serveAddress string
	serveWatch   bool
	serveMilter  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan API over HTTP",
	Long: `Start the HTTP scan API.

Endpoints:
  GET  /            service banner
  GET  /healthz     model status
  POST /scan-email  classify {"text": ...} and highlight suspicious words
  POST /feedback    record a verdict (requires feedback.db_path)
  GET  /words       suspicious words table

The model is loaded from files or from the Redis registry depending on
model.source, and reloaded without dropping requests when it changes.
With --milter (or milter.enabled) the milter server runs alongside.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("address") {
			cfg.Server.Address = serveAddress
		}
		if cmd.Flags().Changed("watch") {
			cfg.Model.Watch = serveWatch
		}
		if cmd.Flags().Changed("milter") {
			cfg.Milter.Enabled = serveMilter
		}

		return runServices(cmd.Context(), cfg, true)
	},
}

// runServices loads the model, starts the reloaders and runs the HTTP and
// milter front ends until SIGINT or SIGTERM. A model that cannot be loaded
// at startup is fatal.
func runServices(parent context.Context, c *config.Config, withHTTP bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scanner.New(profiler.NewProfiler())
	g, ctx := errgroup.WithContext(ctx)

	opts := scannerOptions(c)
	switch c.Model.Source {
	case config.SourceRedis:
		reg, err := registry.New(ctx, &c.Redis)
		if err != nil {
			return err
		}
		defer reg.Close()

		follower := reload.NewFollower(s, reg, opts)
		if err := follower.Sync(ctx); err != nil {
			return err
		}
		g.Go(func() error { return follower.Run(ctx) })

	default:
		load := func() (*scanner.Snapshot, error) {
			return scanner.LoadFromFiles(c.Model.Path, c.Model.WordsPath, opts)
		}
		snap, err := load()
		if err != nil {
			return err
		}
		s.Swap(snap)
		if c.Model.Watch {
			watcher := reload.NewFileWatcher(s, load, c.Model.Path, c.Model.WordsPath)
			g.Go(func() error { return watcher.Run(ctx) })
		}
	}

	if withHTTP {
		srvOpts := server.Options{
			AllowedOrigins: c.Server.AllowedOrigins,
			MaxBodyBytes:   c.Server.MaxBodyBytes,
		}
		if c.Feedback.DBPath != "" {
			store, err := feedback.Open(c.Feedback.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			srvOpts.Feedback = store
		}

		srv := server.New(s, srvOpts)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, server.Config{
				Address:         c.Server.Address,
				ReadTimeout:     millis(c.Server.ReadTimeoutMs),
				WriteTimeout:    millis(c.Server.WriteTimeoutMs),
				ShutdownTimeout: millis(c.Server.ShutdownTimeoutMs),
			})
		})
	}

	if c.Milter.Enabled {
		ms, err := milter.NewServer(&c.Milter, s)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.WithFields(log.Fields{
				"network": c.Milter.Network,
				"address": c.Milter.Address,
			}).Info("milter server listening")
			return ms.ListenAndServe(ctx)
		})
	}

	err := g.Wait()
	log.Info("shutdown complete")
	return err
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the model when its files change")
	serveCmd.Flags().BoolVar(&serveMilter, "milter", false, "Also run the milter server")
}
