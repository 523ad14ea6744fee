package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/warp/envelope-ledger/api"
	"github.com/warp/envelope-ledger/events"
	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/metrics"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var demo string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the integrity scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, demo)
		},
	}
	cmd.Flags().StringVar(&demo, "demo", "", "reset the database and load this scenario before serving")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, demo string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := opts.open(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.For(a.logger, logging.ComponentApp)

	publisher, err := newPublisher(a)
	if err != nil {
		return err
	}
	defer publisher.Close()

	h := api.NewHandler(a.svc)
	h.Events = publisher
	h.Logger = logging.For(a.logger, logging.ComponentHTTP)
	h.Resetter = a.store
	if a.cfg.Metrics.Enabled {
		h.Metrics = metrics.New()
	}

	if demo != "" {
		if err := loadScenario(ctx, a, demo, cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	scheduler := api.NewIntegrityScheduler(h)
	scheduler.CheckInterval = a.cfg.Integrity.Interval
	scheduler.Enabled = a.cfg.Integrity.Enabled
	scheduler.Logger = logging.For(a.logger, logging.ComponentScheduler)

	server := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      api.NewRouter(h, api.Options{CORSOrigins: a.cfg.Server.CORSOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", server.Addr, "db", a.cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newPublisher connects to AMQP when a URL is configured.
func newPublisher(a *app) (events.Publisher, error) {
	if a.cfg.AMQP.URL == "" {
		return events.Nop{}, nil
	}
	return events.NewAMQPPublisher(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange,
		logging.For(a.logger, logging.ComponentAMQP))
}
