package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"baf-site/internal/aggregate"
	"baf-site/internal/cms"
	"baf-site/internal/config"
	"baf-site/internal/logger"
	"baf-site/internal/metrics"
	"baf-site/internal/server"
	"baf-site/internal/session"
	"baf-site/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "bafsite",
		Short:        "Content API and tools for the studio site",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yml", "Path to YAML config file (empty to use env and defaults only)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newFetchCmd(&cfgPath),
		newLoginCmd(&cfgPath),
		newEventsCmd(&cfgPath),
		newBrandsCmd(&cfgPath),
		newAboutCmd(&cfgPath),
	)
	return root
}

// app holds what every subcommand builds from the config.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	cms     *cms.Client
}

func setup(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client, err := cms.New(cfg.CMS, log, m)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("cms client: %w", err)
	}
	return &app{cfg: cfg, log: log, reg: reg, metrics: m, cms: client}, nil
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			var gatherer prometheus.Gatherer
			if a.cfg.Metrics.Enable {
				a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				gatherer = a.reg
			}
			srv := server.New(server.Options{
				Config:   a.cfg.Server,
				CMS:      a.cms,
				Fetcher:  aggregate.NewFetcher(a.cms, a.cfg.CMS.Timeout, a.log, a.metrics),
				Dedup:    store.NewDedup(a.cfg.Contact.DedupMaxKeys, a.cfg.Contact.DedupTTL),
				Log:      a.log,
				Metrics:  a.metrics,
				Gatherer: gatherer,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("serving", "addr", a.cfg.Server.ListenAddress, "cms", a.cfg.CMS.BaseURL)
				errCh <- srv.Serve()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}
			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newFetchCmd(cfgPath *string) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every collection once and print the content bundle as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			l := aggregate.NewLoader(aggregate.NewFetcher(a.cms, a.cfg.CMS.Timeout, a.log, a.metrics))
			l.Start(ctx)
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}
			v, err := l.Wait(ctx)
			if err != nil {
				l.Cancel()
				return fmt.Errorf("fetch: %w", err)
			}
			if v.Err != nil {
				return fmt.Errorf("fetch: %w", v.Err)
			}
			return writeJSON(cmd.OutOrStdout(), v.Data)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Give up after this long (0 waits for every request to settle)")
	return cmd
}

func newLoginCmd(cfgPath *string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a site admin and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			if password == "" {
				password = os.Getenv("BAFSITE_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("login: --email and --password (or BAFSITE_PASSWORD) are required")
			}
			res, err := a.cms.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			s := session.New()
			s.Set(res.Token, res.User)
			if err := s.Save(a.cfg.Session.StatePath); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			a.log.Info("logged in", "email", email, "path", a.cfg.Session.StatePath)
			if exp := s.ExpiresAt(); !exp.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s (expires %s)\n", a.cfg.Session.StatePath, exp.Format(time.RFC3339))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", a.cfg.Session.StatePath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
